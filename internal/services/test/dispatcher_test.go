package services_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/stretchr/testify/require"
)

func TestDispatcher_DetachesFromRequestContext(t *testing.T) {
	t.Parallel()

	d := services.NewDispatcher(services.DispatcherConfig{Workers: 4, Timeout: time.Second}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var (
		ran         bool
		runErr      error
		hasDeadline bool
	)
	d.Go(ctx, "detached", func(ctx context.Context) error {
		runErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		ran = true
		return nil
	})
	d.Wait()
	require.True(t, ran)
	require.NoError(t, runErr)
	require.True(t, hasDeadline)
}

func TestDispatcher_RecoversPanicsAndErrors(t *testing.T) {
	t.Parallel()

	d := services.NewDispatcher(services.DispatcherConfig{Workers: 4, Timeout: time.Second}, discardLogger())
	var calls atomic.Int32
	d.Go(context.Background(), "panics", func(context.Context) error {
		calls.Add(1)
		panic("boom")
	})
	d.Go(context.Background(), "fails", func(context.Context) error {
		calls.Add(1)
		return errStorage
	})
	d.Wait()
	require.EqualValues(t, 2, calls.Load())
}

func TestDispatcher_DropsWhenSaturated(t *testing.T) {
	t.Parallel()

	d := services.NewDispatcher(services.DispatcherConfig{Workers: 1, Timeout: time.Second}, discardLogger())
	release := make(chan struct{})
	var second atomic.Bool

	d.Go(context.Background(), "blocking", func(context.Context) error {
		<-release
		return nil
	})
	d.Go(context.Background(), "dropped", func(context.Context) error {
		second.Store(true)
		return nil
	})
	close(release)
	d.Wait()
	require.False(t, second.Load())
}

func TestDispatcher_CloseRejectsNewWork(t *testing.T) {
	t.Parallel()

	d := services.NewDispatcher(services.DispatcherConfig{Workers: 2, Timeout: time.Second}, discardLogger())
	require.NoError(t, d.Close(context.Background()))

	var ran atomic.Bool
	d.Go(context.Background(), "late", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	d.Wait()
	require.False(t, ran.Load())
}
