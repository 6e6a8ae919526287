package services_test

import (
	"context"
	"testing"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestViewIdentity_Resolve(t *testing.T) {
	t.Parallel()

	actor := uuid.New()
	cases := []struct {
		name     string
		identity services.ViewIdentity
		key      string
		kind     po.IdentityKind
		ok       bool
	}{
		{"actor wins", services.ViewIdentity{ActorID: &actor, SessionID: "s1", IP: "10.0.0.1"}, "actor:" + actor.String(), po.IdentityActor, true},
		{"session before ip", services.ViewIdentity{SessionID: " s1 ", IP: "10.0.0.1"}, "session:s1", po.IdentitySession, true},
		{"ip with port", services.ViewIdentity{IP: "10.0.0.1:443"}, "ip:10.0.0.1", po.IdentityIP, true},
		{"ipv6 normalized", services.ViewIdentity{IP: "2001:DB8::1"}, "ip:2001:db8::1", po.IdentityIP, true},
		{"nil actor ignored", services.ViewIdentity{ActorID: &uuid.Nil, IP: "192.168.1.2"}, "ip:192.168.1.2", po.IdentityIP, true},
		{"garbage ip", services.ViewIdentity{IP: "not-an-ip"}, "", "", false},
		{"empty", services.ViewIdentity{}, "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, kind, ok := tc.identity.Resolve()
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.key, key)
			require.Equal(t, tc.kind, kind)
		})
	}
}

func TestViewDeduplicator_RepeatViewMergesMetrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()
	identity := services.ViewIdentity{SessionID: "sess-1"}

	out, err := h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: identity, DurationSeconds: 30, WatchedPercentage: 40})
	require.NoError(t, err)
	require.True(t, out.Result.IsUnique)
	require.EqualValues(t, 1, out.Result.Views)
	require.EqualValues(t, 1, out.Result.UniqueViews)

	out, err = h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: identity, DurationSeconds: 10, WatchedPercentage: 90})
	require.NoError(t, err)
	require.False(t, out.Result.IsUnique)
	require.EqualValues(t, 2, out.Result.Views)
	require.EqualValues(t, 1, out.Result.UniqueViews)

	view, ok := h.store.view(w.video.ID, "session:sess-1")
	require.True(t, ok)
	require.EqualValues(t, 30, view.DurationSeconds)
	require.InDelta(t, 90, view.WatchedPercentage, 0.001)
	require.NotNil(t, view.SessionID)
	require.Equal(t, "sess-1", *view.SessionID)

	out, err = h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: services.ViewIdentity{SessionID: "sess-2"}})
	require.NoError(t, err)
	require.True(t, out.Result.IsUnique)
	require.EqualValues(t, 3, out.Result.Views)
	require.EqualValues(t, 2, out.Result.UniqueViews)
}

func TestViewDeduplicator_SharedIPCollapsesToOneViewer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()
	identity := services.ViewIdentity{IP: "203.0.113.9"}

	out, err := h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: identity})
	require.NoError(t, err)
	require.True(t, out.Result.IsUnique)

	out, err = h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: identity})
	require.NoError(t, err)
	require.False(t, out.Result.IsUnique)
	require.EqualValues(t, 2, out.Result.Views)
	require.EqualValues(t, 1, out.Result.UniqueViews)

	video := h.store.video(w.video.ID)
	require.EqualValues(t, 2, video.Views)
	require.EqualValues(t, 1, video.UniqueViews)
}

func TestViewDeduplicator_Rejections(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()
	identity := services.ViewIdentity{IP: "10.1.1.1"}

	_, err := h.views.RecordView(ctx, services.ViewCommand{VideoID: uuid.New(), Identity: identity})
	require.True(t, services.IsNotFound(err))
	require.Empty(t, h.store.views)

	_, err = h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: identity, WatchedPercentage: 120})
	require.True(t, services.IsValidation(err))

	_, err = h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID, Identity: identity, DurationSeconds: -1})
	require.True(t, services.IsValidation(err))

	_, err = h.views.RecordView(ctx, services.ViewCommand{VideoID: w.video.ID})
	require.True(t, services.IsValidation(err))

	require.EqualValues(t, 0, h.store.video(w.video.ID).Views)
}
