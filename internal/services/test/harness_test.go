package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store         *memStore
	clock         *fakeClock
	registry      *services.TargetRegistry
	ledger        *services.LedgerService
	reconciler    *services.CounterReconciler
	views         *services.ViewDeduplicator
	notifications *services.NotificationService
	rollup        *services.AnalyticsRollup
	dispatcher    *services.Dispatcher
	engagement    *services.EngagementService
	watchLists    *services.WatchListService
}

type harnessOption func(*harnessOptions)

type harnessOptions struct {
	cfg      services.Config
	notifier services.Notifier
}

func withConfig(cfg services.Config) harnessOption {
	return func(o *harnessOptions) { o.cfg = cfg }
}

func withNotifier(n services.Notifier) harnessOption {
	return func(o *harnessOptions) { o.notifier = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := discardLogger()
	store := newMemStore()
	clock := newFakeClock(time.Now().UTC())
	guard := storecall.NewGuard(storecall.Config{Timeout: time.Second}, logger)

	videos := fakeVideos{store}
	comments := fakeComments{store}
	channels := fakeChannels{store}
	likes := fakeLikes{store}

	registry := services.NewTargetRegistry(videos, comments)
	ledger := services.NewLedgerService(likes, registry, fakeTxManager{}, guard, logger)
	reconciler := services.NewCounterReconciler(registry, channels, logger)
	views := services.NewViewDeduplicator(videos, fakeViews{store}, logger)
	notifications := services.NewNotificationService(
		fakeNotifications{store}, fakeUsers{store}, videos, comments, channels, fakeSubscriptions{store}, o.cfg, logger,
	).WithClock(clock.Now)
	rollup := services.NewAnalyticsRollup(fakeStats{store}, logger)
	dispatcher := services.NewDispatcher(services.DispatcherConfig{Workers: 128, Timeout: 5 * time.Second}, logger)

	var notifier services.Notifier = notifications
	if o.notifier != nil {
		notifier = o.notifier
	}
	engagement := services.NewEngagementService(
		ledger, reconciler, views, notifier, rollup,
		channels, videos, comments, fakeSubscriptions{store}, fakeWatchLists{store},
		dispatcher, o.cfg, logger,
	)
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	return &harness{
		store:         store,
		clock:         clock,
		registry:      registry,
		ledger:        ledger,
		reconciler:    reconciler,
		views:         views,
		notifications: notifications,
		rollup:        rollup,
		dispatcher:    dispatcher,
		engagement:    engagement,
		watchLists:    services.NewWatchListService(fakeWatchLists{store}, videos, logger),
	}
}

// world 是常用的测试数据：频道主、观众与一个视频。
type world struct {
	owner   *po.User
	viewer  *po.User
	channel *po.Channel
	video   *po.Video
}

func (h *harness) seed() world {
	owner := h.store.addUser("owner")
	viewer := h.store.addUser("viewer")
	channel := h.store.addChannel(owner.ID)
	video := h.store.addVideo(channel)
	return world{owner: owner, viewer: viewer, channel: channel, video: video}
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, services.NotifyEvent) ([]*po.Notification, error) {
	return nil, errStorage
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(context.Context, services.NotifyEvent) ([]*po.Notification, error) {
	panic("notifier exploded")
}

func errorsIsForbidden(err error) bool { return kerrors.IsForbidden(err) }
