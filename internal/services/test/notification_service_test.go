package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPriorityFor(t *testing.T) {
	t.Parallel()

	cases := map[po.NotificationType]po.NotificationPriority{
		po.NotificationVideoLike:     po.PriorityLow,
		po.NotificationCommentLike:   po.PriorityLow,
		po.NotificationNewComment:    po.PriorityNormal,
		po.NotificationCommentReply:  po.PriorityNormal,
		po.NotificationMention:       po.PriorityNormal,
		po.NotificationNewSubscriber: po.PriorityNormal,
		po.NotificationVideoUpload:   po.PriorityNormal,
		po.NotificationMilestone:     po.PriorityHigh,
		po.NotificationSystem:        po.PriorityHigh,
	}
	for typ, want := range cases {
		require.Equal(t, want, services.PriorityFor(typ), typ)
	}
}

func TestExtractMentions(t *testing.T) {
	t.Parallel()

	got := services.ExtractMentions("hey @Alice, @bob and @alice! mail me@example.com @x_1", 10)
	require.Equal(t, []string{"alice", "bob", "example", "x_1"}, got)
	require.Equal(t, []string{"alice"}, services.ExtractMentions("@alice @bob", 1))
	require.Empty(t, services.ExtractMentions("no mentions here", 10))
}

func TestNotificationService_SelfSuppression(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	videoID := w.video.ID

	created, err := h.notifications.Notify(context.Background(), services.NotifyEvent{
		Type:    po.NotificationVideoLike,
		ActorID: &w.owner.ID,
		Refs:    po.NotificationRefs{VideoID: &videoID},
	})
	require.NoError(t, err)
	require.Empty(t, created)
	require.Zero(t, h.store.notificationCount())
}

func TestNotificationService_DedupWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()
	videoID := w.video.ID
	evt := services.NotifyEvent{
		Type:    po.NotificationVideoLike,
		ActorID: &w.viewer.ID,
		Refs:    po.NotificationRefs{VideoID: &videoID},
	}

	first, err := h.notifications.Notify(ctx, evt)
	require.NoError(t, err)
	require.Len(t, first, 1)
	n := first[0]
	require.Equal(t, w.owner.ID, n.RecipientID)
	require.Equal(t, po.PriorityLow, n.Priority)
	require.Equal(t, po.NotificationUnread, n.Status)
	require.Equal(t, n.CreatedAt.Add(30*24*time.Hour), n.ExpiresAt)
	require.Contains(t, n.Message, "Viewer")

	h.clock.Advance(30 * time.Second)
	second, err := h.notifications.Notify(ctx, evt)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, n.ID, second[0].ID)
	require.Equal(t, 1, h.store.notificationCount())

	h.clock.Advance(31 * time.Second)
	third, err := h.notifications.Notify(ctx, evt)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.NotEqual(t, n.ID, third[0].ID)
	require.Equal(t, 2, h.store.notificationCount())
}

func TestNotificationService_DifferentRefsAreNotDuplicates(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()
	other := h.store.addVideo(w.channel)
	first, second := w.video.ID, other.ID

	_, err := h.notifications.Notify(ctx, services.NotifyEvent{Type: po.NotificationVideoLike, ActorID: &w.viewer.ID, Refs: po.NotificationRefs{VideoID: &first}})
	require.NoError(t, err)
	_, err = h.notifications.Notify(ctx, services.NotifyEvent{Type: po.NotificationVideoLike, ActorID: &w.viewer.ID, Refs: po.NotificationRefs{VideoID: &second}})
	require.NoError(t, err)
	require.Equal(t, 2, h.store.notificationCount())
}

func TestNotificationService_VideoUploadFanoutPartialFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, withConfig(services.Config{FanoutBatchSize: 2}))
	w := h.seed()
	subscribers := make([]uuid.UUID, 0, 5)
	for range 5 {
		id := uuid.New()
		subscribers = append(subscribers, id)
		h.store.subscribe(id, w.channel.ID)
	}
	h.store.subscribe(w.owner.ID, w.channel.ID)

	batches := 0
	h.store.insertBatchHook = func([]*po.Notification) error {
		batches++
		if batches == 2 {
			return errStorage
		}
		return nil
	}

	videoID, channelID := w.video.ID, w.channel.ID
	created, err := h.notifications.Notify(context.Background(), services.NotifyEvent{
		Type:    po.NotificationVideoUpload,
		ActorID: &w.owner.ID,
		Refs:    po.NotificationRefs{VideoID: &videoID, ChannelID: &channelID},
	})
	require.NoError(t, err)
	require.Equal(t, 3, batches)
	require.Len(t, created, 3)
	require.Equal(t, 3, h.store.notificationCount())
	require.Empty(t, h.store.notificationsFor(w.owner.ID))
}

func TestNotificationService_AllBatchesFail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	h.store.insertBatchHook = func([]*po.Notification) error { return errStorage }
	videoID := w.video.ID

	_, err := h.notifications.Notify(context.Background(), services.NotifyEvent{
		Type:    po.NotificationNewComment,
		ActorID: &w.viewer.ID,
		Refs:    po.NotificationRefs{VideoID: &videoID},
	})
	require.Error(t, err)
	require.True(t, services.IsDependency(err))
}

func TestNotificationService_Mentions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	alice := h.store.addUser("alice")
	bob := h.store.addUser("bob")
	videoID := w.video.ID

	created, err := h.notifications.Notify(context.Background(), services.NotifyEvent{
		Type:    po.NotificationMention,
		ActorID: &w.viewer.ID,
		Refs:    po.NotificationRefs{VideoID: &videoID},
		Text:    "@Alice @alice @bob @ghost @viewer great video",
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Len(t, h.store.notificationsFor(alice.ID), 1)
	require.Len(t, h.store.notificationsFor(bob.ID), 1)
	require.Empty(t, h.store.notificationsFor(w.viewer.ID))
}

func TestNotificationService_MilestoneUsesExplicitRecipients(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()

	created, err := h.notifications.Notify(context.Background(), services.NotifyEvent{
		Type:       po.NotificationMilestone,
		Recipients: []uuid.UUID{w.owner.ID, w.owner.ID, uuid.Nil},
		Title:      "Milestone reached",
		Message:    "100 subscribers",
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, po.PriorityHigh, created[0].Priority)
	require.Nil(t, created[0].SenderID)
	require.Equal(t, "100 subscribers", created[0].Message)
}

func TestNotificationService_RejectsUnknownTypeAndMissingRefs(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()

	_, err := h.notifications.Notify(ctx, services.NotifyEvent{Type: "POKE"})
	require.True(t, services.IsValidation(err))

	_, err = h.notifications.Notify(ctx, services.NotifyEvent{Type: po.NotificationVideoLike, ActorID: &w.viewer.ID})
	require.True(t, services.IsValidation(err))

	missing := uuid.New()
	_, err = h.notifications.Notify(ctx, services.NotifyEvent{Type: po.NotificationVideoLike, ActorID: &w.viewer.ID, Refs: po.NotificationRefs{VideoID: &missing}})
	require.True(t, services.IsNotFound(err))
}

func TestNotificationService_Inbox(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	w := h.seed()
	ctx := context.Background()
	channelID := w.channel.ID

	for range 3 {
		actor := h.store.addUser("fan" + uuid.NewString()[:8])
		_, err := h.notifications.Notify(ctx, services.NotifyEvent{
			Type:    po.NotificationNewSubscriber,
			ActorID: &actor.ID,
			Refs:    po.NotificationRefs{ChannelID: &channelID},
		})
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}

	page, err := h.notifications.List(ctx, services.ListNotificationsInput{RecipientID: w.owner.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.EqualValues(t, 3, page.Unread)
	require.True(t, page.Items[0].CreatedAt.After(page.Items[2].CreatedAt))

	updated, err := h.notifications.MarkRead(ctx, w.owner.ID, []uuid.UUID{page.Items[0].ID, page.Items[0].ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, updated)

	// 其他人无法标记不属于自己的通知
	updated, err = h.notifications.MarkRead(ctx, w.viewer.ID, []uuid.UUID{page.Items[1].ID})
	require.NoError(t, err)
	require.Zero(t, updated)

	unread, err := h.notifications.UnreadCount(ctx, w.owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	unreadPage, err := h.notifications.List(ctx, services.ListNotificationsInput{RecipientID: w.owner.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unreadPage.Items, 2)

	updated, err = h.notifications.MarkAllRead(ctx, w.owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	h.clock.Advance(31 * 24 * time.Hour)
	page, err = h.notifications.List(ctx, services.ListNotificationsInput{RecipientID: w.owner.ID})
	require.NoError(t, err)
	require.Empty(t, page.Items)

	purged, err := h.notifications.PurgeExpired(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, purged)
	require.Zero(t, h.store.notificationCount())

	_, err = h.notifications.MarkRead(ctx, w.owner.ID, nil)
	require.True(t, services.IsValidation(err))
}
