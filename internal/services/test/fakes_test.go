package services_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeTxManager struct{}

type fakeSession struct{ ctx context.Context }

func (fakeTxManager) WithinTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, fakeSession{ctx: ctx})
}

func (fakeTxManager) WithinReadOnlyTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, fakeSession{ctx: ctx})
}

func (fakeSession) Tx() pgx.Tx { return nil }

func (s fakeSession) Context() context.Context { return s.ctx }

func discardLogger() log.Logger { return log.NewStdLogger(io.Discard) }

type likeKey struct {
	actor  uuid.UUID
	typ    po.TargetType
	target uuid.UUID
}

type viewKey struct {
	video uuid.UUID
	key   string
}

type pairKey struct{ a, b uuid.UUID }

type statsKey struct {
	channel uuid.UUID
	day     string
}

// memStore 是所有仓储接口的内存实现，按表拆分为多个适配器类型。
type memStore struct {
	mu sync.Mutex

	users         map[uuid.UUID]*po.User
	channels      map[uuid.UUID]*po.Channel
	videos        map[uuid.UUID]*po.Video
	comments      map[uuid.UUID]*po.Comment
	likes         map[likeKey]*po.Like
	views         map[viewKey]*po.VideoView
	subscriptions map[pairKey]time.Time
	notifications []*po.Notification
	stats         map[statsKey]*po.ChannelDailyStats
	watchLater    map[pairKey]time.Time
	history       map[pairKey]*po.WatchHistoryEntry

	// 故障注入
	likeInsertHook    func(k likeKey) error
	likeGetErr        error
	insertBatchHook   func(items []*po.Notification) error
	reconcileLikesErr map[uuid.UUID]error
	adjustRepliesErr  error
}

func newMemStore() *memStore {
	return &memStore{
		users:             map[uuid.UUID]*po.User{},
		channels:          map[uuid.UUID]*po.Channel{},
		videos:            map[uuid.UUID]*po.Video{},
		comments:          map[uuid.UUID]*po.Comment{},
		likes:             map[likeKey]*po.Like{},
		views:             map[viewKey]*po.VideoView{},
		subscriptions:     map[pairKey]time.Time{},
		stats:             map[statsKey]*po.ChannelDailyStats{},
		watchLater:        map[pairKey]time.Time{},
		history:           map[pairKey]*po.WatchHistoryEntry{},
		reconcileLikesErr: map[uuid.UUID]error{},
	}
}

func (m *memStore) addUser(handle string) *po.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &po.User{ID: uuid.New(), Handle: handle, DisplayName: strings.ToUpper(handle[:1]) + handle[1:]}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addChannel(owner uuid.UUID) *po.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &po.Channel{ID: uuid.New(), OwnerID: owner, Name: "channel"}
	m.channels[c.ID] = c
	return c
}

func (m *memStore) addVideo(channel *po.Channel) *po.Video {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := &po.Video{ID: uuid.New(), ChannelID: channel.ID, OwnerID: channel.OwnerID, Title: "video", PublishedAt: time.Now().UTC()}
	m.videos[v.ID] = v
	return v
}

func (m *memStore) addComment(video *po.Video, author uuid.UUID, parent *uuid.UUID) *po.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &po.Comment{ID: uuid.New(), VideoID: video.ID, AuthorID: author, ParentID: parent, Body: "hello", CreatedAt: time.Now().UTC()}
	m.comments[c.ID] = c
	return c
}

func (m *memStore) video(id uuid.UUID) po.Video {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.videos[id]
}

func (m *memStore) channel(id uuid.UUID) po.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.channels[id]
}

func (m *memStore) comment(id uuid.UUID) po.Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.comments[id]
}

func (m *memStore) notificationsFor(recipient uuid.UUID) []*po.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*po.Notification
	for _, n := range m.notifications {
		if n.RecipientID == recipient {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memStore) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *memStore) statsFor(channel uuid.UUID, day time.Time) po.ChannelDailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[statsKey{channel, day.UTC().Format(time.DateOnly)}]; ok {
		return *s
	}
	return po.ChannelDailyStats{}
}

func (m *memStore) tallyLocked(typ po.TargetType, target uuid.UUID) po.LikeTally {
	var t po.LikeTally
	for k, l := range m.likes {
		if k.typ != typ || k.target != target {
			continue
		}
		if l.Value == po.VoteLike {
			t.Likes++
		} else {
			t.Dislikes++
		}
	}
	return t
}

func (m *memStore) subscriberCountLocked(channel uuid.UUID) int64 {
	var n int64
	for k := range m.subscriptions {
		if k.b == channel {
			n++
		}
	}
	return n
}

func floor0(v int64) int64 { return max(v, 0) }

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func refEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ---- likes ----

type fakeLikes struct{ m *memStore }

func (f fakeLikes) Get(_ context.Context, _ txmanager.Session, actor uuid.UUID, typ po.TargetType, target uuid.UUID) (*po.Like, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.likeGetErr != nil {
		return nil, f.m.likeGetErr
	}
	l, ok := f.m.likes[likeKey{actor, typ, target}]
	if !ok {
		return nil, repositories.ErrLikeNotFound
	}
	cp := *l
	return &cp, nil
}

func (f fakeLikes) Insert(_ context.Context, _ txmanager.Session, actor uuid.UUID, typ po.TargetType, target uuid.UUID, value po.VoteValue) (*po.Like, error) {
	k := likeKey{actor, typ, target}
	if hook := f.m.likeInsertHook; hook != nil {
		if err := hook(k); err != nil {
			return nil, err
		}
	}
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.likes[k]; ok {
		return nil, errUniqueViolation
	}
	now := time.Now().UTC()
	l := &po.Like{ActorID: actor, TargetType: typ, TargetID: target, Value: value, CreatedAt: now, UpdatedAt: now}
	f.m.likes[k] = l
	cp := *l
	return &cp, nil
}

func (f fakeLikes) UpdateValue(_ context.Context, _ txmanager.Session, actor uuid.UUID, typ po.TargetType, target uuid.UUID, expected, value po.VoteValue) (*po.Like, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	l, ok := f.m.likes[likeKey{actor, typ, target}]
	if !ok || l.Value != expected {
		return nil, repositories.ErrLikeNotFound
	}
	l.Value = value
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	return &cp, nil
}

func (f fakeLikes) Delete(_ context.Context, _ txmanager.Session, actor uuid.UUID, typ po.TargetType, target uuid.UUID, expected po.VoteValue) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := likeKey{actor, typ, target}
	l, ok := f.m.likes[k]
	if !ok || l.Value != expected {
		return repositories.ErrLikeNotFound
	}
	delete(f.m.likes, k)
	return nil
}

// putLike 直接写入账本，绕过服务层。
func (m *memStore) putLike(actor uuid.UUID, typ po.TargetType, target uuid.UUID, value po.VoteValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.likes[likeKey{actor, typ, target}] = &po.Like{ActorID: actor, TargetType: typ, TargetID: target, Value: value}
}

// ---- users ----

type fakeUsers struct{ m *memStore }

func (f fakeUsers) FindActive(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	u, ok := f.m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) FindActiveByHandles(_ context.Context, _ txmanager.Session, handles []string) ([]*po.User, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	want := map[string]struct{}{}
	for _, h := range handles {
		want[strings.ToLower(h)] = struct{}{}
	}
	var out []*po.User
	for _, u := range f.m.users {
		if _, ok := want[strings.ToLower(u.Handle)]; ok && u.DeletedAt == nil {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- channels ----

type fakeChannels struct{ m *memStore }

func (f fakeChannels) FindActive(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Channel, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.channels[id]
	if !ok || c.DeletedAt != nil {
		return nil, repositories.ErrChannelNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeChannels) AdjustCounters(_ context.Context, _ txmanager.Session, id uuid.UUID, d repositories.ChannelCounterDelta) (*po.Channel, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.channels[id]
	if !ok {
		return nil, repositories.ErrChannelNotFound
	}
	c.Subscribers = floor0(c.Subscribers + d.Subscribers)
	c.Views = floor0(c.Views + d.Views)
	c.Videos = floor0(c.Videos + d.Videos)
	cp := *c
	return &cp, nil
}

func (f fakeChannels) ReconcileSubscribers(_ context.Context, _ txmanager.Session, id uuid.UUID) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.channels[id]
	if !ok {
		return 0, repositories.ErrChannelNotFound
	}
	c.Subscribers = f.m.subscriberCountLocked(id)
	return c.Subscribers, nil
}

func (f fakeChannels) ListSubscriberDrift(_ context.Context, _ txmanager.Session, limit int32) ([]uuid.UUID, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range f.m.channels {
		if c.DeletedAt == nil && c.Subscribers != f.m.subscriberCountLocked(id) {
			ids = append(ids, id)
		}
	}
	return limitIDs(sortedIDs(ids), limit), nil
}

func limitIDs(ids []uuid.UUID, limit int32) []uuid.UUID {
	if int(limit) < len(ids) {
		return ids[:limit]
	}
	return ids
}

// ---- videos ----

type fakeVideos struct{ m *memStore }

func (f fakeVideos) FindActive(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Video, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	v, ok := f.m.videos[id]
	if !ok || v.DeletedAt != nil {
		return nil, repositories.ErrVideoNotFound
	}
	cp := *v
	return &cp, nil
}

func (f fakeVideos) Create(_ context.Context, _ txmanager.Session, in repositories.CreateVideoInput) (*po.Video, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	now := time.Now().UTC()
	v := &po.Video{
		ID: uuid.New(), ChannelID: in.ChannelID, OwnerID: in.OwnerID, Title: in.Title, Description: in.Description,
		MediaURL: in.MediaURL, MediaKey: in.MediaKey, PublishedAt: now, CreatedAt: now, UpdatedAt: now,
	}
	f.m.videos[v.ID] = v
	cp := *v
	return &cp, nil
}

func (f fakeVideos) IncrementViews(_ context.Context, _ txmanager.Session, id uuid.UUID, unique bool) (int64, int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	v, ok := f.m.videos[id]
	if !ok {
		return 0, 0, repositories.ErrVideoNotFound
	}
	v.Views++
	if unique {
		v.UniqueViews++
	}
	return v.Views, v.UniqueViews, nil
}

func (f fakeVideos) AdjustComments(_ context.Context, _ txmanager.Session, id uuid.UUID, delta int64) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	v, ok := f.m.videos[id]
	if !ok {
		return 0, repositories.ErrVideoNotFound
	}
	v.Comments = floor0(v.Comments + delta)
	return v.Comments, nil
}

func (f fakeVideos) ReconcileLikes(_ context.Context, _ txmanager.Session, id uuid.UUID) (po.LikeTally, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if err := f.m.reconcileLikesErr[id]; err != nil {
		return po.LikeTally{}, err
	}
	v, ok := f.m.videos[id]
	if !ok {
		return po.LikeTally{}, repositories.ErrVideoNotFound
	}
	t := f.m.tallyLocked(po.TargetVideo, id)
	v.Likes, v.Dislikes = t.Likes, t.Dislikes
	return t, nil
}

func (f fakeVideos) ListLikeDrift(_ context.Context, _ txmanager.Session, limit int32) ([]uuid.UUID, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var ids []uuid.UUID
	for id, v := range f.m.videos {
		if v.DeletedAt == nil && f.m.tallyLocked(po.TargetVideo, id) != (po.LikeTally{Likes: v.Likes, Dislikes: v.Dislikes}) {
			ids = append(ids, id)
		}
	}
	return limitIDs(sortedIDs(ids), limit), nil
}

// ---- comments ----

type fakeComments struct{ m *memStore }

func (f fakeComments) FindActive(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Comment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.comments[id]
	if !ok || c.DeletedAt != nil {
		return nil, repositories.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (f fakeComments) Create(_ context.Context, _ txmanager.Session, in repositories.CreateCommentInput) (*po.Comment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	now := time.Now().UTC()
	c := &po.Comment{ID: uuid.New(), VideoID: in.VideoID, AuthorID: in.AuthorID, ParentID: in.ParentID, Body: in.Body, CreatedAt: now, UpdatedAt: now}
	f.m.comments[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f fakeComments) SoftDelete(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Comment, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.comments[id]
	if !ok || c.DeletedAt != nil {
		return nil, repositories.ErrCommentNotFound
	}
	now := time.Now().UTC()
	c.DeletedAt = &now
	cp := *c
	return &cp, nil
}

func (f fakeComments) AdjustReplies(_ context.Context, _ txmanager.Session, id uuid.UUID, delta int64) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if f.m.adjustRepliesErr != nil {
		return f.m.adjustRepliesErr
	}
	c, ok := f.m.comments[id]
	if !ok {
		return repositories.ErrCommentNotFound
	}
	c.Replies = floor0(c.Replies + delta)
	return nil
}

func (f fakeComments) ReconcileLikes(_ context.Context, _ txmanager.Session, id uuid.UUID) (po.LikeTally, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	c, ok := f.m.comments[id]
	if !ok {
		return po.LikeTally{}, repositories.ErrCommentNotFound
	}
	t := f.m.tallyLocked(po.TargetComment, id)
	c.Likes, c.Dislikes = t.Likes, t.Dislikes
	return t, nil
}

func (f fakeComments) ListLikeDrift(_ context.Context, _ txmanager.Session, limit int32) ([]uuid.UUID, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range f.m.comments {
		if c.DeletedAt == nil && f.m.tallyLocked(po.TargetComment, id) != (po.LikeTally{Likes: c.Likes, Dislikes: c.Dislikes}) {
			ids = append(ids, id)
		}
	}
	return limitIDs(sortedIDs(ids), limit), nil
}

// ---- video views ----

type fakeViews struct{ m *memStore }

func (f fakeViews) InsertOrMerge(_ context.Context, _ txmanager.Session, in repositories.RecordViewInput) (*po.VideoView, bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := viewKey{in.VideoID, in.IdentityKey}
	if v, ok := f.m.views[k]; ok {
		v.DurationSeconds = max(v.DurationSeconds, in.DurationSeconds)
		v.WatchedPercentage = max(v.WatchedPercentage, in.WatchedPercentage)
		v.LastSeenAt = in.SeenAt
		cp := *v
		return &cp, false, nil
	}
	v := &po.VideoView{
		VideoID: in.VideoID, IdentityKey: in.IdentityKey, IdentityKind: in.IdentityKind,
		ActorID: in.ActorID, SessionID: in.SessionID, IPAddress: in.IPAddress,
		DurationSeconds: in.DurationSeconds, WatchedPercentage: in.WatchedPercentage,
		FirstSeenAt: in.SeenAt, LastSeenAt: in.SeenAt,
	}
	f.m.views[k] = v
	cp := *v
	return &cp, true, nil
}

func (m *memStore) view(video uuid.UUID, key string) (po.VideoView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[viewKey{video, key}]
	if !ok {
		return po.VideoView{}, false
	}
	return *v, true
}

// ---- subscriptions ----

type fakeSubscriptions struct{ m *memStore }

func (f fakeSubscriptions) Insert(_ context.Context, _ txmanager.Session, subscriber, channel uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := pairKey{subscriber, channel}
	if _, ok := f.m.subscriptions[k]; ok {
		return false, nil
	}
	f.m.subscriptions[k] = time.Now().UTC()
	return true, nil
}

func (f fakeSubscriptions) Delete(_ context.Context, _ txmanager.Session, subscriber, channel uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := pairKey{subscriber, channel}
	if _, ok := f.m.subscriptions[k]; !ok {
		return false, nil
	}
	delete(f.m.subscriptions, k)
	return true, nil
}

func (f fakeSubscriptions) ListSubscriberIDs(_ context.Context, _ txmanager.Session, channel uuid.UUID) ([]uuid.UUID, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var ids []uuid.UUID
	for k := range f.m.subscriptions {
		if k.b == channel {
			ids = append(ids, k.a)
		}
	}
	return sortedIDs(ids), nil
}

func (m *memStore) subscribe(subscriber, channel uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[pairKey{subscriber, channel}] = time.Now().UTC()
}

// ---- notifications ----

type fakeNotifications struct{ m *memStore }

func (f fakeNotifications) FindRecentDuplicates(_ context.Context, _ txmanager.Session, recipients []uuid.UUID, key repositories.DedupKey, since time.Time) (map[uuid.UUID]*po.Notification, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	want := map[uuid.UUID]struct{}{}
	for _, r := range recipients {
		want[r] = struct{}{}
	}
	out := map[uuid.UUID]*po.Notification{}
	for _, n := range f.m.notifications {
		if _, ok := want[n.RecipientID]; !ok {
			continue
		}
		if n.Type != key.Type || !refEqual(n.SenderID, key.SenderID) || n.CreatedAt.Before(since) {
			continue
		}
		if !refEqual(n.Refs.VideoID, key.Refs.VideoID) || !refEqual(n.Refs.ChannelID, key.Refs.ChannelID) || !refEqual(n.Refs.CommentID, key.Refs.CommentID) {
			continue
		}
		if prev, ok := out[n.RecipientID]; !ok || n.CreatedAt.After(prev.CreatedAt) {
			cp := *n
			out[n.RecipientID] = &cp
		}
	}
	return out, nil
}

func (f fakeNotifications) InsertBatch(_ context.Context, _ txmanager.Session, items []*po.Notification) error {
	if hook := f.m.insertBatchHook; hook != nil {
		if err := hook(items); err != nil {
			return err
		}
	}
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, n := range items {
		cp := *n
		f.m.notifications = append(f.m.notifications, &cp)
	}
	return nil
}

func (f fakeNotifications) List(_ context.Context, _ txmanager.Session, filter repositories.ListNotificationsFilter) ([]*po.Notification, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []*po.Notification
	for _, n := range f.m.notifications {
		if n.RecipientID != filter.RecipientID || !n.ExpiresAt.After(filter.Now) {
			continue
		}
		if filter.Status != nil && n.Status != *filter.Status {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(filter.Offset) >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if int(filter.Limit) < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f fakeNotifications) CountUnread(_ context.Context, _ txmanager.Session, recipient uuid.UUID, now time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, item := range f.m.notifications {
		if item.RecipientID == recipient && item.Status == po.NotificationUnread && item.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (f fakeNotifications) MarkRead(_ context.Context, _ txmanager.Session, recipient uuid.UUID, ids []uuid.UUID, readAt time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	want := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var n int64
	for _, item := range f.m.notifications {
		if _, ok := want[item.ID]; ok && item.RecipientID == recipient && item.Status == po.NotificationUnread {
			item.Status = po.NotificationRead
			at := readAt
			item.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f fakeNotifications) MarkAllRead(_ context.Context, _ txmanager.Session, recipient uuid.UUID, readAt time.Time) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for _, item := range f.m.notifications {
		if item.RecipientID == recipient && item.Status == po.NotificationUnread {
			item.Status = po.NotificationRead
			at := readAt
			item.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f fakeNotifications) PurgeExpired(_ context.Context, _ txmanager.Session, now time.Time, limit int32) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	kept := f.m.notifications[:0]
	var n int64
	for _, item := range f.m.notifications {
		if !item.ExpiresAt.After(now) && n < int64(limit) {
			n++
			continue
		}
		kept = append(kept, item)
	}
	f.m.notifications = kept
	return n, nil
}

// ---- daily stats ----

type fakeStats struct{ m *memStore }

func (f fakeStats) Bump(_ context.Context, _ txmanager.Session, channel uuid.UUID, day time.Time, d repositories.StatsDelta) (*po.ChannelDailyStats, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := statsKey{channel, day.Format(time.DateOnly)}
	s, ok := f.m.stats[k]
	if !ok {
		s = &po.ChannelDailyStats{ChannelID: channel, Day: day}
		f.m.stats[k] = s
	}
	s.Views = floor0(s.Views + d.Views)
	s.Subscribers = floor0(s.Subscribers + d.Subscribers)
	s.Videos = floor0(s.Videos + d.Videos)
	s.Likes = floor0(s.Likes + d.Likes)
	s.Comments = floor0(s.Comments + d.Comments)
	cp := *s
	return &cp, nil
}

func (f fakeStats) Range(_ context.Context, _ txmanager.Session, channel uuid.UUID, from, to time.Time) ([]*po.ChannelDailyStats, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []*po.ChannelDailyStats
	for _, s := range f.m.stats {
		if s.ChannelID == channel && !s.Day.Before(from) && !s.Day.After(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// ---- watch lists ----

type fakeWatchLists struct{ m *memStore }

func (f fakeWatchLists) AddWatchLater(_ context.Context, _ txmanager.Session, user, video uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := pairKey{user, video}
	if _, ok := f.m.watchLater[k]; ok {
		return false, nil
	}
	f.m.watchLater[k] = time.Now().UTC()
	return true, nil
}

func (f fakeWatchLists) RemoveWatchLater(_ context.Context, _ txmanager.Session, user, video uuid.UUID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := pairKey{user, video}
	if _, ok := f.m.watchLater[k]; !ok {
		return false, nil
	}
	delete(f.m.watchLater, k)
	return true, nil
}

func (f fakeWatchLists) ListWatchLater(_ context.Context, _ txmanager.Session, user uuid.UUID, limit, offset int32) ([]*po.WatchLaterEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []*po.WatchLaterEntry
	for k, at := range f.m.watchLater {
		if k.a == user {
			out = append(out, &po.WatchLaterEntry{UserID: k.a, VideoID: k.b, CreatedAt: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return pageSlice(out, limit, offset), nil
}

func (f fakeWatchLists) TouchHistory(_ context.Context, _ txmanager.Session, user, video uuid.UUID, pct float64, at time.Time) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	k := pairKey{user, video}
	if h, ok := f.m.history[k]; ok {
		h.WatchedPercentage = max(h.WatchedPercentage, pct)
		h.LastWatchedAt = at
		return nil
	}
	f.m.history[k] = &po.WatchHistoryEntry{UserID: user, VideoID: video, WatchedPercentage: pct, FirstWatchedAt: at, LastWatchedAt: at}
	return nil
}

func (f fakeWatchLists) ListHistory(_ context.Context, _ txmanager.Session, user uuid.UUID, limit, offset int32) ([]*po.WatchHistoryEntry, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var out []*po.WatchHistoryEntry
	for k, h := range f.m.history {
		if k.a == user {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastWatchedAt.After(out[j].LastWatchedAt) })
	return pageSlice(out, limit, offset), nil
}

func (f fakeWatchLists) ClearHistory(_ context.Context, _ txmanager.Session, user uuid.UUID) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	var n int64
	for k := range f.m.history {
		if k.a == user {
			delete(f.m.history, k)
			n++
		}
	}
	return n, nil
}

func pageSlice[T any](items []T, limit, offset int32) []T {
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

var (
	errStorage         = errors.New("storage exploded")
	errUniqueViolation = &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
)
