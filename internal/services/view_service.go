package services

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 会话 ID 上限，超出视为非法输入。
const maxSessionIDLength = 128

// ViewIdentity 是观看请求中可用于识别观看者的信息，按 actor > session > ip 取第一个可用项。
type ViewIdentity struct {
	ActorID   *uuid.UUID
	SessionID string
	IP        string
}

// Resolve 返回去重键与身份来源；三者均缺失时 ok 为 false。
// 同一 NAT 出口下的匿名观看者会合并为同一身份。
func (i ViewIdentity) Resolve() (key string, kind po.IdentityKind, ok bool) {
	if i.ActorID != nil && *i.ActorID != uuid.Nil {
		return string(po.IdentityActor) + ":" + i.ActorID.String(), po.IdentityActor, true
	}
	if session := strings.TrimSpace(i.SessionID); session != "" {
		return string(po.IdentitySession) + ":" + session, po.IdentitySession, true
	}
	if ip := normalizeIP(i.IP); ip != "" {
		return string(po.IdentityIP) + ":" + ip, po.IdentityIP, true
	}
	return "", "", false
}

func normalizeIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// ViewCommand 描述一次观看上报。
type ViewCommand struct {
	VideoID           uuid.UUID
	Identity          ViewIdentity
	DurationSeconds   int32
	WatchedPercentage float64
}

// ViewOutcome 是观看去重的结果及所属视频。
type ViewOutcome struct {
	Result vo.ViewResult
	Video  *po.Video
}

// ViewDeduplicator 按 (video, identity) 去重观看，并维护 views/unique_views 计数。
type ViewDeduplicator struct {
	videos VideosRepo
	views  VideoViewsRepo
	now    func() time.Time
	log    *log.Helper
}

// NewViewDeduplicator 构造 ViewDeduplicator。
func NewViewDeduplicator(videos VideosRepo, views VideoViewsRepo, logger log.Logger) *ViewDeduplicator {
	return &ViewDeduplicator{
		videos: videos,
		views:  views,
		now:    time.Now,
		log:    log.NewHelper(logger),
	}
}

// RecordView 记录一次观看：
//   - views 每次请求都 +1；
//   - 身份首次出现时 unique_views +1；
//   - 重复观看时 duration 与 watched_percentage 取最大值合并。
func (d *ViewDeduplicator) RecordView(ctx context.Context, cmd ViewCommand) (*ViewOutcome, error) {
	if cmd.VideoID == uuid.Nil {
		return nil, ValidationError("video_id is required")
	}
	if cmd.DurationSeconds < 0 {
		return nil, ValidationError("duration must not be negative")
	}
	if cmd.WatchedPercentage < 0 || cmd.WatchedPercentage > 100 {
		return nil, ValidationError("watched percentage must be within [0, 100]")
	}
	if len(cmd.Identity.SessionID) > maxSessionIDLength {
		return nil, ValidationError("session id too long")
	}
	key, kind, ok := cmd.Identity.Resolve()
	if !ok {
		return nil, ValidationError("viewer identity is required")
	}

	video, err := d.videos.FindActive(ctx, nil, cmd.VideoID)
	if err != nil {
		return nil, translate("videos.find_active", err)
	}

	input := repositories.RecordViewInput{
		VideoID:           cmd.VideoID,
		IdentityKey:       key,
		IdentityKind:      kind,
		DurationSeconds:   cmd.DurationSeconds,
		WatchedPercentage: cmd.WatchedPercentage,
		SeenAt:            d.now().UTC(),
	}
	switch kind {
	case po.IdentityActor:
		input.ActorID = cmd.Identity.ActorID
	case po.IdentitySession:
		session := strings.TrimSpace(cmd.Identity.SessionID)
		input.SessionID = &session
	case po.IdentityIP:
		ip := normalizeIP(cmd.Identity.IP)
		input.IPAddress = &ip
	}

	_, inserted, err := d.views.InsertOrMerge(ctx, nil, input)
	if err != nil {
		return nil, translate("video_views.insert_or_merge", err)
	}
	views, uniqueViews, err := d.videos.IncrementViews(ctx, nil, cmd.VideoID, inserted)
	if err != nil {
		return nil, translate("videos.increment_views", err)
	}
	video.Views = views
	video.UniqueViews = uniqueViews

	return &ViewOutcome{
		Result: vo.ViewResult{Views: views, UniqueViews: uniqueViews, IsUnique: inserted},
		Video:  video,
	}, nil
}
