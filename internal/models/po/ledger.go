package po

import (
	"time"

	"github.com/google/uuid"
)

// TargetType 标识可被投票的实体类型。
// 对应 engagement.likes.target_type 的取值。
type TargetType string

// 可投票的目标类型
const (
	TargetVideo   TargetType = "video"
	TargetComment TargetType = "comment"
)

// ParseTargetType 将外部输入转换为 TargetType，未知取值返回 false。
func ParseTargetType(raw string) (TargetType, bool) {
	switch TargetType(raw) {
	case TargetVideo:
		return TargetVideo, true
	case TargetComment:
		return TargetComment, true
	default:
		return "", false
	}
}

// VoteValue 是账本中记录的立场：+1 点赞，-1 点踩。
type VoteValue int16

// 投票取值
const (
	VoteLike    VoteValue = 1
	VoteDislike VoteValue = -1
)

// Valid 判断取值是否合法。
func (v VoteValue) Valid() bool {
	return v == VoteLike || v == VoteDislike
}

// Like 表示 engagement.likes 表的行，每个 (actor, target) 至多一条。
type Like struct {
	ActorID    uuid.UUID
	TargetType TargetType
	TargetID   uuid.UUID
	Value      VoteValue
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LikeTally 是按目标聚合的账本计数。
type LikeTally struct {
	Likes    int64
	Dislikes int64
}

// IdentityKind 标识观看者身份的来源。
type IdentityKind string

// 身份链：actor > session > ip
const (
	IdentityActor   IdentityKind = "actor"
	IdentitySession IdentityKind = "session"
	IdentityIP      IdentityKind = "ip"
)

// VideoView 表示 engagement.video_views 表的行，每个 (video, identity) 至多一条。
type VideoView struct {
	VideoID           uuid.UUID
	IdentityKey       string
	IdentityKind      IdentityKind
	ActorID           *uuid.UUID
	SessionID         *string
	IPAddress         *string
	DurationSeconds   int32
	WatchedPercentage float64
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
}
