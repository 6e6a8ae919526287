package services

import (
	"context"
	"errors"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/po"
	"github.com/bionicotaku/lingo-services-engagement/internal/models/vo"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 唯一冲突后只按更新路径重试一次。
const maxVoteAttempts = 2

// errVoteRaced 表示事务内观察到的账本状态已被并发请求改变。
var errVoteRaced = errors.New("vote ledger raced")

// VoteCommand 描述一次投票请求。
type VoteCommand struct {
	ActorID    uuid.UUID
	TargetType po.TargetType
	TargetID   uuid.UUID
	Value      po.VoteValue
}

// LedgerOutcome 是账本写入结果。
type LedgerOutcome struct {
	Operation vo.VoteOperation
	Record    *po.Like // 删除时为 nil
	Previous  *po.Like // 新建时为 nil
	Target    TargetInfo
}

// LikeDelta 返回本次变化对"点赞数"的净影响，用于日统计。
func (o *LedgerOutcome) LikeDelta() int64 {
	if o == nil {
		return 0
	}
	return likeIndicator(o.Record) - likeIndicator(o.Previous)
}

func likeIndicator(like *po.Like) int64 {
	if like != nil && like.Value == po.VoteLike {
		return 1
	}
	return 0
}

// LedgerService 维护 (actor, target) 唯一的投票账本。
type LedgerService struct {
	likes     LikesRepo
	targets   *TargetRegistry
	txManager txmanager.Manager
	guard     *storecall.Guard
	log       *log.Helper
}

// NewLedgerService 构造 LedgerService。
func NewLedgerService(likes LikesRepo, targets *TargetRegistry, tx txmanager.Manager, guard *storecall.Guard, logger log.Logger) *LedgerService {
	return &LedgerService{
		likes:     likes,
		targets:   targets,
		txManager: tx,
		guard:     guard,
		log:       log.NewHelper(logger),
	}
}

// ApplyVote 按 toggle 语义写入账本：
//   - 无记录时创建；
//   - 同值再次投票视为撤销并删除；
//   - 异值时改写立场。
//
// 目标不存在时不触碰账本；并发插入触发唯一冲突时按更新路径重试一次，仍冲突返回 ConflictError。
func (s *LedgerService) ApplyVote(ctx context.Context, cmd VoteCommand) (*LedgerOutcome, error) {
	if cmd.ActorID == uuid.Nil || cmd.TargetID == uuid.Nil {
		return nil, ValidationError("actor_id and target_id are required")
	}
	if !cmd.Value.Valid() {
		return nil, ValidationError("vote value must be 1 or -1")
	}
	target, err := s.targets.Lookup(cmd.TargetType)
	if err != nil {
		return nil, err
	}
	info, err := target.Resolve(ctx, cmd.TargetID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxVoteAttempts; attempt++ {
		outcome, err := s.applyOnce(ctx, cmd, attempt > 1)
		if err == nil {
			outcome.Target = info
			return outcome, nil
		}
		if !errors.Is(err, errVoteRaced) {
			return nil, translate("ledger.apply_vote", err)
		}
		s.log.WithContext(ctx).Warnf("vote ledger raced: actor=%s target=%s/%s attempt=%d", cmd.ActorID, cmd.TargetType, cmd.TargetID, attempt)
	}
	return nil, ConflictError("concurrent vote on %s %s", cmd.TargetType, cmd.TargetID)
}

// applyOnce 在单个事务内完成读-改-写。retry 为 true 时走更新路径：同值不再撤销，直接收敛到该立场。
func (s *LedgerService) applyOnce(ctx context.Context, cmd VoteCommand, retry bool) (*LedgerOutcome, error) {
	var outcome *LedgerOutcome
	err := s.guard.Do(ctx, "ledger.apply_vote", func(ctx context.Context) error {
		return s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
			existing, err := s.likes.Get(txCtx, sess, cmd.ActorID, cmd.TargetType, cmd.TargetID)
			switch {
			case errors.Is(err, repositories.ErrLikeNotFound):
				record, err := s.likes.Insert(txCtx, sess, cmd.ActorID, cmd.TargetType, cmd.TargetID, cmd.Value)
				if err != nil {
					if repositories.IsUniqueViolation(err) {
						return errVoteRaced
					}
					return err
				}
				outcome = &LedgerOutcome{Operation: vo.VoteCreated, Record: record}
			case err != nil:
				return err
			case existing.Value == cmd.Value && retry:
				outcome = &LedgerOutcome{Operation: vo.VoteUpdated, Record: existing, Previous: existing}
			case existing.Value == cmd.Value:
				if err := s.likes.Delete(txCtx, sess, cmd.ActorID, cmd.TargetType, cmd.TargetID, existing.Value); err != nil {
					if errors.Is(err, repositories.ErrLikeNotFound) {
						return errVoteRaced
					}
					return err
				}
				outcome = &LedgerOutcome{Operation: vo.VoteDeleted, Previous: existing}
			default:
				record, err := s.likes.UpdateValue(txCtx, sess, cmd.ActorID, cmd.TargetType, cmd.TargetID, existing.Value, cmd.Value)
				if err != nil {
					if errors.Is(err, repositories.ErrLikeNotFound) {
						return errVoteRaced
					}
					return err
				}
				outcome = &LedgerOutcome{Operation: vo.VoteUpdated, Record: record, Previous: existing}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}
