package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/storecall"
	"github.com/bionicotaku/lingo-services-engagement/internal/repositories"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 错误原因，随 kratos Error 一起返回给客户端。
const (
	ReasonNotFound        = "NOT_FOUND"
	ReasonConflict        = "CONFLICT"
	ReasonInvalidArgument = "INVALID_ARGUMENT"
	ReasonForbidden       = "FORBIDDEN"
	ReasonDependency      = storecall.ReasonDependencyUnavailable
)

// NotFoundError 表示目标实体不存在或已软删除，调用方必须中止主操作。
func NotFoundError(format string, args ...any) error {
	return kerrors.NotFound(ReasonNotFound, fmt.Sprintf(format, args...))
}

// ConflictError 表示 upsert 重试后仍未消解的唯一性冲突。
func ConflictError(format string, args ...any) error {
	return kerrors.Conflict(ReasonConflict, fmt.Sprintf(format, args...))
}

// ValidationError 表示输入不合法，不重试。
func ValidationError(format string, args ...any) error {
	return kerrors.BadRequest(ReasonInvalidArgument, fmt.Sprintf(format, args...))
}

// ForbiddenError 表示调用者无权操作目标。
func ForbiddenError(format string, args ...any) error {
	return kerrors.Forbidden(ReasonForbidden, fmt.Sprintf(format, args...))
}

// DependencyError 表示存储或下游调用失败。
func DependencyError(op string, cause error) error {
	return storecall.Unavailable(op, cause)
}

// IsNotFound 判断是否为 NotFoundError。
func IsNotFound(err error) bool { return kerrors.IsNotFound(err) }

// IsConflict 判断是否为 ConflictError。
func IsConflict(err error) bool { return kerrors.IsConflict(err) }

// IsValidation 判断是否为 ValidationError。
func IsValidation(err error) bool { return kerrors.IsBadRequest(err) }

// IsDependency 判断是否为 DependencyError。
func IsDependency(err error) bool { return storecall.IsUnavailable(err) }

// translate 将仓储层错误映射为对外的类型化错误。
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		return kerr
	}
	switch {
	case errors.Is(err, repositories.ErrVideoNotFound):
		return NotFoundError("video not found")
	case errors.Is(err, repositories.ErrCommentNotFound):
		return NotFoundError("comment not found")
	case errors.Is(err, repositories.ErrChannelNotFound):
		return NotFoundError("channel not found")
	case errors.Is(err, repositories.ErrUserNotFound):
		return NotFoundError("user not found")
	}
	if constraint, ok := repositories.IsForeignKeyViolation(err); ok {
		return NotFoundError("%s not found", referencedEntity(constraint))
	}
	switch {
	case repositories.IsUniqueViolation(err):
		return ConflictError("%s: duplicate record", op)
	case repositories.IsIntegrityViolation(err):
		return ValidationError("%s: constraint violated", op)
	default:
		return DependencyError(op, err)
	}
}

// referencedEntity 从外键约束名推断缺失的实体，约束名遵循 <table>_<column>_fkey。
func referencedEntity(constraint string) string {
	switch {
	case strings.Contains(constraint, "video_id"):
		return "video"
	case strings.Contains(constraint, "channel_id"):
		return "channel"
	case strings.Contains(constraint, "parent_id"), strings.Contains(constraint, "comment_id"):
		return "comment"
	default:
		return "user"
	}
}
