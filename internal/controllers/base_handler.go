package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-engagement/internal/infrastructure/validation"
	"github.com/bionicotaku/lingo-services-engagement/internal/metadata"
	"github.com/bionicotaku/lingo-services-engagement/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// HandlerType 表示 Handler 的语义类别，用于选择超时策略。
type HandlerType int

const (
	// HandlerTypeDefault 表示未显式区分的 Handler。
	HandlerTypeDefault HandlerType = iota
	// HandlerTypeCommand 表示写模型命令 Handler。
	HandlerTypeCommand
	// HandlerTypeQuery 表示读模型查询 Handler。
	HandlerTypeQuery
)

// HandlerTimeouts 聚合不同类型 Handler 的超时策略。
type HandlerTimeouts struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

const (
	fallbackDefaultTimeout = 5 * time.Second
	fallbackQueryTimeout   = 3 * time.Second
	headerUserInfo         = "x-apigateway-api-userinfo"
	headerSessionID        = "x-session-id"
	headerForwardedFor     = "x-forwarded-for"
	headerIdempotencyKey   = "x-md-idempotency-key"
	reasonUnauthenticated  = "UNAUTHENTICATED"
)

// ClientIPPolicy 描述服务前方可信反向代理的跳数，用于从 X-Forwarded-For 中识别客户端地址。
type ClientIPPolicy struct {
	TrustedProxyHops int
}

// BaseHandler 提供公共的超时、Metadata 解析能力，供具体 Handler 内嵌复用。
type BaseHandler struct {
	timeouts HandlerTimeouts
	ipPolicy ClientIPPolicy
}

// NewBaseHandler 构造基础 Handler，并为缺省值填充合理的回退策略。
func NewBaseHandler(timeouts HandlerTimeouts, ipPolicy ClientIPPolicy) *BaseHandler {
	if timeouts.Default <= 0 {
		switch {
		case timeouts.Command > 0:
			timeouts.Default = timeouts.Command
		case timeouts.Query > 0:
			timeouts.Default = timeouts.Query
		default:
			timeouts.Default = fallbackDefaultTimeout
		}
	}
	if timeouts.Command <= 0 {
		timeouts.Command = timeouts.Default
	}
	if timeouts.Query <= 0 {
		timeouts.Query = fallbackQueryTimeout
		if timeouts.Default > 0 {
			timeouts.Query = timeouts.Default
		}
	}
	if ipPolicy.TrustedProxyHops < 0 {
		ipPolicy.TrustedProxyHops = 0
	}
	return &BaseHandler{timeouts: timeouts, ipPolicy: ipPolicy}
}

// WithTimeout 根据 Handler 类型包装上下文，返回绑定超时的新 Context 与取消函数。
func (h *BaseHandler) WithTimeout(ctx context.Context, kind HandlerType) (context.Context, context.CancelFunc) {
	if h == nil {
		return context.WithTimeout(ctx, fallbackDefaultTimeout)
	}
	var timeout time.Duration
	switch kind {
	case HandlerTypeCommand:
		timeout = h.timeouts.Command
	case HandlerTypeQuery:
		timeout = h.timeouts.Query
	default:
		timeout = h.timeouts.Default
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// ExtractMetadata 从入站 HTTP 请求头解析身份、会话与客户端地址。
func (h *BaseHandler) ExtractMetadata(ctx context.Context) metadata.HandlerMetadata {
	if meta, ok := metadata.FromContext(ctx); ok {
		return meta
	}
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return metadata.HandlerMetadata{}
	}
	header := tr.RequestHeader()
	meta := metadata.HandlerMetadata{
		SessionID:      strings.TrimSpace(header.Get(headerSessionID)),
		IdempotencyKey: strings.TrimSpace(header.Get(headerIdempotencyKey)),
	}
	remoteAddr := ""
	if req, ok := khttp.RequestFromServerContext(ctx); ok {
		remoteAddr = req.RemoteAddr
	}
	trustedHops := 0
	if h != nil {
		trustedHops = h.ipPolicy.TrustedProxyHops
	}
	meta.ClientIP = metadata.ClientIP(header.Get(headerForwardedFor), remoteAddr, trustedHops)

	rawUserInfo := strings.TrimSpace(header.Get(headerUserInfo))
	meta.RawUserInfo = rawUserInfo
	if rawUserInfo != "" {
		userID, err := metadata.ExtractUserIDFromUserInfo(rawUserInfo)
		if err == nil && strings.TrimSpace(userID) != "" {
			meta.UserID = userID
		} else {
			meta.InvalidUserInfo = true
		}
	}
	return meta
}

// RequireUser 返回已认证用户 ID，缺失或非法时返回 401。
func (h *BaseHandler) RequireUser(meta metadata.HandlerMetadata) (uuid.UUID, error) {
	if meta.InvalidUserInfo {
		return uuid.Nil, kerrors.Unauthorized(reasonUnauthenticated, "invalid user info header")
	}
	id, ok := meta.UserUUID()
	if !ok {
		return uuid.Nil, kerrors.Unauthorized(reasonUnauthenticated, "authenticated user required")
	}
	return id, nil
}

// OptionalUser 返回已认证用户 ID，匿名请求返回 nil。
func (h *BaseHandler) OptionalUser(meta metadata.HandlerMetadata) *uuid.UUID {
	id, ok := meta.UserUUID()
	if !ok {
		return nil
	}
	return &id
}

// InjectHandlerMetadata 将解析结果注入到 Context，供后续层访问。
func InjectHandlerMetadata(ctx context.Context, meta metadata.HandlerMetadata) context.Context {
	return metadata.Inject(ctx, meta)
}

// HandlerMetadataFromContext 读取上游注入的 HandlerMetadata。
func HandlerMetadataFromContext(ctx context.Context) (metadata.HandlerMetadata, bool) {
	return metadata.FromContext(ctx)
}

// validateRequest 校验 DTO，失败时转换为 400 并在元数据中携带字段错误。
func validateRequest(req any) error {
	err := validation.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return kerrors.BadRequest(services.ReasonInvalidArgument, fieldErrs.Error()).
			WithMetadata(fieldErrs.Fields())
	}
	return services.ValidationError("%v", err)
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, services.ValidationError("%s must be a valid UUID", field)
	}
	return id, nil
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
