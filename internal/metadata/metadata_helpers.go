// Package metadata 提供 HandlerMetadata 在 Context 中的存取工具，供控制器与服务层共享。
package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/google/uuid"
)

// HandlerMetadata 描述从请求头或上游链路解析出的上下文信息。
type HandlerMetadata struct {
	UserID          string
	RawUserInfo     string
	InvalidUserInfo bool
	SessionID       string
	ClientIP        string
	IdempotencyKey  string
}

// IsZero 判断 Metadata 是否为空。
func (m HandlerMetadata) IsZero() bool {
	return m.UserID == "" &&
		m.RawUserInfo == "" &&
		!m.InvalidUserInfo &&
		m.SessionID == "" &&
		m.ClientIP == "" &&
		m.IdempotencyKey == ""
}

// UserUUID 尝试解析 user_id 为 UUID。
func (m HandlerMetadata) UserUUID() (uuid.UUID, bool) {
	if strings.TrimSpace(m.UserID) == "" {
		return uuid.Nil, false
	}
	value, err := uuid.Parse(m.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return value, true
}

type ctxKey struct{}

// Inject 将 HandlerMetadata 注入 Context。
func Inject(ctx context.Context, meta HandlerMetadata) context.Context {
	if meta.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// FromContext 读取上游注入的 HandlerMetadata。
func FromContext(ctx context.Context) (HandlerMetadata, bool) {
	if ctx == nil {
		return HandlerMetadata{}, false
	}
	meta, ok := ctx.Value(ctxKey{}).(HandlerMetadata)
	return meta, ok
}

// ExtractUserIDFromUserInfo 尝试从 X-Apigateway-Api-Userinfo 头中解析用户标识。
func ExtractUserIDFromUserInfo(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	payload, err := decodeUserInfo(raw)
	if err != nil {
		return "", err
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", err
	}
	for _, key := range []string{"sub", "user_id", "uid"} {
		if v, ok := claims[key].(string); ok && strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	return "", nil
}

func decodeUserInfo(raw string) ([]byte, error) {
	decoders := []func(string) ([]byte, error){
		base64.RawURLEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.StdEncoding.DecodeString,
	}
	for _, decode := range decoders {
		if payload, err := decode(raw); err == nil {
			return payload, nil
		}
	}
	return nil, errors.New("decode userinfo header failed")
}

// ClientIP 按可信代理跳数取出客户端 IP。
// 链由 X-Forwarded-For 各跳与连接地址依次组成，从右侧跳过 trustedHops 个可信代理后取下一跳。
// trustedHops 为 0 时忽略 X-Forwarded-For；链短于跳数时取最左一跳。
// 所选跳无法解析时回退到连接地址，均无法解析时返回空串。
func ClientIP(forwardedFor, remoteAddr string, trustedHops int) string {
	remote := parseHostIP(strings.TrimSpace(remoteAddr))
	if trustedHops <= 0 || strings.TrimSpace(forwardedFor) == "" {
		return remote
	}
	chain := append(strings.Split(forwardedFor, ","), remoteAddr)
	idx := len(chain) - 1 - trustedHops
	if idx < 0 {
		idx = 0
	}
	if ip := parseHostIP(strings.TrimSpace(chain[idx])); ip != "" {
		return ip
	}
	return remote
}

func parseHostIP(raw string) string {
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	ip := net.ParseIP(strings.Trim(raw, "[]"))
	if ip == nil {
		return ""
	}
	return ip.String()
}
