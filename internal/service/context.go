package service

import "context"

// contextKey context 键的私有类型,避免与其他包的裸字符串键冲突
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyClientIP  contextKey = "ip"
	ctxKeyUserAgent contextKey = "user_agent"
	ctxKeyUserID    contextKey = "user_id"
)

// WithRequestMeta 注入请求元信息,审计日志从这些键读取
func WithRequestMeta(ctx context.Context, requestID, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyRequestID, requestID)
	ctx = context.WithValue(ctx, ctxKeyClientIP, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// WithUserID 注入操作用户 ID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	return contextString(ctx, ctxKeyRequestID)
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	return contextString(ctx, ctxKeyClientIP)
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	return contextString(ctx, ctxKeyUserAgent)
}

// GetUserID 从 context 获取操作用户 ID,缺省为 anonymous
func GetUserID(ctx context.Context) string {
	if id := contextString(ctx, ctxKeyUserID); id != "" {
		return id
	}
	return "anonymous"
}

func contextString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
