package core

import "context"

type authCtxKey string

const authCtxKeyRequestMeta authCtxKey = "walletauth.request_meta"

type requestMeta struct {
	ip        string
	userAgent string
}

// WithRequestMeta annotates ctx with the caller's IP and user agent so audit events can carry them.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, authCtxKeyRequestMeta, requestMeta{ip: ip, userAgent: userAgent})
}

func requestMetaFromContext(ctx context.Context) (requestMeta, bool) {
	if ctx == nil {
		return requestMeta{}, false
	}
	m, ok := ctx.Value(authCtxKeyRequestMeta).(requestMeta)
	return m, ok
}
