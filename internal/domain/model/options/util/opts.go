package util

import (
	"context"

	"github.com/webitel/inspection-exporter/auth"
)

type sessionKey struct{}

func ContextWithAuther(ctx context.Context, a auth.Auther) context.Context {
	return context.WithValue(ctx, sessionKey{}, a)
}

func GetAutherOutOfContext(ctx context.Context) auth.Auther {
	a, _ := ctx.Value(sessionKey{}).(auth.Auther)
	return a
}
