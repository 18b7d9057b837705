package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/jobstore/pkg/models"
)

type contextKey string

const (
	callerKey    contextKey = "caller"
	keyPrefixKey contextKey = "key_prefix"
)

func SetCaller(ctx context.Context, c models.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func GetCaller(r *http.Request) (models.Caller, bool) {
	c, ok := r.Context().Value(callerKey).(models.Caller)
	return c, ok
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

// ExportedKeyPrefixKey returns the context key for key_prefix (for testing).
func ExportedKeyPrefixKey() contextKey {
	return keyPrefixKey
}
