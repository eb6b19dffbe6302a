package middleware

import (
	"context"
	"errors"

	"github.com/Dosada05/lunch-roulette/models"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	layoutContextKey  contextKey = "layout"
)

var ErrNoSession = errors.New("session id not found in context")

func GetSessionIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(sessionContextKey).(string)
	if !ok || id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

// WithSessionID stores id the way RequireSession does.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionContextKey, id)
}

// LayoutFromContext returns the layout chosen by DetectLayout, or pc.
func LayoutFromContext(ctx context.Context) models.LayoutMode {
	if mode, ok := ctx.Value(layoutContextKey).(models.LayoutMode); ok {
		return mode
	}
	return models.LayoutPC
}
