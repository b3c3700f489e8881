// Package logx centralizes scope/session/thread log field handling so fields
// are not duplicated when a context already carries them.
package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/schema"
)

type contextKey int

const (
	sessionKey contextKey = iota
	scopeKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithScope annotates the logger with the scope if present.
func WithScope(ctx context.Context, scope schema.Scope) pslog.Logger {
	log := pslog.Ctx(ctx)
	if scope != "" {
		if current, ok := ctx.Value(scopeKey).(schema.Scope); ok && current == scope {
			return log
		}
		log = log.With("scope", scope)
	}
	return log
}

// WithScopeSession annotates the logger with scope and session identifiers.
func WithScopeSession(ctx context.Context, scope schema.Scope, sessionID schema.SessionID) pslog.Logger {
	log := WithScope(ctx, scope)
	if sessionID != "" {
		if current, ok := ctx.Value(sessionKey).(schema.SessionID); ok && current == sessionID {
			return log
		}
		log = log.With("session", sessionID)
	}
	return log
}

// WithSession annotates the logger with a session id when available.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithThread annotates the logger with a thread id when available.
func WithThread(log pslog.Logger, threadID schema.ThreadID) pslog.Logger {
	if threadID != "" {
		log = log.With("thread", threadID)
	}
	return log
}

// ContextWithScope stores the scope marker on the context for log de-duplication.
func ContextWithScope(ctx context.Context, scope schema.Scope) context.Context {
	if ctx == nil || scope == "" {
		return ctx
	}
	return context.WithValue(ctx, scopeKey, scope)
}

// ContextWithSession stores the session marker on the context for log de-duplication.
func ContextWithSession(ctx context.Context, sessionID schema.SessionID) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// ContextWithScopeSession stores scope/session markers on the context for log de-duplication.
func ContextWithScopeSession(ctx context.Context, scope schema.Scope, sessionID schema.SessionID) context.Context {
	return ContextWithSession(ContextWithScope(ctx, scope), sessionID)
}

// ContextWithScopeLogger attaches the logger and scope marker to the context.
func ContextWithScopeLogger(ctx context.Context, log pslog.Logger, scope schema.Scope) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithScope(ctx, scope)
}

// CopyContextFields copies scope/session markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if scope, ok := src.Value(scopeKey).(schema.Scope); ok && scope != "" {
		dst = ContextWithScope(dst, scope)
	}
	if session, ok := src.Value(sessionKey).(schema.SessionID); ok && session != "" {
		dst = ContextWithSession(dst, session)
	}
	return dst
}
