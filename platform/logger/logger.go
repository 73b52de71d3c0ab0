// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// GroupIDKey is the context key for the campaign group ID
	GroupIDKey contextKey = "group_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if groupID, ok := ctx.Value(GroupIDKey).(string); ok && groupID != "" {
		newLogger = newLogger.WithGroupID(groupID)
	}

	return newLogger
}

// WithGroupID returns a logger scoped to a campaign group.
func (l *Logger) WithGroupID(groupID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("group_id", groupID)),
	}
}

// WithCampaign returns a logger scoped to a campaign.
func (l *Logger) WithCampaign(campaignID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("campaign_id", campaignID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// CallEvent logs a negotiation session lifecycle event.
func (l *Logger) CallEvent(event, campaignID, providerID string) {
	l.Info("call_event",
		slog.String("event", event),
		slog.String("campaign_id", campaignID),
		slog.String("provider_id", providerID),
	)
}

// CampaignError logs a campaign-level failure.
func (l *Logger) CampaignError(campaignID string, err error) {
	l.Error("campaign_error",
		slog.String("campaign_id", campaignID),
		slog.String("error", err.Error()),
	)
}

// WebhookEvent logs an inbound webhook.
func (l *Logger) WebhookEvent(kind, sessionID string) {
	l.Info("webhook_event",
		slog.String("kind", kind),
		slog.String("session_id", sessionID),
	)
}

// UpstreamError logs a failure from an external collaborator.
func (l *Logger) UpstreamError(service string, err error) {
	l.Error("upstream_error",
		slog.String("service", service),
		slog.String("error", err.Error()),
	)
}
