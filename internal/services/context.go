package services

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	trackKey     contextKey = "track"
	stageKey     contextKey = "stage"
)

// WithSessionID annotates context with the rip session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the rip session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTrack annotates context with the track currently being ripped.
func WithTrack(ctx context.Context, track int) context.Context {
	return context.WithValue(ctx, trackKey, track)
}

// TrackFromContext extracts the track number if present.
func TrackFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(trackKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the processing stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
