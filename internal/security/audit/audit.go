package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/babui-rent/babui/internal/domain"
)

type requestIDKey struct{}

// WithRequestID stores the request id audit lines are tagged with
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Event is one audit record
type Event struct {
	Action     string
	ResourceID string
	UserID     string
	Status     string
	Details    string
	RequestID  string
	At         time.Time
}

// Logger writes audit events to the structured log and, when a journal is
// attached, to SQLite.
type Logger struct {
	logger  *slog.Logger
	journal *Journal
	now     func() time.Time
}

// NewLogger creates an audit logger. journal may be nil.
func NewLogger(logger *slog.Logger, journal *Journal) *Logger {
	return &Logger{logger: logger, journal: journal, now: time.Now}
}

// LogAction records an action against a property
func (al *Logger) LogAction(ctx context.Context, userID, action, resourceID, status, details string) {
	al.record(ctx, Event{
		Action:     action,
		ResourceID: resourceID,
		UserID:     userID,
		Status:     status,
		Details:    details,
		RequestID:  RequestID(ctx),
		At:         al.now(),
	})
}

// LogDenied records a rejected request
func (al *Logger) LogDenied(ctx context.Context, action, reason string) {
	al.LogAction(ctx, "", action, "", "denied", reason)
}

// RepositoryListener records every committed repository change
func (al *Logger) RepositoryListener() domain.ChangeListener {
	return func(ev domain.ChangeEvent) {
		al.record(context.Background(), Event{
			Action:     "property." + string(ev.Kind),
			ResourceID: ev.PropertyID,
			Status:     "committed",
			At:         ev.At,
		})
	}
}

func (al *Logger) record(ctx context.Context, ev Event) {
	al.logger.Info("audit",
		slog.String("action", ev.Action),
		slog.String("resource", "property"),
		slog.String("resource_id", ev.ResourceID),
		slog.String("user_id", ev.UserID),
		slog.String("status", ev.Status),
		slog.String("details", ev.Details),
		slog.String("request_id", ev.RequestID),
		slog.Time("timestamp", ev.At),
	)

	if al.journal == nil {
		return
	}
	if err := al.journal.Append(ctx, ev); err != nil {
		al.logger.Error("failed to write audit journal",
			slog.String("action", ev.Action),
			slog.String("error", err.Error()),
		)
	}
}
