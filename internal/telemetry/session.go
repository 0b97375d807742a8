package telemetry

import (
	"context"
	"time"

	"mcp-tools-go/internal/session"
)

// SessionManagerWrapper wraps a session manager to add telemetry
type SessionManagerWrapper struct {
	session.SessionManager
	metrics *Metrics
}

// NewSessionManagerWrapper creates a new telemetry-aware session manager wrapper
func NewSessionManagerWrapper(manager session.SessionManager, metrics *Metrics) *SessionManagerWrapper {
	return &SessionManagerWrapper{
		SessionManager: manager,
		metrics:        metrics,
	}
}

func (w *SessionManagerWrapper) CreateSession(ctx context.Context, clientInfo session.ClientInfo, protocolVersion string) (*session.Session, error) {
	sess, err := w.SessionManager.CreateSession(ctx, clientInfo, protocolVersion)
	if err == nil {
		w.metrics.RecordSessionCreated()
	}
	return sess, err
}

func (w *SessionManagerWrapper) DeleteSession(ctx context.Context, sessionID string) error {
	// Look the session up first so its lifetime can be observed.
	sess, getErr := w.SessionManager.ValidateSession(ctx, sessionID)

	err := w.SessionManager.DeleteSession(ctx, sessionID)
	if err == nil && getErr == nil {
		w.metrics.RecordSessionDeleted(time.Since(sess.CreatedAt))
	}
	return err
}

func (w *SessionManagerWrapper) CleanupExpiredSessions(ctx context.Context) (int, error) {
	n, err := w.SessionManager.CleanupExpiredSessions(ctx)
	w.metrics.RecordSessionsExpired(n)
	return n, err
}
