package session

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

// SessionMiddleware validates the session header when present and stores the
// session in the request context. Requests without the header pass through;
// whether a session is required is decided by the handler, since initialize
// is the one request that arrives without one.
type SessionMiddleware struct {
	manager SessionManager
	logger  zerolog.Logger
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(manager SessionManager, logger zerolog.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		manager: manager,
		logger:  logger.With().Str("component", "session_middleware").Logger(),
	}
}

type sessionContextKey string

const (
	SessionContextKey sessionContextKey = "session"
)

// Handler returns the HTTP middleware handler function
func (m *SessionMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(HeaderName)
			if sessionID == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			session, err := m.manager.ValidateSession(r.Context(), sessionID)
			if err != nil {
				m.logger.Debug().
					Err(err).
					Str("session_id", sessionID).
					Str("path", r.URL.Path).
					Msg("Session validation failed")

				// Unknown and expired sessions answer 404 so the client re-initializes.
				statusCode := http.StatusInternalServerError
				switch CodeOf(err) {
				case ErrSessionInvalid:
					statusCode = http.StatusBadRequest
				case ErrSessionNotFound, ErrSessionExpired:
					statusCode = http.StatusNotFound
				}
				SendError(w, r, statusCode, err.Error(), map[string]any{
					"session_id": sessionID,
					"error_code": CodeOf(err),
				})
				return
			}

			if err := m.manager.RefreshSession(r.Context(), sessionID); err != nil {
				// Refresh failure shouldn't block the request
				m.logger.Warn().
					Err(err).
					Str("session_id", sessionID).
					Msg("Failed to refresh session")
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SendError writes the JSON error body shared by session failures.
func SendError(w http.ResponseWriter, r *http.Request, statusCode int, message string, details map[string]any) {
	body := map[string]any{
		"message": message,
		"code":    statusCode,
	}
	if details != nil {
		body["details"] = details
	}

	render.Status(r, statusCode)
	render.JSON(w, r, map[string]any{"error": body})
}

// GetSessionFromContext retrieves the session from request context
func GetSessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(SessionContextKey).(*Session)
	return session, ok && session != nil
}
