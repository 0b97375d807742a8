// Package session tracks the MCP sessions handed out by initialize and
// carried in the Mcp-Session-Id header.
package session

import (
	"context"
	"time"
)

// HeaderName is the HTTP header that carries the session ID.
const HeaderName = "Mcp-Session-Id"

// Session represents an active client session
type Session struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	LastAccess      time.Time  `json:"last_access"`
	ExpiresAt       time.Time  `json:"expires_at"`
	ProtocolVersion string     `json:"protocol_version"`
	ClientInfo      ClientInfo `json:"client_info"`
}

// ClientInfo describes the client that opened the session.
type ClientInfo struct {
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Refresh updates the last access time and extends expiration
func (s *Session) Refresh(timeout time.Duration) {
	now := time.Now()
	s.LastAccess = now
	s.ExpiresAt = now.Add(timeout)
}

// SessionManager defines the interface for session management operations
type SessionManager interface {
	// CreateSession generates a new session ID and stores it
	CreateSession(ctx context.Context, clientInfo ClientInfo, protocolVersion string) (*Session, error)

	// ValidateSession checks if a session ID is valid and active
	ValidateSession(ctx context.Context, sessionID string) (*Session, error)

	// RefreshSession updates the last activity timestamp
	RefreshSession(ctx context.Context, sessionID string) error

	// DeleteSession removes a session from the store
	DeleteSession(ctx context.Context, sessionID string) error

	// CleanupExpiredSessions removes all expired sessions
	CleanupExpiredSessions(ctx context.Context) (int, error)

	// GetActiveSessionCount returns the number of stored sessions
	GetActiveSessionCount(ctx context.Context) (int, error)
}

// SessionStore defines the interface for session storage operations
type SessionStore interface {
	Set(ctx context.Context, sessionID string, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	// List returns copies of all stored sessions
	List(ctx context.Context) ([]*Session, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
