package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// SessionIDLength is the length of the random part in bytes
	SessionIDLength = 32
	// SessionIDPrefix is the prefix for session IDs
	SessionIDPrefix = "sess"
)

var (
	timestampPattern = regexp.MustCompile(`^\d+$`)
	randomPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// SessionIDGenerator creates and checks IDs of the form sess.<unix>.<random>,
// where random is base64url without padding. All characters are visible
// ASCII as the streamable HTTP transport requires.
type SessionIDGenerator struct{}

func NewSessionIDGenerator() *SessionIDGenerator {
	return &SessionIDGenerator{}
}

// Generate creates a new cryptographically secure session ID
func (g *SessionIDGenerator) Generate() (string, error) {
	randomBytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", NewSessionGenerationError(err)
	}

	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)
	return fmt.Sprintf("%s.%d.%s", SessionIDPrefix, time.Now().Unix(), randomPart), nil
}

// Validate checks if a session ID has the correct format
func (g *SessionIDGenerator) Validate(sessionID string) error {
	if sessionID == "" {
		return NewSessionInvalidError("empty session ID")
	}

	parts := strings.Split(sessionID, ".")
	if len(parts) != 3 {
		return NewSessionInvalidError("invalid session ID format")
	}
	if parts[0] != SessionIDPrefix {
		return NewSessionInvalidError("invalid session ID prefix")
	}
	if !timestampPattern.MatchString(parts[1]) {
		return NewSessionInvalidError("invalid timestamp in session ID")
	}
	if !randomPattern.MatchString(parts[2]) {
		return NewSessionInvalidError("invalid characters in session ID")
	}
	if len(parts[2]) < base64.RawURLEncoding.EncodedLen(SessionIDLength) {
		return NewSessionInvalidError("session ID random part too short")
	}

	return nil
}
