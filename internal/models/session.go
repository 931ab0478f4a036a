package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is an anonymous identity-service session. It carries no credentials;
// its ID is the bearer token the visitor presents on later writes.
type Session struct {
	ID         string    `json:"session_id" db:"id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// LogRef identifies the session in logs without exposing the token
func (s *Session) LogRef() string {
	if s == nil || s.ID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.ID))
	return hex.EncodeToString(sum[:6])
}
