// Package identity issues anonymous sessions. A session needs no credentials;
// its id is the token a visitor presents on later writes.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Authenticator creates and resolves anonymous sessions
type Authenticator interface {
	SignInAnonymously(ctx context.Context) (*models.Session, error)
	// Resolve returns nil without error for unknown or expired tokens
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

// Service is the repository-backed Authenticator
type Service struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

var _ Authenticator = (*Service)(nil)

// NewService creates a session service. A zero ttl means sessions never expire.
func NewService(sessions repository.SessionRepository, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("service", "identity").Logger(),
	}
}

// SignInAnonymously creates a new anonymous session
func (s *Service) SignInAnonymously(ctx context.Context) (*models.Session, error) {
	now := s.now().UTC()
	session := &models.Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create anonymous session: %w", err)
	}

	s.log.Info().Str("session_ref", session.LogRef()).Msg("Anonymous session created")
	return session, nil
}

// Resolve looks up the session for token and refreshes its last-seen time
func (s *Service) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if _, err := uuid.Parse(token); err != nil {
		return nil, nil
	}

	session, err := s.sessions.GetByID(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if s.ttl > 0 && s.now().Sub(session.LastSeenAt) > s.ttl {
		s.log.Debug().Str("session_ref", session.LogRef()).Msg("Session expired")
		return nil, nil
	}

	if err := s.sessions.Touch(ctx, session.ID); err != nil {
		s.log.Warn().Err(err).Str("session_ref", session.LogRef()).Msg("Failed to refresh session")
	}

	return session, nil
}
