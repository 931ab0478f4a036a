package repository

import (
	"context"
	"database/sql"

	"github.com/blog-comment-widget/internal/database"
	"github.com/blog-comment-widget/internal/models"
)

// sessionRepo is the concrete implementation of SessionRepository
type sessionRepo struct {
	db *database.DB
}

// NewSessionRepo creates a new anonymous session repository
func NewSessionRepo(db *database.DB) SessionRepository {
	return &sessionRepo{db: db}
}

// Create inserts a new anonymous session
func (r *sessionRepo) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO anonymous_sessions (id, created_at, last_seen_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, session.ID, session.CreatedAt, session.LastSeenAt)
	return err
}

// GetByID retrieves a session by ID, nil if it does not exist
func (r *sessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT id, created_at, last_seen_at FROM anonymous_sessions WHERE id = $1`

	var session models.Session
	err := r.db.QueryRowContext(ctx, query, id).Scan(&session.ID, &session.CreatedAt, &session.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// Touch refreshes last_seen_at
func (r *sessionRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE anonymous_sessions SET last_seen_at = NOW() WHERE id = $1", id)
	return err
}
