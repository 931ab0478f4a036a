package repository

import (
	"context"

	"github.com/blog-comment-widget/internal/database"
	"github.com/blog-comment-widget/internal/models"
)

// CommentRepository defines the interface for comment data operations.
// Comment records are append-only: there is no update or delete.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	BatchInsert(ctx context.Context, comments []*models.Comment) (int, error)
	ListByContentKey(ctx context.Context, contentKey string, order models.Order, limit int) ([]models.Comment, error)
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Comment) error) error
}

// SessionRepository defines the interface for anonymous session data operations
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Touch(ctx context.Context, id string) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Comment CommentRepository
	Session SessionRepository
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return &Repositories{
		Comment: NewCommentRepo(db),
		Session: NewSessionRepo(db),
	}
}
