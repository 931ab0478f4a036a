package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/blog-comment-widget/internal/database"
	"github.com/blog-comment-widget/internal/models"
	"github.com/lib/pq"
)

const commentColumns = `id, content_key, author_label, body, COALESCE(session_id::text, ''), created_at`

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

// Create inserts a new comment. created_at is assigned by the database and
// written back into comment.
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, content_key, author_label, body, session_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		comment.ID, comment.ContentKey, comment.AuthorLabel, comment.Body, nullUUID(comment.SessionID),
	).Scan(&createdAt)
	if err != nil {
		return err
	}
	comment.CreatedAt = &createdAt
	return nil
}

// BatchInsert inserts multiple comments using PostgreSQL COPY.
// Used for legacy imports, so created_at comes from the record.
func (r *commentRepo) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("comments",
		"id", "content_key", "author_label", "body", "created_at",
	))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	inserted := 0

	for _, comment := range comments {
		createdAt := now
		if comment.CreatedAt != nil {
			createdAt = *comment.CreatedAt
		}
		_, err := stmt.ExecContext(ctx,
			comment.ID, comment.ContentKey, comment.AuthorLabel, comment.Body, createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to copy comment %s: %w", comment.ID, err)
		}
		inserted++
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}

// ListByContentKey returns the comments for one content key sorted by
// created_at. A positive limit keeps the newest limit comments whatever the
// order, so a busy thread still shows what was just posted.
func (r *commentRepo) ListByContentKey(ctx context.Context, contentKey string, order models.Order, limit int) ([]models.Comment, error) {
	// id breaks ties so equal timestamps keep a stable order between snapshots.
	// LIMIT NULL means no limit.
	query := fmt.Sprintf(`
		SELECT %[1]s FROM (
			SELECT * FROM comments
			WHERE content_key = $1
			ORDER BY created_at DESC, id DESC
			LIMIT NULLIF($2::int, 0)
		) newest
		ORDER BY created_at %[2]s, id %[2]s
	`, commentColumns, order.SQL())

	if limit < 0 {
		limit = 0
	}
	rows, err := r.db.QueryContext(ctx, query, contentKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *comment)
	}

	return comments, rows.Err()
}

// GetByID retrieves a comment by ID
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`

	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return comment, nil
}

// Count returns the total number of comments
func (r *commentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments").Scan(&count)
	return count, err
}

// StreamAll streams all comments ordered by creation time
func (r *commentRepo) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	query := `SELECT ` + commentColumns + ` FROM comments ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return err
		}

		if err := callback(comment); err != nil {
			return err
		}
	}

	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var comment models.Comment
	var createdAt time.Time
	err := row.Scan(
		&comment.ID, &comment.ContentKey, &comment.AuthorLabel, &comment.Body,
		&comment.SessionID, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	comment.CreatedAt = &createdAt
	return &comment, nil
}

func nullUUID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}
