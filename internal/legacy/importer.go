// Package legacy migrates comments exported from the old document store into
// the canonical comments table.
package legacy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/blog-comment-widget/internal/validation"
	"github.com/rs/zerolog"
)

// Options tune an import run
type Options struct {
	BatchSize         int
	PlaceholderAuthor string
	MaxBodyRunes      int
	// MaxErrors caps the validation errors kept in the result; the count in
	// Failed is always exact
	MaxErrors int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 1000
	}
	if o.PlaceholderAuthor == "" {
		o.PlaceholderAuthor = models.DefaultAuthorLabel
	}
	if o.MaxBodyRunes <= 0 {
		o.MaxBodyRunes = models.DefaultMaxBodyRunes
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = 1000
	}
	return o
}

// Result summarises an import run
type Result struct {
	Total    int                      `json:"total"`
	Imported int                      `json:"imported"`
	Failed   int                      `json:"failed"`
	Skipped  int                      `json:"skipped"`
	Errors   []models.ValidationError `json:"errors,omitempty"`
	Duration time.Duration            `json:"duration"`
}

// Importer reads NDJSON legacy records and batch inserts them
type Importer struct {
	comments repository.CommentRepository
	opts     Options
	log      zerolog.Logger
}

// NewImporter creates a new Importer
func NewImporter(comments repository.CommentRepository, opts Options, log zerolog.Logger) *Importer {
	return &Importer{
		comments: comments,
		opts:     opts.withDefaults(),
		log:      log.With().Str("service", "legacy_import").Logger(),
	}
}

// Normalize converts a validated legacy record to the canonical schema
func Normalize(rec *models.LegacyCommentNDJSON, placeholder string) *models.Comment {
	createdAt := rec.Timestamp.Time.UTC()
	return &models.Comment{
		ID:          validation.CanonicalID(rec.ID),
		ContentKey:  rec.Slug,
		AuthorLabel: validation.LegacyAuthor(rec, placeholder),
		Body:        validation.LegacyBody(rec),
		CreatedAt:   &createdAt,
	}
}

// Import processes every line of r. Invalid lines are reported in the result
// and skipped; a failed batch counts all its rows as failed. Records whose
// canonical id is already stored are counted as skipped, so an interrupted
// import can be run again.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	result := &Result{}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	validator := validation.NewValidator(im.opts.MaxBodyRunes)
	batch := make([]*models.Comment, 0, im.opts.BatchSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		result.Total++

		// Respect context cancellation for long-running imports
		if lineNum%10000 == 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}
		}

		var rec models.LegacyCommentNDJSON
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			im.reject(result, models.ValidationError{
				Line:    lineNum,
				Field:   "json",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if errs := validator.ValidateLegacyComment(&rec, lineNum); len(errs) > 0 {
			for i, e := range errs {
				ve := models.ValidationError{Line: lineNum, Field: e.Field, Message: e.Message, Value: e.Value}
				if i == 0 {
					im.reject(result, ve)
				} else {
					im.record(result, ve)
				}
			}
			continue
		}

		comment := Normalize(&rec, im.opts.PlaceholderAuthor)
		validator.AddID(comment.ID)

		existing, err := im.comments.GetByID(ctx, comment.ID)
		if err != nil {
			return result, fmt.Errorf("failed to look up comment %s: %w", comment.ID, err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}
		batch = append(batch, comment)

		if len(batch) >= im.opts.BatchSize {
			im.flush(ctx, result, batch)
			batch = batch[:0]
		}
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read import input: %w", err)
	}

	// Process remaining batch
	if len(batch) > 0 {
		im.flush(ctx, result, batch)
	}

	result.Duration = time.Since(start)

	var errorRate float64
	if result.Total > 0 {
		errorRate = float64(result.Failed) / float64(result.Total) * 100
	}
	im.log.Info().
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Float64("error_rate_pct", errorRate).
		Dur("duration", result.Duration).
		Msg("Legacy import completed")

	return result, nil
}

func (im *Importer) flush(ctx context.Context, result *Result, batch []*models.Comment) {
	inserted, err := im.comments.BatchInsert(ctx, batch)
	if err != nil {
		im.log.Error().Err(err).Int("batch_size", len(batch)).Msg("Batch insert failed")
		result.Failed += len(batch)
		return
	}
	result.Imported += inserted

	im.log.Debug().
		Int("imported", result.Imported).
		Int("batch_size", len(batch)).
		Msg("Batch processed")
}

// reject counts a failed line and records its first error
func (im *Importer) reject(result *Result, ve models.ValidationError) {
	result.Failed++
	im.record(result, ve)
}

func (im *Importer) record(result *Result, ve models.ValidationError) {
	if len(result.Errors) < im.opts.MaxErrors {
		result.Errors = append(result.Errors, ve)
	}
}
