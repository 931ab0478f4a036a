package legacy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/rs/zerolog"
)

// Exporter dumps every stored comment in the canonical schema
// (content_key, author_label, body, created_at).
type Exporter struct {
	comments repository.CommentRepository
	log      zerolog.Logger
}

// NewExporter creates an exporter over the comment repository
func NewExporter(comments repository.CommentRepository, log zerolog.Logger) *Exporter {
	return &Exporter{
		comments: comments,
		log:      log.With().Str("service", "export").Logger(),
	}
}

// Export streams all comments to w as "ndjson" or "json" and returns how
// many were written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format string) (int, error) {
	e.log.Info().Str("format", format).Msg("Starting comments export")

	bw := bufio.NewWriter(w)
	var count int
	var err error
	switch format {
	case "ndjson":
		count, err = e.exportNDJSON(ctx, bw)
	case "json":
		count, err = e.exportJSON(ctx, bw)
	default:
		return 0, fmt.Errorf("unsupported format: %s", format)
	}
	if flushErr := bw.Flush(); err == nil {
		err = flushErr
	}

	e.log.Info().Int("count", count).Msg("Comments export completed")
	return count, err
}

func (e *Exporter) exportNDJSON(ctx context.Context, w *bufio.Writer) (int, error) {
	count := 0
	err := e.comments.StreamAll(ctx, func(comment *models.Comment) error {
		data, err := json.Marshal(comment)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
		count++
		return nil
	})
	return count, err
}

func (e *Exporter) exportJSON(ctx context.Context, w *bufio.Writer) (int, error) {
	w.WriteByte('[')
	count := 0
	err := e.comments.StreamAll(ctx, func(comment *models.Comment) error {
		if count > 0 {
			w.WriteByte(',')
		}
		data, err := json.Marshal(comment)
		if err != nil {
			return err
		}
		w.Write(data)
		count++
		return nil
	})
	w.WriteByte(']')
	return count, err
}
