package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/store"
)

// errStreamEnded is reported when the server closes the stream without an error event
var errStreamEnded = errors.New("snapshot stream ended")

type streamEvent struct {
	name string
	data string
}

type streamSubscription struct {
	ctx        context.Context
	cancel     context.CancelFunc
	contentKey string
	body       io.ReadCloser

	out  chan models.Snapshot
	done chan struct{}

	mu  sync.Mutex
	err error
}

var _ store.Subscription = (*streamSubscription)(nil)

func newStreamSubscription(ctx context.Context, cancel context.CancelFunc, contentKey string, body io.ReadCloser) *streamSubscription {
	return &streamSubscription{
		ctx:        ctx,
		cancel:     cancel,
		contentKey: contentKey,
		body:       body,
		out:        make(chan models.Snapshot),
		done:       make(chan struct{}),
	}
}

func (s *streamSubscription) Snapshots() <-chan models.Snapshot { return s.out }

func (s *streamSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream and waits for the reader to exit.
func (s *streamSubscription) Close() {
	s.cancel()
	<-s.done
}

func (s *streamSubscription) fail(err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.err = &store.SubscriptionError{ContentKey: s.contentKey, Err: err}
	s.mu.Unlock()
}

func (s *streamSubscription) run() {
	defer close(s.done)
	defer close(s.out)
	defer s.body.Close() //nolint:errcheck // best-effort close

	r := bufio.NewReader(s.body)
	for {
		ev, err := readEvent(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errStreamEnded
			}
			s.fail(err)
			return
		}

		switch ev.name {
		case "snapshot":
			var snap models.Snapshot
			if err := json.Unmarshal([]byte(ev.data), &snap); err != nil {
				s.fail(fmt.Errorf("decode snapshot: %w", err))
				return
			}
			if snap.Comments == nil {
				snap.Comments = []models.Comment{}
			}
			select {
			case s.out <- snap:
			case <-s.ctx.Done():
				return
			}
		case "error":
			var payload struct {
				Error string `json:"error"`
			}
			msg := ev.data
			if json.Unmarshal([]byte(ev.data), &payload) == nil && payload.Error != "" {
				msg = payload.Error
			}
			s.fail(errors.New(msg))
			return
		}
	}
}

// readEvent reads one server-sent event. Comment lines and unknown fields
// are skipped.
func readEvent(r *bufio.Reader) (streamEvent, error) {
	var ev streamEvent
	var data []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if ev.name == "" && len(data) == 0 {
				continue
			}
			if ev.name == "" {
				ev.name = "message"
			}
			ev.data = strings.Join(data, "\n")
			return ev, nil
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}
