package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/blog-comment-widget/internal/models"
	"github.com/blog-comment-widget/internal/widget"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
)

// CommentHandler serves the comment section, its live stream and submissions
type CommentHandler struct {
	deps   Deps
	format widget.Formatter
	giscus *widget.Loader
	log    zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(deps Deps, format widget.Formatter, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		deps:   deps,
		format: format,
		giscus: widget.NewLoader(deps.Config.Giscus, log),
		log:    log.With().Str("handler", "comments").Logger(),
	}
}

// submitRequest is a composer submission, as JSON or form fields
type submitRequest struct {
	AuthorLabel string `json:"author_label" form:"author_label"`
	Body        string `json:"body" form:"body"`
}

// streamEvent is the payload of every SSE event
type streamEvent struct {
	widget.ListState
	HTML string `json:"html"`
}

func (h *CommentHandler) store(c *gin.Context) SessionStore {
	return h.deps.Stores(sessionToken(c, h.deps.Config.Widget.SessionCookieName))
}

func parseOrder(c *gin.Context) (models.Order, bool) {
	order, err := models.ParseOrder(c.Query("order"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return order, true
}

// Page handles GET /comments/:slug
// Renders the list, the composer and the discussion widget. A store failure
// is shown inside the section instead of failing the page. With ?defer=1, or
// COMMENT_LOAD_ON_CLICK set, nothing is queried and the page shows a
// "Load Comments" control instead; ?defer=0 overrides the setting.
func (h *CommentHandler) Page(c *gin.Context) {
	order, ok := parseOrder(c)
	if !ok {
		return
	}
	slug := c.Param("slug")

	deferred := h.deps.Config.Widget.LoadOnClick
	switch c.Query("defer") {
	case "1", "true":
		deferred = true
	case "0", "false":
		deferred = false
	}
	if deferred {
		c.HTML(http.StatusOK, "section", h.deferredSection(slug, order))
		return
	}

	section := h.section(c.Request.Context(), slug, order, h.store(c))
	if c.Query("posted") == "1" {
		section.Flash = &widget.Ack{Kind: widget.AckSuccess, Message: widget.SuccessMessage}
	}
	c.HTML(http.StatusOK, "section", section)
}

func (h *CommentHandler) section(ctx context.Context, slug string, order models.Order, s SessionStore) widget.Section {
	section := h.emptySection(slug, order)
	section.List.Rows = []widget.Row{}
	snap, err := s.Snapshot(ctx, slug, order)
	if err != nil {
		h.log.Error().Err(err).Str("content_key", slug).Msg("Failed to load comments")
		section.List.Err = widget.MessageFor(err)
	} else {
		section.List = widget.StateFromSnapshot(snap, h.format)
	}
	return section
}

// deferredSection is the section before the visitor asks for comments. The
// list stays in the loading state until the stream delivers its first snapshot.
func (h *CommentHandler) deferredSection(slug string, order models.Order) widget.Section {
	section := h.emptySection(slug, order)
	section.List.Loading = true
	section.Deferred = true
	return section
}

func (h *CommentHandler) emptySection(slug string, order models.Order) widget.Section {
	query := ""
	if order == models.OrderDesc {
		query = "?order=desc"
	}
	return widget.Section{
		ContentKey: slug,
		List:       widget.ListState{ContentKey: slug, Order: order},
		Giscus:     h.giscus.Render(),
		StreamURL:  "/v1/comments/" + url.PathEscape(slug) + "/stream" + query,
		SubmitURL:  "/v1/comments/" + url.PathEscape(slug) + query,
	}
}

// GetSnapshot handles GET /v1/comments/:slug
func (h *CommentHandler) GetSnapshot(c *gin.Context) {
	order, ok := parseOrder(c)
	if !ok {
		return
	}
	slug := c.Param("slug")

	snap, err := h.store(c).Snapshot(c.Request.Context(), slug, order)
	if err != nil {
		h.log.Error().Err(err).Str("content_key", slug).Msg("Failed to load comments")
		c.JSON(errorCodeDefiner(err), gin.H{"error": widget.MessageFor(err)})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Stream handles GET /v1/comments/:slug/stream
// Sends a "snapshot" event for every delivered snapshot and a final "error"
// event if the live subscription stops. The subscription is released when
// the client goes away.
func (h *CommentHandler) Stream(c *gin.Context) {
	order, ok := parseOrder(c)
	if !ok {
		return
	}
	slug := c.Param("slug")

	ctx, cancel := context.WithCancel(c.Request.Context())
	view := widget.NewListView(h.store(c), slug, order, h.format, h.log)
	defer func() {
		cancel()
		view.Unmount()
	}()

	updates := make(chan widget.ListState, 1)
	view.OnChange(func(st widget.ListState) {
		select {
		case updates <- st:
		case <-ctx.Done():
		}
	})

	if err := view.Mount(ctx); err != nil {
		c.JSON(errorCodeDefiner(err), gin.H{"error": widget.MessageFor(err)})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.log.Debug().Str("content_key", slug).Msg("Stream opened")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case st := <-updates:
			html, err := h.deps.Renderer.List(st)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to render comment list")
				return false
			}
			event := "snapshot"
			if st.Failed() {
				event = "error"
			}
			c.SSEvent(event, streamEvent{ListState: st, HTML: html})
			return !st.Failed()
		}
	})

	h.log.Debug().Str("content_key", slug).Msg("Stream closed")
}

// Submit handles POST /v1/comments/:slug
// JSON bodies get a JSON acknowledgment. Form posts redirect back to the
// section on success and re-render it with the input kept on failure.
func (h *CommentHandler) Submit(c *gin.Context) {
	slug := c.Param("slug")
	isJSON := c.ContentType() == binding.MIMEJSON

	var req submitRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	s := h.store(c)
	composer := widget.NewComposer(s, slug, widget.ComposerOptions{
		PlaceholderAuthor: h.deps.Config.Widget.PlaceholderAuthor,
	}, h.log)
	composer.SetAuthor(req.AuthorLabel)
	composer.SetBody(req.Body)

	ctx, cancel := contextWithTimeout(c, h.deps.Config.Widget.SubmitTimeout)
	defer cancel()
	ack := composer.Submit(ctx)

	if session := s.Session(); session != nil {
		h.setSessionCookie(c, session.ID)
	}

	if isJSON {
		if !ack.OK() {
			c.JSON(errorCodeDefiner(ack.Err), gin.H{"error": ack.Message})
			return
		}
		resp := gin.H{"id": ack.CommentID, "message": ack.Message}
		if session := s.Session(); session != nil {
			resp["session_id"] = session.ID
		}
		c.JSON(http.StatusCreated, resp)
		return
	}

	order, _ := models.ParseOrder(c.Query("order"))
	if ack.OK() {
		target := fmt.Sprintf("/comments/%s?posted=1", url.PathEscape(slug))
		if order == models.OrderDesc {
			target += "&order=desc"
		}
		c.Redirect(http.StatusSeeOther, target)
		return
	}

	section := h.section(c.Request.Context(), slug, order, s)
	section.Author = composer.Author()
	section.Body = composer.Body()
	section.Flash = &ack
	c.HTML(errorCodeDefiner(ack.Err), "section", section)
}

func (h *CommentHandler) setSessionCookie(c *gin.Context, token string) {
	setSessionCookie(c, h.deps.Config.Widget.SessionCookieName, token, h.deps.Config.Widget.SessionTTL)
}
