package api

import (
	"net/http"

	"github.com/blog-comment-widget/internal/widget"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WidgetHandler serves the embedded discussion widget fragment
type WidgetHandler struct {
	deps   Deps
	loader *widget.Loader
	log    zerolog.Logger
}

// NewWidgetHandler creates a new WidgetHandler
func NewWidgetHandler(deps Deps, log zerolog.Logger) *WidgetHandler {
	return &WidgetHandler{
		deps:   deps,
		loader: widget.NewLoader(deps.Config.Giscus, log),
		log:    log.With().Str("handler", "widget").Logger(),
	}
}

// Giscus handles GET /widget/giscus
func (h *WidgetHandler) Giscus(c *gin.Context) {
	script := h.loader.Render()
	if script == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "discussion widget is not configured"})
		return
	}

	out, err := h.deps.Renderer.Giscus(script)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render discussion widget")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}
