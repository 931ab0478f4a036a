package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionHandler handles anonymous sign-in
type SessionHandler struct {
	deps Deps
	log  zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(deps Deps, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		deps: deps,
		log:  log.With().Str("handler", "sessions").Logger(),
	}
}

// SignInAnonymously handles POST /v1/sessions/anonymous
func (h *SessionHandler) SignInAnonymously(c *gin.Context) {
	session, err := h.deps.Identity.SignInAnonymously(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Anonymous sign-in failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not start an anonymous session"})
		return
	}

	cfg := h.deps.Config.Widget
	setSessionCookie(c, cfg.SessionCookieName, session.ID, cfg.SessionTTL)
	c.JSON(http.StatusCreated, session)
}

func setSessionCookie(c *gin.Context, name, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
}
