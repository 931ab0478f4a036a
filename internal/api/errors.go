package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/blog-comment-widget/internal/store"
	"github.com/gin-gonic/gin"
)

// errorCodeDefiner maps store error kinds to HTTP status codes
func errorCodeDefiner(err error) int {
	var (
		verr    *store.ValidationError
		authErr *store.AuthError
		subErr  *store.SubscriptionError
		stErr   *store.StoreError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &subErr), errors.As(err, &stErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sessionToken reads the visitor session from the bearer header or the cookie
func sessionToken(c *gin.Context, cookieName string) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	token, err := c.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return token
}
