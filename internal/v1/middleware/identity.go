// Package middleware contains Gin middleware for the application.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdentityCookie is the cookie that carries a participant's connection id.
const IdentityCookie = "impermachat_id"

// EnsureIdentity guarantees that every browser leaves with a stable
// connection id. A request that already carries the cookie passes through
// unmodified; one that does not is answered with a freshly minted UUIDv4
// in a Set-Cookie header. The new id is intentionally not injected into
// the current request: handlers only ever trust what the browser sent.
func EnsureIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := c.Request.Cookie(IdentityCookie); err != nil {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     IdentityCookie,
				Value:    uuid.NewString(),
				Path:     "/",
				HttpOnly: true,
			})
		}
		c.Next()
	}
}

// ConnectionID extracts the caller's connection id from the request
// cookie. The second return is false when the cookie is absent, which
// handlers treat as the major-error diagnostic path.
func ConnectionID(c *gin.Context) (string, bool) {
	cookie, err := c.Request.Cookie(IdentityCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
