// Package public serves the landing page and the room-creation form.
package public

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/impermachat/server/internal/v1/logging"
	"github.com/impermachat/server/internal/v1/views"
)

// Handlers owns the two landing endpoints.
type Handlers struct {
	renderer views.Renderer
}

// NewHandlers wires the landing page to a renderer.
func NewHandlers(renderer views.Renderer) *Handlers {
	return &Handlers{renderer: renderer}
}

type indexModel struct {
	ShowMessage bool
	Message     string
}

// Index serves GET /.
func (h *Handlers) Index(c *gin.Context) {
	h.renderIndex(c, indexModel{})
}

// CreateRoom serves POST /. A blank room name re-renders the landing
// page with a prompt; anything else redirects to the sanitized room
// page carrying the requested expiry.
func (h *Handlers) CreateRoom(c *gin.Context) {
	roomName := c.PostForm("room_name")
	if strings.TrimSpace(roomName) == "" {
		h.renderIndex(c, indexModel{ShowMessage: true, Message: "Enter a room name"})
		return
	}

	hours := formUint(c, "hours", 0)
	minutes := formUint(c, "minutes", 1)

	target := fmt.Sprintf("/room/%s?hours=%d&minutes=%d", SanitizeRoomName(roomName), hours, minutes)
	c.Redirect(http.StatusSeeOther, target)
}

// SanitizeRoomName keeps only ASCII letters, digits, '-' and '_', and
// lowercases the result. Sanitizing twice is a no-op.
func SanitizeRoomName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}

func (h *Handlers) renderIndex(c *gin.Context, model indexModel) {
	html, err := h.renderer.Render("index", model)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to render landing page", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func formUint(c *gin.Context, key string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(c.PostForm(key), 10, 32)
	if err != nil {
		return fallback
	}
	return v
}
