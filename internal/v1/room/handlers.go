package room

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/impermachat/server/internal/v1/bus"
	"github.com/impermachat/server/internal/v1/logging"
	"github.com/impermachat/server/internal/v1/metrics"
	"github.com/impermachat/server/internal/v1/middleware"
	"github.com/impermachat/server/internal/v1/views"
)

const contentTypeEventStream = "text/event-stream"

// Handlers is the HTTP surface of the room engine. Every POST handler
// resolves the caller's connection id from the identity cookie, mutates
// the room under the registry lock, and publishes the matching action.
type Handlers struct {
	registry *Registry
	renderer views.Renderer
}

// NewHandlers wires the room endpoints to a registry and a renderer.
func NewHandlers(registry *Registry, renderer views.Renderer) *Handlers {
	return &Handlers{registry: registry, renderer: renderer}
}

type typingRequest struct {
	Message string `json:"message"`
}

type setNameRequest struct {
	Name string `json:"name"`
}

// View models resolved by the renderer by field name.

type roomModel struct {
	RoomID string
}

type messagesModel struct {
	Messages     []Message
	ConnectionID string
}

type typingModel struct {
	Messages     map[string]Message
	ConnectionID string
}

type chatInputModel struct {
	RoomID string
	Person string
}

type setNameModel struct {
	RoomID  string
	Message string
}

// RenderRoom serves GET /room/:roomID. An existing room renders its
// shell; an unknown room with no expiry query redirects home; an
// unknown room with an expiry query is created first. Absent hours
// default to 0 and absent minutes to 1; an explicit minutes=0 is
// honored, so hours=0&minutes=0 (or minutes=0 alone) creates a room
// that expires at the next janitor tick.
func (h *Handlers) RenderRoom(c *gin.Context) {
	roomID := c.Param("roomID")
	hours, hasHours := queryUint(c, "hours")
	minutes, hasMinutes := queryUint(c, "minutes")

	h.registry.mu.Lock()
	if _, ok := h.registry.rooms[roomID]; !ok {
		if !hasHours && !hasMinutes {
			h.registry.mu.Unlock()
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		if !hasMinutes {
			minutes = 1
		}
		ttl := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
		h.registry.createLocked(roomID, ttl)
	}
	h.registry.mu.Unlock()

	html, err := h.renderer.Render("room", roomModel{RoomID: roomID})
	if err != nil {
		logging.Error(h.logCtx(c, roomID, ""), "failed to render room shell", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Typing serves POST /room/:roomID/live. It overwrites the caller's
// typing buffer and announces the change. A caller without a name gets
// a MajorError scoped to them; a missing room means the room expired
// and the stream already heard about it, so the response stays 200.
func (h *Handlers) Typing(c *gin.Context) {
	connectionID, ok := middleware.ConnectionID(c)
	if !ok {
		c.Data(http.StatusOK, contentTypeEventStream, []byte(missingCookieBody))
		return
	}

	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	roomID := c.Param("roomID")
	ctx := h.logCtx(c, roomID, connectionID)

	var delivered, unnamed int
	err := h.registry.WithRoom(roomID, func(r *Room) {
		name, named := r.nameForLocked(connectionID)
		if !named {
			r.bus.Publish(bus.Event{ConnectionID: connectionID, Action: bus.ActionMajorError})
			unnamed = 1
			return
		}
		r.setTypingLocked(name, connectionID, req.Message)
		delivered = r.bus.Publish(bus.Event{ConnectionID: connectionID, Action: bus.ActionTyping})
	})
	if err == nil && unnamed == 0 && delivered == 0 {
		logging.Warn(ctx, "typing update had no live subscribers")
	}

	c.Status(http.StatusOK)
}

// Submit serves POST /room/:roomID/submit. Same preconditions as
// Typing; on success the (possibly clamped) message is appended to
// history and the typing indicator clears.
func (h *Handlers) Submit(c *gin.Context) {
	connectionID, ok := middleware.ConnectionID(c)
	if !ok {
		c.Data(http.StatusOK, contentTypeEventStream, []byte(missingCookieBody))
		return
	}

	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	roomID := c.Param("roomID")
	ctx := h.logCtx(c, roomID, connectionID)
	metrics.MessageBytes.Observe(float64(len(req.Message)))

	var delivered, unnamed int
	err := h.registry.WithRoom(roomID, func(r *Room) {
		name, named := r.nameForLocked(connectionID)
		if !named {
			r.bus.Publish(bus.Event{ConnectionID: connectionID, Action: bus.ActionMajorError})
			unnamed = 1
			return
		}
		r.appendMessageLocked(name, connectionID, req.Message)
		delivered = r.bus.Publish(bus.Event{ConnectionID: connectionID, Action: bus.ActionSend})
	})
	if err == nil && unnamed == 0 && delivered == 0 {
		logging.Warn(ctx, "message submit had no live subscribers")
	}

	c.Status(http.StatusOK)
}

type setNameOutcome int

const (
	nameClaimed setNameOutcome = iota
	nameTaken
	nameRepeated
	nameAlreadyOwned
)

// SetName serves POST /room/:roomID/name. A name binds a connection id
// exactly once per room; collisions and attempts to take a second name
// answer with an inline set_name fragment instead of an error status.
// Re-sending the name the connection already owns is a silent no-op.
func (h *Handlers) SetName(c *gin.Context) {
	connectionID, ok := middleware.ConnectionID(c)
	if !ok {
		c.Data(http.StatusOK, contentTypeEventStream, []byte(missingCookieInlineBody))
		return
	}

	var req setNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	roomID := c.Param("roomID")
	ctx := h.logCtx(c, roomID, connectionID)

	var outcome setNameOutcome
	err := h.registry.WithRoom(roomID, func(r *Room) {
		if current, named := r.nameForLocked(connectionID); named {
			if current == req.Name {
				outcome = nameRepeated
			} else {
				outcome = nameAlreadyOwned
			}
			return
		}
		if !r.claimNameLocked(req.Name, connectionID) {
			outcome = nameTaken
			return
		}
		outcome = nameClaimed
		r.bus.Publish(bus.Event{ConnectionID: connectionID, Action: bus.ActionSetName})
	})
	if errors.Is(err, ErrRoomNotFound) {
		c.Data(http.StatusOK, contentTypeEventStream, []byte(roomNotFoundInlineBody))
		return
	}

	switch outcome {
	case nameClaimed, nameRepeated:
		c.Status(http.StatusOK)
	case nameTaken:
		h.writeSetNameFragment(c, ctx, roomID, "Name already taken")
	case nameAlreadyOwned:
		h.writeSetNameFragment(c, ctx, roomID, "You already have a name")
	}
}

func (h *Handlers) writeSetNameFragment(c *gin.Context, ctx context.Context, roomID, message string) {
	html, err := h.renderer.Render("set_name", setNameModel{RoomID: roomID, Message: message})
	if err != nil {
		logging.Error(ctx, "failed to render set_name fragment", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, contentTypeEventStream, []byte(primedFragment(html)))
}

// queryUint reports the parsed query parameter and whether it was
// usable. Unparsable values are treated as absent.
func queryUint(c *gin.Context, key string) (uint64, bool) {
	raw, present := c.GetQuery(key)
	if !present {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}

// logCtx threads request-scoped identifiers into the logging context.
func (h *Handlers) logCtx(c *gin.Context, roomID, connectionID string) context.Context {
	ctx := c.Request.Context()
	if v, ok := c.Get(string(logging.CorrelationIDKey)); ok {
		if s, ok := v.(string); ok {
			ctx = context.WithValue(ctx, logging.CorrelationIDKey, s)
		}
	}
	if roomID != "" {
		ctx = context.WithValue(ctx, logging.RoomIDKey, roomID)
	}
	if connectionID != "" {
		ctx = context.WithValue(ctx, logging.ConnectionIDKey, connectionID)
	}
	return ctx
}
