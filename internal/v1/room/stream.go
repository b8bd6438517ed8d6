package room

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/impermachat/server/internal/v1/bus"
	"github.com/impermachat/server/internal/v1/logging"
	"github.com/impermachat/server/internal/v1/metrics"
	"github.com/impermachat/server/internal/v1/middleware"
)

// Connect serves GET /room/:roomID/connect, the long-lived SSE stream.
// The first subscriber of an unknown room creates it with a short
// default lifetime; the room page is what grants real lifetimes.
//
// On connect the stream primes the client view from current state:
// flush primer, history, typing state, history again in per-line primed
// framing (the client needs both), then either the name prompt or the
// chat input depending on whether this connection already has a name.
// After priming, the drive loop renders one update per action event
// until the room shuts down or the client goes away.
func (h *Handlers) Connect(c *gin.Context) {
	connectionID, ok := middleware.ConnectionID(c)
	if !ok {
		c.Data(http.StatusOK, contentTypeEventStream, []byte(missingCookieBody))
		return
	}

	roomID := c.Param("roomID")
	ctx := h.logCtx(c, roomID, connectionID)

	h.registry.mu.Lock()
	r := h.registry.getOrCreateLocked(roomID, DefaultConnectTTL)
	r.joinCount++
	sub := r.bus.Subscribe()
	history := r.historySnapshotLocked()
	typing := r.typingSnapshotLocked()
	name, hasName := r.nameForLocked(connectionID)
	h.registry.mu.Unlock()
	defer sub.Cancel()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	c.Header("Content-Type", contentTypeEventStream)
	c.Header("Cache-Control", "no-cache")
	w := c.Writer

	if err := writePrimer(w); err != nil {
		return
	}
	w.Flush()

	historyHTML, err := h.renderer.Render("submit_message", messagesModel{Messages: history, ConnectionID: connectionID})
	if err != nil {
		logging.Error(ctx, "failed to render message history", zap.Error(err))
		return
	}
	typingHTML, err := h.renderer.Render("typing_messages", typingModel{Messages: typing, ConnectionID: connectionID})
	if err != nil {
		logging.Error(ctx, "failed to render typing state", zap.Error(err))
		return
	}

	if err := writeFragments(w, historyHTML); err != nil {
		return
	}
	if err := writeFragments(w, typingHTML); err != nil {
		return
	}
	if err := writePrimedFragments(w, historyHTML); err != nil {
		return
	}

	if hasName {
		html, err := h.renderer.Render("chat_input", chatInputModel{RoomID: roomID, Person: name})
		if err != nil {
			logging.Error(ctx, "failed to render chat input", zap.Error(err))
			return
		}
		if err := writeFragments(w, html); err != nil {
			return
		}
	} else {
		html, err := h.renderer.Render("init_name", roomModel{RoomID: roomID})
		if err != nil {
			logging.Error(ctx, "failed to render name prompt", zap.Error(err))
			return
		}
		if err := writeFragments(w, html); err != nil {
			return
		}
	}
	w.Flush()

	logging.Info(ctx, "subscriber connected", zap.String("room_id", roomID))
	h.drive(ctx, c, roomID, connectionID, sub)
	logging.Info(ctx, "stream closed", zap.String("room_id", roomID))
}

// drive consumes action events until the room shuts down, the client
// disconnects, or the bus closes underneath us (room evicted).
func (h *Handlers) drive(ctx context.Context, c *gin.Context, roomID, connectionID string, sub *bus.Subscriber) {
	w := c.Writer
	clientGone := c.Request.Context().Done()
	var droppedSeen uint64

	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if d := sub.Dropped(); d > droppedSeen {
				logging.Warn(ctx, "subscriber lagging, events dropped",
					zap.Uint64("dropped", d-droppedSeen), zap.String("action", string(ev.Action)))
				droppedSeen = d
			}
			terminal := h.dispatch(ctx, w, roomID, connectionID, ev)
			w.Flush()
			if terminal {
				return
			}
		}
	}
}

// dispatch renders and writes the updates one event calls for. State is
// always re-read under the registry lock; the event itself carries only
// the originator and the action tag. A room that vanished between event
// receipt and lock acquisition makes the event a silent no-op. Returns
// true when the stream must terminate.
func (h *Handlers) dispatch(ctx context.Context, w http.ResponseWriter, roomID, connectionID string, ev bus.Event) bool {
	switch ev.Action {
	case bus.ActionTyping:
		typing, ok := h.snapshotTyping(roomID)
		if !ok {
			return false
		}
		h.writeTyping(ctx, w, typing, connectionID)

	case bus.ActionSend:
		history, typing, ok := h.snapshotRoom(roomID)
		if !ok {
			return false
		}
		html, err := h.renderer.Render("submit_message", messagesModel{Messages: history, ConnectionID: connectionID})
		if err != nil {
			logging.Error(ctx, "failed to render message history", zap.Error(err))
			return false
		}
		_ = writePrimedFragments(w, html)
		if ev.ConnectionID == connectionID {
			_ = writeSignals(w, "{message: ''}")
		}
		h.writeTyping(ctx, w, typing, connectionID)

	case bus.ActionSetName:
		name, hasName, typing, ok := h.snapshotName(roomID, connectionID)
		if !ok || !hasName {
			return false
		}
		if ev.ConnectionID == connectionID {
			html, err := h.renderer.Render("chat_input", chatInputModel{RoomID: roomID, Person: name})
			if err != nil {
				logging.Error(ctx, "failed to render chat input", zap.Error(err))
				return false
			}
			_ = writeFragments(w, html)
		}
		h.writeTyping(ctx, w, typing, connectionID)

	case bus.ActionUpdateTime:
		remaining, ok := h.snapshotRemaining(roomID)
		if !ok {
			return false
		}
		_ = writeSignals(w, "{remaining: '"+FormatRemaining(remaining)+"'}")

	case bus.ActionShutdownRoom:
		html, err := h.renderer.Render("shutdown_room", nil)
		if err != nil {
			logging.Error(ctx, "failed to render shutdown notice", zap.Error(err))
			return true
		}
		_ = writeFragments(w, html)
		return true

	case bus.ActionMajorError:
		if ev.ConnectionID != connectionID {
			return false
		}
		html, err := h.renderer.Render("major_error", nil)
		if err != nil {
			logging.Error(ctx, "failed to render major error", zap.Error(err))
			return false
		}
		_ = writeFragments(w, html)
	}
	return false
}

func (h *Handlers) writeTyping(ctx context.Context, w http.ResponseWriter, typing map[string]Message, connectionID string) {
	html, err := h.renderer.Render("typing_messages", typingModel{Messages: typing, ConnectionID: connectionID})
	if err != nil {
		logging.Error(ctx, "failed to render typing state", zap.Error(err))
		return
	}
	_ = writePrimedFragments(w, html)
}

// Snapshot helpers: each takes the registry lock once and copies what
// the render needs, so the SSE write never happens under the lock.

func (h *Handlers) snapshotTyping(roomID string) (map[string]Message, bool) {
	var typing map[string]Message
	err := h.registry.WithRoom(roomID, func(r *Room) {
		typing = r.typingSnapshotLocked()
	})
	return typing, err == nil
}

func (h *Handlers) snapshotRoom(roomID string) ([]Message, map[string]Message, bool) {
	var history []Message
	var typing map[string]Message
	err := h.registry.WithRoom(roomID, func(r *Room) {
		history = r.historySnapshotLocked()
		typing = r.typingSnapshotLocked()
	})
	return history, typing, err == nil
}

func (h *Handlers) snapshotName(roomID, connectionID string) (string, bool, map[string]Message, bool) {
	var name string
	var hasName bool
	var typing map[string]Message
	err := h.registry.WithRoom(roomID, func(r *Room) {
		name, hasName = r.nameForLocked(connectionID)
		typing = r.typingSnapshotLocked()
	})
	return name, hasName, typing, err == nil
}

func (h *Handlers) snapshotRemaining(roomID string) (time.Duration, bool) {
	var remaining time.Duration
	err := h.registry.WithRoom(roomID, func(r *Room) {
		remaining = time.Until(r.expiration)
	})
	return remaining, err == nil
}
