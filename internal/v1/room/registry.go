package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/impermachat/server/internal/v1/bus"
	"github.com/impermachat/server/internal/v1/logging"
	"github.com/impermachat/server/internal/v1/metrics"
)

// ErrRoomNotFound is returned by WithRoom when the room id has no live
// entry, usually because the janitor evicted it between the request
// arriving and the lock being acquired. Handlers treat it as a normal
// shutdown, not a failure.
var ErrRoomNotFound = errors.New("room not found")

// DefaultConnectTTL is the lifetime granted to a room created by its
// first SSE subscriber rather than by the room page.
const DefaultConnectTTL = 30 * time.Second

const janitorInterval = time.Second

// Registry owns every live room. The single mutex guards the map and
// all room state; see the package comment for the locking discipline.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	janitorDone chan struct{}
}

// NewRegistry creates an empty registry. Call Start to run the janitor.
func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		janitorDone: make(chan struct{}),
	}
}

// GetOrCreate returns the room for roomID, creating it with defaultTTL
// if absent.
func (g *Registry) GetOrCreate(roomID string, defaultTTL time.Duration) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getOrCreateLocked(roomID, defaultTTL)
}

func (g *Registry) getOrCreateLocked(roomID string, defaultTTL time.Duration) *Room {
	if r, ok := g.rooms[roomID]; ok {
		return r
	}
	return g.createLocked(roomID, defaultTTL)
}

func (g *Registry) createLocked(roomID string, ttl time.Duration) *Room {
	r := newRoom(ttl)
	g.rooms[roomID] = r
	metrics.ActiveRooms.Inc()
	return r
}

// WithRoom runs fn with exclusive access to the room. Returns
// ErrRoomNotFound if the room is absent; fn must not retain the *Room
// or perform socket writes while the lock is held.
func (g *Registry) WithRoom(roomID string, fn func(*Room)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	fn(r)
	return nil
}

// Remove deletes the room and terminates its subscribers.
func (g *Registry) Remove(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(roomID)
}

func (g *Registry) removeLocked(roomID string) {
	r, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(g.rooms, roomID)
	r.bus.Close()
	metrics.ActiveRooms.Dec()
}

// Len reports the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Start launches the janitor, which wakes once per second to broadcast
// time updates and evict expired rooms. It stops when ctx is cancelled.
func (g *Registry) Start(ctx context.Context) {
	go g.janitor(ctx)
}

// Wait blocks until the janitor has exited.
func (g *Registry) Wait() {
	<-g.janitorDone
}

func (g *Registry) janitor(ctx context.Context) {
	defer close(g.janitorDone)

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "janitor stopped")
			return
		case now := <-ticker.C:
			g.sweep(ctx, now)
		}
	}
}

// sweep broadcasts UpdateTime to every live room and ShutdownRoom to
// every expired one, then evicts the expired set. Publish results are
// ignored: a room with no subscribers is legal.
func (g *Registry) sweep(ctx context.Context, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var expired []string
	for roomID, r := range g.rooms {
		if now.After(r.expiration) {
			r.bus.Publish(bus.Event{ConnectionID: bus.SystemConnectionID, Action: bus.ActionShutdownRoom})
			expired = append(expired, roomID)
		} else {
			r.bus.Publish(bus.Event{ConnectionID: bus.SystemConnectionID, Action: bus.ActionUpdateTime})
		}
	}

	for _, roomID := range expired {
		g.removeLocked(roomID)
		metrics.RoomsExpired.Inc()
		logging.Info(ctx, "room expired", zap.String("room_id", roomID))
	}
}
