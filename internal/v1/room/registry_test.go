package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impermachat/server/internal/v1/bus"
)

func TestGetOrCreateNewRoom(t *testing.T) {
	g := NewRegistry()

	r := g.GetOrCreate("new-room", time.Minute)

	require.NotNil(t, r)
	assert.Equal(t, 1, g.Len())
	assert.Empty(t, r.messageHistory)
	assert.Empty(t, r.nameToID)
	assert.Equal(t, uint64(0), r.joinCount)
	assert.WithinDuration(t, time.Now().Add(time.Minute), r.expiration, time.Second)
}

func TestGetOrCreateExistingRoom(t *testing.T) {
	g := NewRegistry()

	r1 := g.GetOrCreate("existing", time.Minute)
	r2 := g.GetOrCreate("existing", time.Hour)

	assert.Same(t, r1, r2)
	assert.Equal(t, 1, g.Len())
	// a second lookup never rewrites the expiration
	assert.WithinDuration(t, time.Now().Add(time.Minute), r2.expiration, time.Second)
}

func TestWithRoomNotFound(t *testing.T) {
	g := NewRegistry()

	err := g.WithRoom("ghost", func(*Room) {
		t.Fatal("fn must not run for a missing room")
	})

	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestWithRoomRunsWithExclusiveAccess(t *testing.T) {
	g := NewRegistry()
	g.GetOrCreate("r", time.Minute)

	ran := false
	err := g.WithRoom("r", func(r *Room) {
		ran = true
		r.claimNameLocked("alice", "conn-1")
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRemoveClosesBus(t *testing.T) {
	g := NewRegistry()
	r := g.GetOrCreate("doomed", time.Minute)
	sub := r.bus.Subscribe()

	g.Remove("doomed")

	assert.Equal(t, 0, g.Len())
	_, open := <-sub.C()
	assert.False(t, open)
	assert.ErrorIs(t, g.WithRoom("doomed", func(*Room) {}), ErrRoomNotFound)
}

func TestSweepBroadcastsTimeUpdates(t *testing.T) {
	g := NewRegistry()
	r := g.GetOrCreate("alive", time.Hour)
	sub := r.bus.Subscribe()

	g.sweep(context.Background(), time.Now())

	ev := <-sub.C()
	assert.Equal(t, bus.ActionUpdateTime, ev.Action)
	assert.Equal(t, bus.SystemConnectionID, ev.ConnectionID)
	assert.Equal(t, 1, g.Len())
}

func TestSweepEvictsExpiredRooms(t *testing.T) {
	g := NewRegistry()
	r := g.GetOrCreate("short", time.Minute)
	sub := r.bus.Subscribe()

	g.sweep(context.Background(), time.Now().Add(2*time.Minute))

	ev, open := <-sub.C()
	require.True(t, open)
	assert.Equal(t, bus.ActionShutdownRoom, ev.Action)
	assert.Equal(t, bus.SystemConnectionID, ev.ConnectionID)

	// bus closed after the shutdown event drained
	_, open = <-sub.C()
	assert.False(t, open)
	assert.Equal(t, 0, g.Len())
}

func TestSweepWithoutSubscribersIsFine(t *testing.T) {
	g := NewRegistry()
	g.GetOrCreate("empty", time.Minute)

	g.sweep(context.Background(), time.Now().Add(2*time.Minute))

	assert.Equal(t, 0, g.Len())
}

func TestSweepMixedRooms(t *testing.T) {
	g := NewRegistry()
	g.GetOrCreate("old", time.Minute)
	g.GetOrCreate("young", time.Hour)

	g.sweep(context.Background(), time.Now().Add(10*time.Minute))

	assert.Equal(t, 1, g.Len())
	assert.NoError(t, g.WithRoom("young", func(*Room) {}))
	assert.ErrorIs(t, g.WithRoom("old", func(*Room) {}), ErrRoomNotFound)
}

func TestJanitorStopsOnCancel(t *testing.T) {
	g := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	g.Start(ctx)
	cancel()
	g.Wait()
}

func TestExpiryWindowOneMinuteRoom(t *testing.T) {
	g := NewRegistry()
	r := g.GetOrCreate("one-minute", time.Minute)

	// not expired one tick before the deadline, expired one tick after
	g.sweep(context.Background(), r.expiration.Add(-time.Second))
	assert.Equal(t, 1, g.Len())
	g.sweep(context.Background(), r.expiration.Add(time.Second))
	assert.Equal(t, 0, g.Len())
}
