// Package health exposes liveness and readiness probes.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RoomStats is the slice of the registry the probes report on.
type RoomStats interface {
	Len() int
}

// Handler manages health check endpoints
type Handler struct {
	rooms RoomStats
}

// NewHandler creates a new health check handler
func NewHandler(rooms RoomStats) *Handler {
	return &Handler{rooms: rooms}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Rooms     int               `json:"rooms"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// The server keeps everything in process memory, so readiness has no
// external dependencies to check; it reports registry occupancy for
// operators instead.
func (h *Handler) Readiness(c *gin.Context) {
	rooms := 0
	if h.rooms != nil {
		rooms = h.rooms.Len()
	}

	c.JSON(http.StatusOK, ReadinessResponse{
		Status:    "ready",
		Checks:    map[string]string{"registry": "healthy"},
		Rooms:     rooms,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
