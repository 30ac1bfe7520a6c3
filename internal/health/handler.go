// Package health reports liveness with session and connection counts.
package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiko-poker/backend/pkg/response"
)

// SessionCounter is satisfied by the session store.
type SessionCounter interface {
	Count() int
}

// ConnectionCounter is satisfied by the hub.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Status is the GET /health payload.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	StartedAt time.Time `json:"started_at"`
	Uptime    Uptime    `json:"uptime"`
	Services  Services  `json:"services"`
}

// Uptime is how long the process has been serving.
type Uptime struct {
	Seconds int64  `json:"seconds"`
	Human   string `json:"human"`
}

// Services reports the session store and live WebSocket subscriptions.
type Services struct {
	Sessions       string `json:"sessions"`
	ActiveSessions int    `json:"active_sessions"`
	Connections    int    `json:"connections"`
}

// Handler serves GET /health.
type Handler struct {
	sessions    SessionCounter
	connections ConnectionCounter
	startedAt   time.Time
	now         func() time.Time
}

// NewHandler creates a health handler; uptime counts from startedAt.
func NewHandler(sessions SessionCounter, connections ConnectionCounter, startedAt time.Time) *Handler {
	return &Handler{sessions: sessions, connections: connections, startedAt: startedAt, now: time.Now}
}

// Check handles GET /health.
func (h *Handler) Check(c *gin.Context) {
	response.OK(c, h.status())
}

func (h *Handler) status() Status {
	now := h.now()
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		uptime = 0
	}
	return Status{
		Status:    "healthy",
		Timestamp: now,
		StartedAt: h.startedAt,
		Uptime: Uptime{
			Seconds: int64(uptime / time.Second),
			Human:   FormatUptime(uptime),
		},
		Services: Services{
			Sessions:       "up",
			ActiveSessions: h.sessions.Count(),
			Connections:    h.connections.ConnectionCount(),
		},
	}
}

// FormatUptime renders d as "1d 2h 3m 4s", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	units := []struct {
		suffix string
		size   int64
	}{
		{"d", 86400},
		{"h", 3600},
		{"m", 60},
		{"s", 1},
	}
	var parts []string
	for _, u := range units {
		n := total / u.size
		total %= u.size
		if n == 0 && len(parts) == 0 && u.suffix != "s" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
	}
	return strings.Join(parts, " ")
}
