package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kiko-poker/backend/internal/models"
)

const (
	// DefaultChannelPrefix is prepended to the session id to form the Redis channel.
	DefaultChannelPrefix = "kiko:session:"
	// DefaultMirrorQueue bounds how many events may wait for Redis.
	DefaultMirrorQueue = 256

	publishTimeout = 5 * time.Second
)

// mirrorPayload is the message published to Redis for every session event.
type mirrorPayload struct {
	Event models.EventKind   `json:"event"`
	Data  models.SessionView `json:"data"`
	At    int64              `json:"at"`
}

// RedisMirror copies hub events onto Redis pub/sub for external consumers.
// Mirror only enqueues; Run does the network I/O.
type RedisMirror struct {
	client *redis.Client
	prefix string
	queue  chan models.Event
	logger *zap.Logger
}

// NewRedisMirror creates a mirror publishing to prefix+session_id.
func NewRedisMirror(client *redis.Client, prefix string, queueSize int, logger *zap.Logger) *RedisMirror {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if queueSize <= 0 {
		queueSize = DefaultMirrorQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMirror{
		client: client,
		prefix: prefix,
		queue:  make(chan models.Event, queueSize),
		logger: logger,
	}
}

// Channel is the Redis channel events of sessionID go to.
func (m *RedisMirror) Channel(sessionID models.SessionID) string {
	return m.prefix + sessionID.String()
}

// Mirror queues ev for publishing. When the queue is full the event is dropped.
func (m *RedisMirror) Mirror(ev models.Event) {
	select {
	case m.queue <- ev:
	default:
		m.logger.Warn("redis mirror queue full, dropping event",
			zap.String("session_id", ev.SessionID.String()),
			zap.String("event", string(ev.Kind)),
			zap.Uint64("version", ev.Version()),
		)
	}
}

// Run publishes queued events until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.queue:
			if err := m.publish(ctx, ev); err != nil {
				m.logger.Warn("redis mirror publish failed",
					zap.String("session_id", ev.SessionID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

func (m *RedisMirror) publish(ctx context.Context, ev models.Event) error {
	body, err := json.Marshal(mirrorPayload{
		Event: ev.Kind,
		Data:  models.NewSessionView(ev.Session, ev.At),
		At:    ev.At.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return m.client.Publish(ctx, m.Channel(ev.SessionID), body).Err()
}
