package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kiko-poker/backend/internal/models"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisMirror_PublishesSessionView(t *testing.T) {
	client := newTestRedis(t)
	mirror := NewRedisMirror(client, "test:", 8, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := models.NewSession("Sprint Planning", time.Now(), time.Hour)
	require.NoError(t, err)
	p, err := sess.AddParticipant("Alice", time.Now())
	require.NoError(t, err)
	require.NoError(t, sess.CastVote(p.ID, "8"))

	pubsub := client.Subscribe(ctx, mirror.Channel(sess.ID))
	defer pubsub.Close()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	go mirror.Run(ctx)

	hub := NewHub(4, mirror, zaptest.NewLogger(t))
	hub.Publish(models.Event{SessionID: sess.ID, Kind: models.EventVoteCast, Session: sess.Clone(), At: time.Now()})

	select {
	case msg := <-pubsub.Channel():
		assert.Equal(t, "test:"+sess.ID.String(), msg.Channel)

		var payload struct {
			Event models.EventKind   `json:"event"`
			Data  models.SessionView `json:"data"`
			At    int64              `json:"at"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, models.EventVoteCast, payload.Event)
		assert.Equal(t, sess.ID, payload.Data.ID)
		require.Len(t, payload.Data.Participants, 1)
		assert.True(t, payload.Data.Participants[0].HasVoted)
		assert.Nil(t, payload.Data.Participants[0].Vote)
		assert.NotZero(t, payload.At)
	case <-time.After(3 * time.Second):
		t.Fatal("no message mirrored to redis")
	}
}

func TestRedisMirror_DropsWhenQueueFull(t *testing.T) {
	client := newTestRedis(t)
	mirror := NewRedisMirror(client, "", 1, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := uint64(1); v <= 10; v++ {
			mirror.Mirror(event("S1", v))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Mirror blocked with nobody draining the queue")
	}
	assert.Len(t, mirror.queue, 1)
	assert.Equal(t, DefaultChannelPrefix+"S1", mirror.Channel("S1"))
}
