package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kiko-poker/backend/internal/models"
)

func TestSweeper_PurgesUnobservedSessions(t *testing.T) {
	store, clock, pub := newTestStore(t)
	sess, err := store.Create("Nobody watching", time.Minute)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	res := store.SweepExpired()
	require.Equal(t, 1, res.Expired)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewSweeper(store, 5*time.Millisecond, zaptest.NewLogger(t)).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return store.Count() == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Contains(t, pub.kinds(), models.EventExpired)
	_, err = store.Snapshot(sess.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
