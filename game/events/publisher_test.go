package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shoreline-games/shorebot/testutil"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	c, ps := testutil.SetupTestCache(t)
	pub := NewPublisher(c, ps, zap.NewNop())
	ctx := context.Background()

	msgs, cancel, err := ps.Subscribe(ctx, Channel)
	require.NoError(t, err)
	defer cancel()

	pub.Publish(ctx, TypeSpawned, map[string]interface{}{"character": "Rem", "key": "chan-1"})

	select {
	case msg := <-msgs:
		assert.Equal(t, Channel, msg.Channel)
		assert.Contains(t, msg.Payload, `"type":"spawned"`)
		assert.Contains(t, msg.Payload, `"character":"Rem"`)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestRecentRing(t *testing.T) {
	c, ps := testutil.SetupTestCache(t)
	pub := NewPublisher(c, ps, zap.NewNop())
	ctx := context.Background()

	pub.Publish(ctx, TypeSpawned, map[string]interface{}{"n": 1})
	pub.Publish(ctx, TypeClaimed, map[string]interface{}{"n": 2})
	pub.Publish(ctx, TypeSpawnExpired, map[string]interface{}{"n": 3})

	evts, err := pub.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	// Newest first.
	assert.Equal(t, TypeSpawnExpired, evts[0].Type)
	assert.Equal(t, TypeClaimed, evts[1].Type)
}
