package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/shoreline-games/shorebot/cache"
)

// Channel is the pub/sub channel game events are published on.
const Channel = "game:events"

// recentKey is the cache list holding the most recent events for late joiners.
const recentKey = "events:recent"

// recentMax bounds the recent-event ring.
const recentMax = 100

// Event types emitted by the game services.
const (
	TypeSpawned          = "spawned"
	TypeClaimed          = "claimed"
	TypeSpawnExpired     = "spawn_expired"
	TypeAuctionCreated   = "auction_created"
	TypeAuctionBid       = "auction_bid"
	TypeAuctionSettled   = "auction_settled"
	TypeAuctionCancelled = "auction_cancelled"
	TypeTradeCreated     = "trade_created"
)

// Event is one game occurrence pushed to the gateway. Data carries the
// type-specific payload; errors never cross this boundary.
type Event struct {
	Type string                 `json:"type"`
	At   time.Time              `json:"at"`
	Data map[string]interface{} `json:"data"`
}

// Publisher fans game events out to the pub/sub channel and keeps a short
// ring of recent events in the cache. Publishing is best-effort: a cache
// outage must never fail the game action that triggered the event.
type Publisher struct {
	cache  cache.Cache
	pubsub cache.PubSub
	logger *zap.Logger
}

// NewPublisher creates a new event Publisher.
func NewPublisher(c cache.Cache, ps cache.PubSub, logger *zap.Logger) *Publisher {
	return &Publisher{cache: c, pubsub: ps, logger: logger}
}

// Publish emits one event.
func (p *Publisher) Publish(ctx context.Context, typ string, data map[string]interface{}) {
	evt := Event{Type: typ, At: time.Now().UTC(), Data: data}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("event marshal failed", zap.String("type", typ), zap.Error(err))
		return
	}
	if err := p.pubsub.Publish(ctx, Channel, string(payload)); err != nil {
		p.logger.Warn("event publish failed", zap.String("type", typ), zap.Error(err))
	}
	if err := p.cache.LPush(ctx, recentKey, string(payload)); err != nil {
		p.logger.Warn("event ring push failed", zap.Error(err))
		return
	}
	if err := p.cache.LTrim(ctx, recentKey, 0, recentMax-1); err != nil {
		p.logger.Warn("event ring trim failed", zap.Error(err))
	}
}

// Recent returns the latest events, newest first.
func (p *Publisher) Recent(ctx context.Context, n int64) ([]Event, error) {
	if n <= 0 || n > recentMax {
		n = recentMax
	}
	raw, err := p.cache.LRange(ctx, recentKey, 0, n-1)
	if err != nil {
		return nil, err
	}
	evts := make([]Event, 0, len(raw))
	for _, s := range raw {
		var e Event
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		evts = append(evts, e)
	}
	return evts, nil
}
