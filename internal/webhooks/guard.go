// Package webhooks remembers which gateway callbacks were already handled so
// replays short-circuit before they reach the ledger.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long a handled callback is remembered.
const DefaultTTL = 72 * time.Hour

type replayStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	WebhookKey(kind, correlationID string) string
}

// ReplayGuard marks callbacks as seen with SETNX.
type ReplayGuard struct {
	store replayStore
	ttl   time.Duration
}

// NewReplayGuard builds a guard over the shared Redis client.
func NewReplayGuard(store replayStore, ttl time.Duration) (*ReplayGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &ReplayGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark records the callback and reports whether it had been seen before.
// A nil guard treats every callback as new.
func (g *ReplayGuard) CheckAndMark(ctx context.Context, kind, correlationID string) (bool, error) {
	if g == nil {
		return false, nil
	}
	if correlationID == "" {
		return false, errors.New("correlation id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookKey(kind, correlationID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set replay key: %w", err)
	}
	return !set, nil
}

// Forget drops the mark so a redelivery of a callback that failed is processed again.
func (g *ReplayGuard) Forget(ctx context.Context, kind, correlationID string) error {
	if g == nil {
		return nil
	}
	if correlationID == "" {
		return errors.New("correlation id is required")
	}
	return g.store.Del(ctx, g.store.WebhookKey(kind, correlationID))
}
