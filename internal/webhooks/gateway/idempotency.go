package gatewaywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/partsbay/partsbay-backend/pkg/enums"
	"github.com/partsbay/partsbay-backend/pkg/redis"
)

// EventKey identifies one gateway delivery. Keyed on transaction id plus
// status so a redelivery of the same notification is dropped while a later
// status for the same transaction still lands.
func EventKey(transactionID string, status enums.GatewayEventStatus) string {
	return transactionID + ":" + status.String()
}

// IdempotencyGuard drops gateway redeliveries using a redis SetNX marker.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewIdempotencyGuard builds a guard writing markers under the given scope.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark claims the event key. It reports true when a previous
// delivery already claimed it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventKey string) (bool, error) {
	if eventKey == "" {
		return false, errors.New("event key is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventKey)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the event key so the gateway's retry can be processed
// after a handler failure.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventKey string) error {
	if eventKey == "" {
		return errors.New("event key is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventKey)
	return g.store.Del(ctx, key)
}
