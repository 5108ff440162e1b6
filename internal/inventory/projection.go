package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/reservation-engine/pkg/db/models"
	"github.com/angelmondragon/reservation-engine/pkg/logger"
)

// Projector publishes the customer-visible sellable stock for a product.
type Projector interface {
	Publish(ctx context.Context, productID uuid.UUID, sellable int) error
}

type sellableStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SellableKey(productID string) string
}

// RedisProjector writes sellable stock to the catalog read model in Redis.
type RedisProjector struct {
	store sellableStore
}

// NewRedisProjector builds a projector over the shared redis client.
func NewRedisProjector(store sellableStore) *RedisProjector {
	return &RedisProjector{store: store}
}

func (p *RedisProjector) Publish(ctx context.Context, productID uuid.UUID, sellable int) error {
	return p.store.Set(ctx, p.store.SellableKey(productID.String()), strconv.Itoa(sellable), 0)
}

// NoopProjector discards projections; used when Redis is not configured.
type NoopProjector struct{}

func (NoopProjector) Publish(context.Context, uuid.UUID, int) error { return nil }

// PublishSellable pushes the record's sellable figure through the projector.
// Failures are logged only: the projection is a read model and must never
// undo a committed stock mutation.
func PublishSellable(ctx context.Context, projector Projector, logg *logger.Logger, record *models.StockRecord) {
	if projector == nil || record == nil {
		return
	}
	if err := projector.Publish(ctx, record.ProductID, record.Sellable()); err != nil && logg != nil {
		logg.Error(logg.WithProductID(ctx, record.ProductID.String()), "publish sellable stock", err)
	}
}
