package seed

import (
	"context"
	"fmt"

	"storefront/internal/repository/catalog"

	"go.uber.org/zap"
)

// Writer is the subset of the catalog repository the seed needs.
type Writer interface {
	UpsertShop(ctx context.Context, s catalog.ShopRecord) error
	UpsertProduct(ctx context.Context, p catalog.ProductRecord, cartPosition int) error
	UpsertCity(ctx context.Context, name string, position int) error
}

// Apply writes a catalog document. It is idempotent via ON CONFLICT in the
// writer.
func Apply(ctx context.Context, w Writer, doc catalog.Fixture, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, s := range doc.Shops {
		if err := w.UpsertShop(ctx, s); err != nil {
			return fmt.Errorf("upsert shop %s: %w", s.Key, err)
		}
	}

	cartPosition := 0
	for _, p := range doc.Products {
		pos := 0
		if p.CartQuantity > 0 {
			cartPosition++
			pos = cartPosition
		}
		if err := w.UpsertProduct(ctx, p, pos); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
	}

	for i, city := range doc.Cities {
		if err := w.UpsertCity(ctx, city, i+1); err != nil {
			return fmt.Errorf("upsert city %s: %w", city, err)
		}
	}

	logger.Info("catalog seeded",
		zap.Int("shops", len(doc.Shops)),
		zap.Int("products", len(doc.Products)),
		zap.Int("cartLines", cartPosition),
		zap.Int("cities", len(doc.Cities)),
	)
	return nil
}
