package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Postgres reads the catalog from the database and writes it for the seed
// and importer commands. Cart state is never written here.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger.Named("catalog")}
}

func (r *Postgres) Load(ctx context.Context) (*Snapshot, error) {
	shops, err := r.listShops(ctx)
	if err != nil {
		return nil, err
	}
	products, err := r.listProducts(ctx)
	if err != nil {
		return nil, err
	}
	cities, err := r.listCities(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("catalog loaded",
		zap.Int("shops", len(shops)),
		zap.Int("products", len(products)),
		zap.Int("cities", len(cities)),
	)
	return BuildSnapshot(shops, products, cities)
}

func (r *Postgres) listShops(ctx context.Context) ([]ShopRecord, error) {
	const q = `
SELECT key, name, position
FROM shops
ORDER BY position, key
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("list shops", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []ShopRecord
	for rows.Next() {
		var s ShopRecord
		if err := rows.Scan(&s.Key, &s.Name, &s.Position); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Postgres) listProducts(ctx context.Context) ([]ProductRecord, error) {
	const q = `
SELECT p.key, COALESCE(s.key, ''), p.title, COALESCE(p.spec, ''), p.price::text,
       COALESCE(p.original_price::text, ''), COALESCE(p.sales_label, ''), COALESCE(p.icon, ''),
       COALESCE(p.background, ''), p.featured, COALESCE(l.quantity, 0), COALESCE(l.selected, false)
FROM products p
LEFT JOIN shops s ON s.id = p.shop_id
LEFT JOIN demo_cart_lines l ON l.product_id = p.id
ORDER BY COALESCE(l.position, 2147483647), p.created_at, p.key
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []ProductRecord
	for rows.Next() {
		var (
			p             ProductRecord
			price         string
			originalPrice string
		)
		if err := rows.Scan(&p.Key, &p.ShopKey, &p.Title, &p.Spec, &price, &originalPrice, &p.Sales, &p.Icon,
			&p.Background, &p.Featured, &p.CartQuantity, &p.CartSelected); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("product %q price: %w", p.Key, err)
		}
		if originalPrice != "" {
			if p.OriginalPrice, err = decimal.NewFromString(originalPrice); err != nil {
				return nil, fmt.Errorf("product %q original price: %w", p.Key, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (r *Postgres) listCities(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM cities ORDER BY position, name`)
	if err != nil {
		r.logger.Error("list cities", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// UpsertShop inserts or renames a shop by key.
func (r *Postgres) UpsertShop(ctx context.Context, s ShopRecord) error {
	const q = `
INSERT INTO shops (key, name, position)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name, position = EXCLUDED.position
`
	if _, err := r.pool.Exec(ctx, q, s.Key, s.Name, s.Position); err != nil {
		r.logger.Error("upsert shop", zap.String("key", s.Key), zap.Error(err))
		return err
	}
	return nil
}

// UpsertProduct writes a product and its demo cart line, if any. A shop key
// that names no stored shop is an error.
func (r *Postgres) UpsertProduct(ctx context.Context, p ProductRecord, cartPosition int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var shopID *string
	if p.ShopKey != "" {
		var sid string
		err := tx.QueryRow(ctx, `SELECT id::text FROM shops WHERE key = $1`, p.ShopKey).Scan(&sid)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %q: unknown shop %q", p.Key, p.ShopKey)
		}
		if err != nil {
			return fmt.Errorf("resolve shop %q: %w", p.ShopKey, err)
		}
		shopID = &sid
	}

	const upsertProduct = `
INSERT INTO products (key, shop_id, title, spec, price, original_price, sales_label, icon, background, featured)
VALUES ($1, $2::text::uuid, $3, NULLIF($4, ''), $5::text::numeric,
        NULLIF($6::text, '')::numeric, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10)
ON CONFLICT (key) DO UPDATE SET
    shop_id = EXCLUDED.shop_id,
    title = EXCLUDED.title,
    spec = EXCLUDED.spec,
    price = EXCLUDED.price,
    original_price = EXCLUDED.original_price,
    sales_label = EXCLUDED.sales_label,
    icon = EXCLUDED.icon,
    background = EXCLUDED.background,
    featured = EXCLUDED.featured
RETURNING id::text
`
	original := ""
	if !p.OriginalPrice.IsZero() {
		original = p.OriginalPrice.String()
	}
	var id string
	if err := tx.QueryRow(ctx, upsertProduct, p.Key, shopID, p.Title, p.Spec, p.Price.String(), original,
		p.Sales, p.Icon, p.Background, p.Featured).Scan(&id); err != nil {
		r.logger.Error("upsert product", zap.String("key", p.Key), zap.Error(err))
		return err
	}

	if p.CartQuantity > 0 {
		const upsertLine = `
INSERT INTO demo_cart_lines (product_id, quantity, selected, position)
VALUES ($1::text::uuid, $2, $3, $4)
ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity, selected = EXCLUDED.selected, position = EXCLUDED.position
`
		if _, err := tx.Exec(ctx, upsertLine, id, p.CartQuantity, p.CartSelected, cartPosition); err != nil {
			return fmt.Errorf("upsert cart line %q: %w", p.Key, err)
		}
	} else if _, err := tx.Exec(ctx, `DELETE FROM demo_cart_lines WHERE product_id = $1::text::uuid`, id); err != nil {
		return fmt.Errorf("clear cart line %q: %w", p.Key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Debug("product upserted", zap.String("key", p.Key), zap.String("id", id))
	return nil
}

// UpsertCity adds a city to the location picker.
func (r *Postgres) UpsertCity(ctx context.Context, name string, position int) error {
	const q = `
INSERT INTO cities (name, position)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET position = EXCLUDED.position
`
	_, err := r.pool.Exec(ctx, q, name, position)
	return err
}
