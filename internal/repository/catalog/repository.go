package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

// Repository loads the static page data a session starts from.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is everything the storefront page renders before user input.
type Snapshot struct {
	Shops    []domain.Shop
	Lines    []domain.CartLineItem
	Cards    []domain.ProductCard
	Cities   []string
	Products []domain.Product
}

// ShopRecord is a stored shop.
type ShopRecord struct {
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	Position int    `yaml:"position"`
}

// ProductRecord is a stored product. A positive CartQuantity places it in
// the demo cart; Featured puts it on the home page as a card.
type ProductRecord struct {
	Key           string          `yaml:"key"`
	ShopKey       string          `yaml:"shop"`
	Title         string          `yaml:"title"`
	Spec          string          `yaml:"spec"`
	Price         decimal.Decimal `yaml:"price"`
	OriginalPrice decimal.Decimal `yaml:"originalPrice"`
	Sales         string          `yaml:"sales"`
	Icon          string          `yaml:"icon"`
	Background    string          `yaml:"background"`
	Featured      bool            `yaml:"featured"`
	CartQuantity  int             `yaml:"cartQuantity"`
	CartSelected  bool            `yaml:"cartSelected"`
}

// Validate checks the fields the page cannot do without.
func (p ProductRecord) Validate() error {
	if strings.TrimSpace(p.Key) == "" || strings.TrimSpace(p.Title) == "" {
		return errors.New("key and title required")
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("product %q: negative price", p.Key)
	}
	if p.CartQuantity < 0 || p.CartQuantity > domain.MaxQuantity {
		return fmt.Errorf("product %q: cart quantity %d out of range", p.Key, p.CartQuantity)
	}
	if p.CartQuantity > 0 && strings.TrimSpace(p.ShopKey) == "" {
		return fmt.Errorf("product %q: cart line needs a shop", p.Key)
	}
	return nil
}

// BuildSnapshot assembles a snapshot from stored records. Shops keep their
// position order; cart lines, cards and products keep record order.
func BuildSnapshot(shops []ShopRecord, products []ProductRecord, cities []string) (*Snapshot, error) {
	sorted := append([]ShopRecord(nil), shops...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	snap := &Snapshot{Cities: append([]string(nil), cities...)}
	known := make(map[string]bool, len(sorted))
	for _, s := range sorted {
		snap.Shops = append(snap.Shops, domain.Shop{ID: s.Key, Name: s.Name})
		known[s.Key] = true
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if p.CartQuantity > 0 {
			if !known[p.ShopKey] {
				return nil, fmt.Errorf("product %q: unknown shop %q", p.Key, p.ShopKey)
			}
			snap.Lines = append(snap.Lines, domain.CartLineItem{
				ID:        p.Key,
				ShopID:    p.ShopKey,
				Title:     p.Title,
				Spec:      p.Spec,
				Icon:      p.Icon,
				UnitPrice: p.Price,
				Quantity:  p.CartQuantity,
				Selected:  p.CartSelected,
			})
		}
		if p.Featured {
			snap.Cards = append(snap.Cards, domain.ProductCard{ID: p.Key, Summary: p.summary()})
		}
		snap.Products = append(snap.Products, p.product())
	}
	return snap, nil
}

func (p ProductRecord) product() domain.Product {
	out := domain.Product{
		ID:         p.Key,
		ShopID:     p.ShopKey,
		Title:      p.Title,
		Spec:       p.Spec,
		Price:      p.Price,
		Sales:      p.Sales,
		Icon:       p.Icon,
		Background: p.Background,
		Featured:   p.Featured,
	}
	if !p.OriginalPrice.IsZero() {
		original := p.OriginalPrice
		out.OriginalPrice = &original
	}
	return out
}

func (p ProductRecord) summary() domain.ProductSummary {
	s := domain.ProductSummary{
		Title:      p.Title,
		Price:      priceLabel(p.Price),
		Sales:      p.Sales,
		Icon:       p.Icon,
		Background: p.Background,
	}
	if !p.OriginalPrice.IsZero() {
		s.OriginalPrice = priceLabel(p.OriginalPrice)
	}
	return s
}

// priceLabel renders "¥128" for whole amounts and "¥89.90" otherwise.
func priceLabel(d decimal.Decimal) string {
	return "¥" + strings.TrimSuffix(d.StringFixed(2), ".00")
}
