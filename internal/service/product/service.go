package product

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository/catalog"
)

// Service serves the catalog read-only. Every call reads a fresh snapshot so
// seeded or imported changes show up without a restart.
type Service struct {
	repo catalog.Repository
}

func New(repo catalog.Repository) (*Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository required")
	}
	return &Service{repo: repo}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Products, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// Search matches titles case-insensitively. A blank keyword returns
// everything.
func (s *Service) Search(ctx context.Context, keyword string) ([]domain.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return products, nil
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), keyword) {
			out = append(out, p)
		}
	}
	return out, nil
}
