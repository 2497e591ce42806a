package domain

import "github.com/shopspring/decimal"

// ProductSummary is the transient record handed to the detail presenter.
type ProductSummary struct {
	Title         string `json:"title"`
	Price         string `json:"price"`
	OriginalPrice string `json:"originalPrice"`
	Sales         string `json:"sales"`
	Icon          string `json:"icon"`
	Background    string `json:"background"`
}

// ProductCard is a product tile rendered on the home page.
type ProductCard struct {
	ID      string         `json:"id"`
	Summary ProductSummary `json:"summary"`
}

// Product is a catalog entry as served by the product listing routes.
type Product struct {
	ID            string           `json:"id"`
	ShopID        string           `json:"shopId,omitempty"`
	Title         string           `json:"title"`
	Spec          string           `json:"spec,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Sales         string           `json:"sales,omitempty"`
	Icon          string           `json:"icon,omitempty"`
	Background    string           `json:"background,omitempty"`
	Featured      bool             `json:"featured"`
}
