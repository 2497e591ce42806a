package detail

import (
	"fmt"
	"strings"

	"storefront/internal/domain"
)

const gradientFmt = "linear-gradient(135deg, %s)"

// Fallbacks used when a product card lacks a field.
const (
	DefaultTitle      = "商品名称"
	DefaultPrice      = "¥0"
	DefaultSales      = "已售 0件"
	DefaultIcon       = "fa-shopping-bag"
	DefaultBackground = "linear-gradient(135deg, #ffecd2, #fcb69f)"
)

// View is the populated product detail overlay.
type View struct {
	Background    string `json:"background"`
	Icon          string `json:"icon"`
	Title         string `json:"title"`
	Price         string `json:"price"`
	OriginalPrice string `json:"originalPrice"`
	Sales         string `json:"sales"`
}

// Show fills the overlay straight from the summary. The only transformation
// is background normalization.
func Show(p domain.ProductSummary) View {
	return View{
		Background:    NormalizeBackground(p.Background),
		Icon:          p.Icon,
		Title:         p.Title,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Sales:         p.Sales,
	}
}

// NormalizeBackground wraps a bare colour-stop pair such as
// "#a1c4fd, #c2e9fb" into a linear gradient. Values that already are a
// gradient, and empty values, are returned unchanged.
func NormalizeBackground(bg string) string {
	if bg == "" || strings.Contains(bg, "linear-gradient") {
		return bg
	}
	return fmt.Sprintf(gradientFmt, bg)
}

// WithDefaults fills the card fallbacks for empty fields.
func WithDefaults(p domain.ProductSummary) domain.ProductSummary {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Price == "" {
		p.Price = DefaultPrice
	}
	if p.OriginalPrice == "" {
		p.OriginalPrice = DefaultPrice
	}
	if p.Sales == "" {
		p.Sales = DefaultSales
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.Background == "" {
		p.Background = DefaultBackground
	}
	return p
}
