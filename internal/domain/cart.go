package domain

import "github.com/shopspring/decimal"

// MinQuantity and MaxQuantity bound every cart line quantity.
const (
	MinQuantity = 1
	MaxQuantity = 99
)

// CartLineItem is one line of the page's in-memory cart.
type CartLineItem struct {
	ID        string          `json:"id"`
	ShopID    string          `json:"shopId"`
	Title     string          `json:"title"`
	Spec      string          `json:"spec,omitempty"`
	Icon      string          `json:"icon,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Selected  bool            `json:"selected"`
}

// Shop groups cart lines. Its "select all" checkbox is derived, never stored.
type Shop struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	ItemIDs []string `json:"itemIds"`
}
