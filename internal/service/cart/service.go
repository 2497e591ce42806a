package cart

import (
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	currencySymbol    = "¥"
	checkoutLabelFmt  = "结算(%d)"
	msgNothingChecked = "请选择要结算的商品"
	msgCheckout       = "前往结算页面"
)

// View is the page's in-memory cart: line items grouped by shop plus the
// totals last computed from them.
type View struct {
	shops  []domain.Shop
	items  map[string]*domain.CartLineItem
	order  []string
	totals Totals
}

// Totals is the aggregated state rendered into the checkout bar.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Count         int             `json:"count"`
	SubtotalText  string          `json:"subtotalText"`
	CheckoutLabel string          `json:"checkoutLabel"`
}

// ShopState is a shop with its derived checkbox.
type ShopState struct {
	domain.Shop
	Checked bool                  `json:"checked"`
	Items   []domain.CartLineItem `json:"items"`
}

// State is a copy of the view suitable for rendering.
type State struct {
	Shops      []ShopState `json:"shops"`
	AllChecked bool        `json:"allChecked"`
	Totals     Totals      `json:"totals"`
}

// New builds a view from shops and their lines. Every line must reference a
// listed shop and carry a quantity within [1, 99].
func New(shops []domain.Shop, lines []domain.CartLineItem) (*View, error) {
	v := &View{items: make(map[string]*domain.CartLineItem, len(lines))}
	shopIdx := make(map[string]int, len(shops))
	for _, s := range shops {
		if strings.TrimSpace(s.ID) == "" {
			return nil, errors.New("shop id required")
		}
		if _, dup := shopIdx[s.ID]; dup {
			return nil, fmt.Errorf("duplicate shop %q", s.ID)
		}
		shopIdx[s.ID] = len(v.shops)
		v.shops = append(v.shops, domain.Shop{ID: s.ID, Name: s.Name})
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ID) == "" {
			return nil, errors.New("line item id required")
		}
		if _, dup := v.items[line.ID]; dup {
			return nil, fmt.Errorf("duplicate line item %q", line.ID)
		}
		if line.Quantity < domain.MinQuantity || line.Quantity > domain.MaxQuantity {
			return nil, fmt.Errorf("line item %q: quantity %d out of range", line.ID, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("line item %q: negative price", line.ID)
		}
		idx, ok := shopIdx[line.ShopID]
		if !ok {
			return nil, fmt.Errorf("line item %q: unknown shop %q", line.ID, line.ShopID)
		}
		item := line
		v.items[item.ID] = &item
		v.order = append(v.order, item.ID)
		v.shops[idx].ItemIDs = append(v.shops[idx].ItemIDs, item.ID)
	}
	v.Recompute()
	return v, nil
}

// ToggleItem flips one item's selection. Unknown ids are ignored.
func (v *View) ToggleItem(itemID string) bool {
	item, ok := v.items[itemID]
	if !ok {
		return false
	}
	item.Selected = !item.Selected
	v.Recompute()
	return true
}

// ToggleShop sets every item of a shop to checked.
func (v *View) ToggleShop(shopID string, checked bool) bool {
	shop, ok := v.shop(shopID)
	if !ok {
		return false
	}
	for _, id := range shop.ItemIDs {
		v.items[id].Selected = checked
	}
	v.Recompute()
	return true
}

// ToggleAll sets every item, and so every shop, to checked.
func (v *View) ToggleAll(checked bool) {
	for _, item := range v.items {
		item.Selected = checked
	}
	v.Recompute()
}

// Increment raises a quantity by one, capped at 99.
func (v *View) Increment(itemID string) bool {
	item, ok := v.items[itemID]
	if !ok || item.Quantity >= domain.MaxQuantity {
		return false
	}
	item.Quantity++
	v.Recompute()
	return true
}

// Decrement lowers a quantity by one, floored at 1.
func (v *View) Decrement(itemID string) bool {
	item, ok := v.items[itemID]
	if !ok || item.Quantity <= domain.MinQuantity {
		return false
	}
	item.Quantity--
	v.Recompute()
	return true
}

// Recompute rebuilds the totals from every selected line. No partial sums are
// kept between calls.
func (v *View) Recompute() Totals {
	subtotal := decimal.Zero
	count := 0
	for _, id := range v.order {
		item := v.items[id]
		if !item.Selected {
			continue
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	v.totals = Totals{
		Subtotal:      subtotal,
		Count:         count,
		SubtotalText:  FormatPrice(subtotal),
		CheckoutLabel: fmt.Sprintf(checkoutLabelFmt, count),
	}
	return v.totals
}

// Totals returns the last computed totals.
func (v *View) Totals() Totals {
	return v.totals
}

// ShopChecked reports the derived shop checkbox.
func (v *View) ShopChecked(shopID string) bool {
	shop, ok := v.shop(shopID)
	if !ok {
		return false
	}
	return v.allSelected(shop.ItemIDs)
}

// AllChecked reports the derived global checkbox, independent of grouping.
func (v *View) AllChecked() bool {
	return v.allSelected(v.order)
}

// Item returns a copy of one line.
func (v *View) Item(itemID string) (domain.CartLineItem, error) {
	item, ok := v.items[itemID]
	if !ok {
		return domain.CartLineItem{}, domain.ErrNotFound
	}
	return *item, nil
}

// Checkout validates that something is selected and returns the
// acknowledgement shown to the shopper.
func (v *View) Checkout() (string, error) {
	selected := 0
	for _, item := range v.items {
		if item.Selected {
			selected++
		}
	}
	if selected == 0 {
		return "", domain.Validation(msgNothingChecked)
	}
	return msgCheckout, nil
}

// State snapshots the view.
func (v *View) State() State {
	out := State{
		Shops:      make([]ShopState, 0, len(v.shops)),
		AllChecked: v.AllChecked(),
		Totals:     v.totals,
	}
	for _, s := range v.shops {
		st := ShopState{
			Shop:    domain.Shop{ID: s.ID, Name: s.Name, ItemIDs: append([]string(nil), s.ItemIDs...)},
			Checked: v.allSelected(s.ItemIDs),
			Items:   make([]domain.CartLineItem, 0, len(s.ItemIDs)),
		}
		for _, id := range s.ItemIDs {
			st.Items = append(st.Items, *v.items[id])
		}
		out.Shops = append(out.Shops, st)
	}
	return out
}

func (v *View) shop(shopID string) (domain.Shop, bool) {
	for _, s := range v.shops {
		if s.ID == shopID {
			return s, true
		}
	}
	return domain.Shop{}, false
}

func (v *View) allSelected(ids []string) bool {
	for _, id := range ids {
		if !v.items[id].Selected {
			return false
		}
	}
	return true
}

// FormatPrice renders an amount as ¥ with exactly two decimals.
func FormatPrice(amount decimal.Decimal) string {
	return currencySymbol + amount.StringFixed(2)
}
