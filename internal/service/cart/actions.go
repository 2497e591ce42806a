package cart

import (
	"errors"
	"strings"
)

// UpdateInput is a batch of cart actions applied in order.
type UpdateInput struct {
	Actions []UpdateAction `json:"actions"`
}

type UpdateAction struct {
	Action     string `json:"action"`
	LineItemID string `json:"lineItemId,omitempty"`
	ShopID     string `json:"shopId,omitempty"`
	Checked    bool   `json:"checked,omitempty"`
}

// Apply runs every action against the view. The whole batch is validated
// before anything changes, so a rejected batch leaves the cart untouched.
// Actions naming unknown lines or shops are skipped, matching what the page
// does for missing elements.
func (v *View) Apply(in UpdateInput) error {
	if len(in.Actions) == 0 {
		return errors.New("actions required")
	}
	for _, action := range in.Actions {
		if err := validateAction(action); err != nil {
			return err
		}
	}
	for _, action := range in.Actions {
		switch actionName(action) {
		case "toggleitem":
			v.ToggleItem(action.LineItemID)
		case "toggleshop":
			v.ToggleShop(action.ShopID, action.Checked)
		case "toggleall":
			v.ToggleAll(action.Checked)
		case "incrementquantity":
			v.Increment(action.LineItemID)
		case "decrementquantity":
			v.Decrement(action.LineItemID)
		}
	}
	return nil
}

func actionName(action UpdateAction) string {
	return strings.ToLower(strings.TrimSpace(action.Action))
}

func validateAction(action UpdateAction) error {
	switch actionName(action) {
	case "toggleitem", "incrementquantity", "decrementquantity":
		if strings.TrimSpace(action.LineItemID) == "" {
			return errors.New("lineItemId required")
		}
	case "toggleshop":
		if strings.TrimSpace(action.ShopID) == "" {
			return errors.New("shopId required")
		}
	case "toggleall":
	default:
		return errors.New("unsupported action")
	}
	return nil
}
