package models

// Modifier adjusts a line item's unit price (extra shot, substitution, etc).
type Modifier struct {
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

// LineItem is one cart line inside an order's jsonb snapshot.
type LineItem struct {
	ProductID      *string    `json:"product_id,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	Modifiers      []Modifier `json:"modifiers,omitempty"`
	UnitTotalCents int64      `json:"unit_total_cents"`

	IsOpenItem    bool `json:"is_open_item,omitempty"`
	EBTEligible   bool `json:"ebt_eligible,omitempty"`
	AgeRestricted bool `json:"age_restricted,omitempty"`
	MinimumAge    int  `json:"minimum_age,omitempty"`
	Tippable      bool `json:"tippable,omitempty"`
}

// LineItems is the jsonb-serialized cart snapshot.
type LineItems []LineItem

// EffectiveUnitCents returns the per-unit price including modifiers. Open
// items carry their price directly and never have modifiers.
func (i LineItem) EffectiveUnitCents() int64 {
	if i.UnitTotalCents != 0 {
		return i.UnitTotalCents
	}
	total := i.UnitPriceCents
	for _, mod := range i.Modifiers {
		total += mod.PriceDeltaCents
	}
	return total
}

// LineTotalCents returns the extended line total.
func (i LineItem) LineTotalCents() int64 {
	return i.EffectiveUnitCents() * int64(i.Quantity)
}
