package models

import "time"

// DiscountRule is a locally validated discount code. Percent and Amount
// are mutually exclusive; when both are set Percent wins.
type DiscountRule struct {
	Code        string    `json:"code"`
	Percent     int       `json:"percent,omitempty"` // 0-100
	Amount      int       `json:"amount,omitempty"`  // in cents
	MinSubtotal int       `json:"min_subtotal"`      // in cents
	ExpiresAt   time.Time `json:"expires_at"`
}

// Validate checks the rule against a cart subtotal at a point in time
func (r *DiscountRule) Validate(subtotal int, now time.Time) error {
	if !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt) {
		return ErrDiscountExpired
	}

	if subtotal < r.MinSubtotal {
		return ErrDiscountMinSubtotal
	}

	return nil
}

// Apply returns the discount value for a given subtotal
func (r *DiscountRule) Apply(subtotal int) int {
	if r.Percent > 0 {
		return subtotal * r.Percent / 100
	}

	if r.Amount > subtotal {
		return subtotal
	}
	return r.Amount
}
