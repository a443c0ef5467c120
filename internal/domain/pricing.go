package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PricingRow is one line of an external pricing sheet. Values are kept as read; coercion
// happens during reconciliation so bad rows can be counted instead of failing the read.
type PricingRow struct {
	Line     int    `json:"line"`
	ItemName string `json:"item"`
	MRP      string `json:"mrp"`
	Selling  string `json:"selling_price"`
	Discount string `json:"discount,omitempty"`
}

// MatchResult pairs a pricing row with the product it matched
type MatchResult struct {
	ProductIndex int     `json:"-"`
	ProductID    string  `json:"productId"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	Containment  bool    `json:"containment,omitempty"`
	RunnerUpID   string  `json:"runnerUpId,omitempty"`
	RunnerUp     float64 `json:"runnerUpScore,omitempty"`
	NeedsReview  bool    `json:"needsReview,omitempty"`
}

var currencyPrefixes = []string{"₹", "rs.", "rs", "inr", "$"}

// ParsePrice coerces a sheet value into a non-negative amount
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "nan" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrMalformedRow)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrMalformedRow, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrMalformedRow, raw)
	}
	return d, nil
}

// ParseDiscount reads a discount percentage written as "12%" or "12"
func ParseDiscount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "%")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Prices returns the row's MRP and selling price truncated to whole units, rejecting rows
// that carry no price data once truncated
func (r PricingRow) Prices() (mrp, selling decimal.Decimal, err error) {
	if strings.TrimSpace(r.ItemName) == "" {
		return mrp, selling, fmt.Errorf("%w: line %d has no item name", ErrMalformedRow, r.Line)
	}
	if mrp, err = ParsePrice(r.MRP); err != nil {
		return mrp, selling, fmt.Errorf("line %d mrp: %w", r.Line, err)
	}
	if selling, err = ParsePrice(r.Selling); err != nil {
		return mrp, selling, fmt.Errorf("line %d selling price: %w", r.Line, err)
	}
	mrp, selling = mrp.Truncate(0), selling.Truncate(0)
	if mrp.IsZero() || selling.IsZero() {
		return mrp, selling, fmt.Errorf("%w: line %d", ErrZeroPrice, r.Line)
	}
	return mrp, selling, nil
}
