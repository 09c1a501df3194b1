package models

import (
	"bytes"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Expense is one shared cost recorded in a household.
type Expense struct {
	ID          string `json:"id,omitempty"`
	HouseholdID string `json:"householdId"`

	// Date is the occurrence date as YYYY-MM-DD. Zero padding makes string order
	// equal to chronological order.
	Date      string `json:"date"`
	WeekLabel string `json:"weekLabel,omitempty"`

	Description string `json:"description"`
	Category    string `json:"category"`

	// CostCenter is an informal grouping distinct from Category (e.g. "Shared").
	CostCenter string `json:"costCenter"`

	Amount     Amount `json:"amount"`
	Conciliado bool   `json:"conciliado"`

	// PayerUID is the raw identifier of whoever paid; matched through key sets.
	PayerUID string       `json:"payerUid"`
	Split    []SplitEntry `json:"split"`

	CreatedBy string `json:"createdBy,omitempty"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// SplitEntry assigns a fraction of an expense to one raw identifier.
type SplitEntry struct {
	UIDOrEmail string `json:"uidOrEmail"`
	Ratio      Ratio  `json:"ratio"`
}

// FieldUpdate is a partial patch. Nil fields are left untouched.
type FieldUpdate struct {
	HouseholdID *string `json:"householdId,omitempty"`
	Conciliado  *bool   `json:"conciliado,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u FieldUpdate) IsEmpty() bool {
	return u.HouseholdID == nil && u.Conciliado == nil
}

// Amount is a monetary value in integer currency units.
type Amount int64

// UnmarshalJSON accepts numbers and numeric strings, rounding fractions to the nearest
// unit. Anything else decodes to zero.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = 0
	d, ok := parseNumber(data)
	if !ok {
		return nil
	}
	*a = Amount(d.Round(0).IntPart())
	return nil
}

// Ratio is a fraction of an expense. Non-finite values decode to zero.
type Ratio float64

// UnmarshalJSON accepts numbers and numeric strings. Anything else decodes to zero.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	*r = 0
	d, ok := parseNumber(data)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*r = Ratio(f)
	return nil
}

// Usable reports whether r carries split information. Zero, negative and non-finite
// ratios count as absent.
func (r Ratio) Usable() bool {
	f := float64(r)
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func parseNumber(data []byte) (decimal.Decimal, bool) {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	if raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return decimal.Zero, false
		}
		raw = bytes.TrimSpace([]byte(s))
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
