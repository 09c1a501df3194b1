// Package filter narrows an expense snapshot to what the ledger view shows.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/hogar/internal/models"
)

// DateLayout is the zero-padded ISO-8601 layout of Expense.Date.
const DateLayout = "2006-01-02"

// Status selects rows by settlement flag.
type Status int

const (
	StatusAll Status = iota
	StatusSettled
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusSettled:
		return "settled"
	case StatusPending:
		return "pending"
	default:
		return "all"
	}
}

// ParseStatus accepts "all", "settled" or "pending" (case-insensitive); empty means all.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return StatusAll, nil
	case "settled", "conciliado":
		return StatusSettled, nil
	case "pending":
		return StatusPending, nil
	default:
		return StatusAll, fmt.Errorf("unknown settlement status %q", s)
	}
}

// Filters is the UI filter state. The zero value matches everything.
type Filters struct {
	// ThisMonth keeps only expenses dated on or after the first day of the current month.
	ThisMonth bool
	Status    Status
	// Query is matched case-insensitively against description and category.
	Query string
}

// MonthStart returns the first calendar day of now's month as YYYY-MM-DD.
func MonthStart(now time.Time) string {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(DateLayout)
}

// Apply returns the expenses matching every predicate in f, preserving input order.
func Apply(expenses []models.Expense, f Filters, now time.Time) []models.Expense {
	monthStart := ""
	if f.ThisMonth {
		monthStart = MonthStart(now)
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Expense, 0, len(expenses))
	for _, e := range expenses {
		if monthStart != "" && e.Date < monthStart {
			continue
		}
		if !f.Status.matches(e.Conciliado) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(e.Description+" "+e.Category), query) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s Status) matches(conciliado bool) bool {
	switch s {
	case StatusSettled:
		return conciliado
	case StatusPending:
		return !conciliado
	default:
		return true
	}
}

// Unsettled drops conciliado expenses; balances are computed over what remains.
func Unsettled(expenses []models.Expense) []models.Expense {
	return Apply(expenses, Filters{Status: StatusPending}, time.Time{})
}
