// Package ledger runs one signed-in user's view of their household: it keeps the latest
// snapshot of the household's expenses, derives balances from it, and validates writes
// before handing them to the record writer.
package ledger

import (
	"context"
	"errors"

	"github.com/mmynk/hogar/internal/models"
)

var (
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrEmptyDescription = errors.New("description is required")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrInvalidRatio     = errors.New("ratio must be between 0 and 1")
	ErrNoHousehold      = errors.New("household cannot be resolved without both identities")
	ErrNotConfirmed     = errors.New("deletion was not confirmed")
	ErrSessionClosed    = errors.New("ledger session is closed")
)

// PartnerPreference is the preference key holding the partner identifier.
const PartnerPreference = "partner"

// Subscription is a live feed of full household snapshots, newest date first.
type Subscription interface {
	// Snapshots yields a complete replacement list on every change. The channel is
	// closed after Close.
	Snapshots() <-chan []models.Expense
	Close()
}

// ExpenseSource opens snapshot subscriptions for a set of household ids.
type ExpenseSource interface {
	Subscribe(ctx context.Context, householdIDs []string) (Subscription, error)
}

// RecordWriter persists expense mutations. Batch methods change every id or none.
//
// Mutations take the household ids the caller may address. Records stored under any
// other household are treated as missing (storage.ErrNotFound).
type RecordWriter interface {
	Create(ctx context.Context, e *models.Expense) (string, error)
	Replace(ctx context.Context, householdIDs []string, id string, e *models.Expense) error
	UpdateFields(ctx context.Context, householdIDs []string, id string, update models.FieldUpdate) error
	Delete(ctx context.Context, householdIDs []string, id string) error
	BatchUpdate(ctx context.Context, householdIDs, ids []string, update models.FieldUpdate) error
	BatchDelete(ctx context.Context, householdIDs, ids []string) error
}

// Preferences stores per-user string values, last write wins.
type Preferences interface {
	GetPreference(ctx context.Context, userID, key string) (string, bool, error)
	SetPreference(ctx context.Context, userID, key, value string) error
}

// Confirm asks the caller to approve a destructive operation on n records.
type Confirm func(n int) bool

// Confirmed approves every request.
func Confirmed(int) bool { return true }

// DistinctIDs drops empty and repeated ids, keeping first occurrences in order.
func DistinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
