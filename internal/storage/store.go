// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/hogar/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist. Batch operations
// return it for the whole batch when any target is missing.
var ErrNotFound = errors.New("not found")

// ExpenseStore persists expense records.
//
// Every method that touches several records runs in one transaction: either all targets
// change or none do. Mutating methods return the household ids whose contents changed so
// callers can notify subscribers.
//
// Mutations are scoped to the caller's household ids. A record stored under any other
// household is reported as ErrNotFound, the same as a missing one.
type ExpenseStore interface {
	// CreateExpense persists a new expense. ID, CreatedAt and UpdatedAt are filled in
	// when empty.
	CreateExpense(ctx context.Context, e *models.Expense) error

	// GetExpense retrieves an expense with its split. Returns ErrNotFound when missing.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// ListExpensesByHousehold returns every expense whose household id is in
	// householdIDs, newest date first.
	ListExpensesByHousehold(ctx context.Context, householdIDs []string) ([]models.Expense, error)

	// ReplaceExpense overwrites the content of an expense. Household id, creator and
	// creation time are preserved, as is the payer when e.PayerUID is empty; UpdatedAt is
	// refreshed.
	ReplaceExpense(ctx context.Context, householdIDs []string, id string, e *models.Expense) ([]string, error)

	// UpdateExpenseFields applies a partial update to every id atomically. A new
	// household id must itself be one of householdIDs.
	UpdateExpenseFields(ctx context.Context, householdIDs, ids []string, update models.FieldUpdate) ([]string, error)

	// DeleteExpenses removes every id atomically.
	DeleteExpenses(ctx context.Context, householdIDs, ids []string) ([]string, error)
}

// UserStore persists registered accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns nil, nil when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns nil, nil when no user has the id.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PreferenceStore persists per-user key/value preferences with last-write-wins
// semantics.
type PreferenceStore interface {
	GetPreference(ctx context.Context, userID, key string) (string, bool, error)
	SetPreference(ctx context.Context, userID, key, value string) error
}

// Store is the full storage backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	ExpenseStore
	UserStore
	PreferenceStore

	// Close releases any resources held by the store.
	Close() error
}
