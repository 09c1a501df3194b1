package feed

import (
	"context"
	"log/slog"

	"github.com/mmynk/hogar/internal/ledger"
	"github.com/mmynk/hogar/internal/models"
	"github.com/mmynk/hogar/internal/storage"
)

// Writer applies mutations to the store and announces the households they touched.
type Writer struct {
	store    storage.ExpenseStore
	notifier Notifier
	logger   *slog.Logger
}

var _ ledger.RecordWriter = (*Writer)(nil)

// NewWriter creates a Writer.
func NewWriter(store storage.ExpenseStore, notifier Notifier, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, notifier: notifier, logger: logger}
}

func (w *Writer) Create(ctx context.Context, e *models.Expense) (string, error) {
	if err := w.store.CreateExpense(ctx, e); err != nil {
		return "", err
	}
	w.announce(ctx, []string{e.HouseholdID})
	return e.ID, nil
}

func (w *Writer) Replace(ctx context.Context, householdIDs []string, id string, e *models.Expense) error {
	touched, err := w.store.ReplaceExpense(ctx, householdIDs, id, e)
	if err != nil {
		return err
	}
	w.announce(ctx, touched)
	return nil
}

func (w *Writer) UpdateFields(ctx context.Context, householdIDs []string, id string, update models.FieldUpdate) error {
	return w.BatchUpdate(ctx, householdIDs, []string{id}, update)
}

func (w *Writer) Delete(ctx context.Context, householdIDs []string, id string) error {
	return w.BatchDelete(ctx, householdIDs, []string{id})
}

func (w *Writer) BatchUpdate(ctx context.Context, householdIDs, ids []string, update models.FieldUpdate) error {
	touched, err := w.store.UpdateExpenseFields(ctx, householdIDs, ids, update)
	if err != nil {
		return err
	}
	w.announce(ctx, touched)
	return nil
}

func (w *Writer) BatchDelete(ctx context.Context, householdIDs, ids []string) error {
	touched, err := w.store.DeleteExpenses(ctx, householdIDs, ids)
	if err != nil {
		return err
	}
	w.announce(ctx, touched)
	return nil
}

// announce publishes after a committed write. Publish errors are logged only.
func (w *Writer) announce(ctx context.Context, householdIDs []string) {
	for _, id := range householdIDs {
		if err := w.notifier.Publish(ctx, id); err != nil {
			w.logger.Warn("Failed to announce household change", "household_id", id, "error", err)
		}
	}
}
