package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/hogar/internal/models"
	"github.com/mmynk/hogar/internal/storage"
)

const expenseColumns = `id, household_id, date, week_label, description, category, cost_center,
	amount, conciliado, payer_uid, created_by, created_at, updated_at`

// CreateExpense persists a new expense and its split in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.HouseholdID, e.Date, e.WeekLabel, e.Description, e.Category, e.CostCenter,
		int64(e.Amount), e.Conciliado, e.PayerUID, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertSplit(ctx, tx, e.ID, e.Split); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertSplit(ctx context.Context, tx *sql.Tx, expenseID string, split []models.SplitEntry) error {
	for i, entry := range split {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO split_entries (expense_id, position, uid_or_email, ratio) VALUES (?, ?, ?, ?)",
			expenseID, i, entry.UIDOrEmail, float64(entry.Ratio),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split entry: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (models.Expense, error) {
	var e models.Expense
	var amount int64
	err := row.Scan(&e.ID, &e.HouseholdID, &e.Date, &e.WeekLabel, &e.Description, &e.Category,
		&e.CostCenter, &amount, &e.Conciliado, &e.PayerUID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	e.Amount = models.Amount(amount)
	return e, err
}

// GetExpense retrieves an expense by ID, including its split.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT uid_or_email, ratio FROM split_entries WHERE expense_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get split entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry models.SplitEntry
		var ratio float64
		if err := rows.Scan(&entry.UIDOrEmail, &ratio); err != nil {
			return nil, fmt.Errorf("failed to scan split entry: %w", err)
		}
		entry.Ratio = models.Ratio(ratio)
		e.Split = append(e.Split, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split entries: %w", err)
	}

	return &e, nil
}

// ListExpensesByHousehold returns the household's expenses ordered by date descending.
// Ties are broken by creation time so snapshots are stable.
func (s *SQLiteStore) ListExpensesByHousehold(ctx context.Context, householdIDs []string) ([]models.Expense, error) {
	householdIDs = dedupe(householdIDs)
	if len(householdIDs) == 0 {
		return nil, nil
	}
	in := placeholders(len(householdIDs))
	args := stringArgs(householdIDs)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE household_id IN (`+in+`)
		 ORDER BY date DESC, created_at DESC, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []models.Expense
	index := make(map[string]int)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return nil, nil
	}

	splitRows, err := s.db.QueryContext(ctx,
		`SELECT s.expense_id, s.uid_or_email, s.ratio
		 FROM split_entries s JOIN expenses e ON e.id = s.expense_id
		 WHERE e.household_id IN (`+in+`)
		 ORDER BY s.expense_id, s.position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list split entries: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var expenseID string
		var entry models.SplitEntry
		var ratio float64
		if err := splitRows.Scan(&expenseID, &entry.UIDOrEmail, &ratio); err != nil {
			return nil, fmt.Errorf("failed to scan split entry: %w", err)
		}
		entry.Ratio = models.Ratio(ratio)
		if i, ok := index[expenseID]; ok {
			expenses[i].Split = append(expenses[i].Split, entry)
		}
	}
	if err := splitRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split entries: %w", err)
	}

	return expenses, nil
}

// ReplaceExpense overwrites an expense's content and split. An empty PayerUID keeps the
// stored payer.
func (s *SQLiteStore) ReplaceExpense(ctx context.Context, householdIDs []string, id string, e *models.Expense) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	householdID, err := lookupHousehold(ctx, tx, householdIDs, id)
	if err != nil {
		return nil, err
	}

	e.UpdatedAt = time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET date = ?, week_label = ?, description = ?, category = ?, cost_center = ?,
		 amount = ?, conciliado = ?, payer_uid = COALESCE(NULLIF(?, ''), payer_uid), updated_at = ? WHERE id = ?`,
		e.Date, e.WeekLabel, e.Description, e.Category, e.CostCenter,
		int64(e.Amount), e.Conciliado, e.PayerUID, e.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM split_entries WHERE expense_id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to clear split entries: %w", err)
	}
	if err := insertSplit(ctx, tx, id, e.Split); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	e.ID = id
	e.HouseholdID = householdID
	return []string{householdID}, nil
}

// UpdateExpenseFields patches every id in one transaction.
func (s *SQLiteStore) UpdateExpenseFields(ctx context.Context, householdIDs, ids []string, update models.FieldUpdate) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	if update.HouseholdID != nil && !slices.Contains(householdIDs, *update.HouseholdID) {
		return nil, fmt.Errorf("household %s: %w", *update.HouseholdID, storage.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var touched []string
	now := time.Now().Unix()
	for _, id := range ids {
		householdID, err := lookupHousehold(ctx, tx, householdIDs, id)
		if err != nil {
			return nil, err
		}
		touched = append(touched, householdID)

		if update.IsEmpty() {
			continue
		}
		if update.HouseholdID != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE expenses SET household_id = ?, updated_at = ? WHERE id = ?",
				*update.HouseholdID, now, id); err != nil {
				return nil, fmt.Errorf("failed to update household: %w", err)
			}
			touched = append(touched, *update.HouseholdID)
		}
		if update.Conciliado != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE expenses SET conciliado = ?, updated_at = ? WHERE id = ?",
				*update.Conciliado, now, id); err != nil {
				return nil, fmt.Errorf("failed to update conciliado: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return dedupe(touched), nil
}

// DeleteExpenses removes every id in one transaction. Split entries cascade.
func (s *SQLiteStore) DeleteExpenses(ctx context.Context, householdIDs, ids []string) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var touched []string
	for _, id := range ids {
		householdID, err := lookupHousehold(ctx, tx, householdIDs, id)
		if err != nil {
			return nil, err
		}
		touched = append(touched, householdID)

		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("failed to delete expense: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return dedupe(touched), nil
}

// lookupHousehold returns the household of id, provided it is one of householdIDs.
func lookupHousehold(ctx context.Context, tx *sql.Tx, householdIDs []string, id string) (string, error) {
	householdIDs = dedupe(householdIDs)
	if len(householdIDs) == 0 {
		return "", fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}

	var householdID string
	query := "SELECT household_id FROM expenses WHERE id = ? AND household_id IN (" + placeholders(len(householdIDs)) + ")"
	args := append([]any{id}, stringArgs(householdIDs)...)
	err := tx.QueryRowContext(ctx, query, args...).Scan(&householdID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to check expense existence: %w", err)
	}
	return householdID, nil
}
