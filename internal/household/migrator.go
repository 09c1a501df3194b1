package household

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/hogar/internal/metrics"
	"github.com/mmynk/hogar/internal/models"
)

// Relabeler patches a single record in place. The record must live under one of
// householdIDs.
type Relabeler interface {
	UpdateFields(ctx context.Context, householdIDs []string, id string, update models.FieldUpdate) error
}

// Migrator moves records from the legacy household id to the current one. It remembers
// which records it has already attempted so each is tried at most once per session; a
// failed attempt is forgotten so the next snapshot retries it.
//
// A Migrator is session-scoped: create one per signed-in user and drop it with the
// session.
type Migrator struct {
	writer Relabeler
	logger *slog.Logger

	mu        sync.Mutex
	attempted map[string]struct{}
	wg        sync.WaitGroup
}

// NewMigrator creates a Migrator with an empty attempted set.
func NewMigrator(writer Relabeler, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		writer:    writer,
		logger:    logger,
		attempted: make(map[string]struct{}),
	}
}

// Reconcile starts a background relabel for every legacy-keyed record in snapshot that has
// not been attempted yet. It never blocks on the writer and returns the number of
// attempts started.
func (m *Migrator) Reconcile(ctx context.Context, addr Address, snapshot []models.Expense) int {
	if !addr.NeedsMigration() {
		return 0
	}

	started := 0
	for _, e := range snapshot {
		if e.ID == "" || e.HouseholdID != addr.Legacy {
			continue
		}
		if !m.markAttempted(e.ID) {
			continue
		}
		started++
		metrics.HouseholdMigrations.WithLabelValues("attempted").Inc()

		m.wg.Add(1)
		go func(id string) {
			defer m.wg.Done()
			m.relabel(ctx, id, addr)
		}(e.ID)
	}
	return started
}

func (m *Migrator) relabel(ctx context.Context, id string, addr Address) {
	target := addr.Current
	err := m.writer.UpdateFields(ctx, addr.IDs(), id, models.FieldUpdate{HouseholdID: &target})
	if err != nil {
		m.forget(id)
		metrics.HouseholdMigrations.WithLabelValues("failed").Inc()
		m.logger.Warn("Household migration failed, will retry",
			"expense_id", id,
			"from", addr.Legacy,
			"to", addr.Current,
			"error", err,
		)
		return
	}
	metrics.HouseholdMigrations.WithLabelValues("succeeded").Inc()
	m.logger.Debug("Household migrated", "expense_id", id, "household_id", target)
}

// markAttempted adds id and reports whether it was new.
func (m *Migrator) markAttempted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempted[id]; ok {
		return false
	}
	m.attempted[id] = struct{}{}
	return true
}

func (m *Migrator) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempted, id)
}

// Attempted reports whether id is currently in the attempted set.
func (m *Migrator) Attempted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.attempted[id]
	return ok
}

// Wait blocks until every started relabel has finished.
func (m *Migrator) Wait() {
	m.wg.Wait()
}
