package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/hogar/internal/calculator"
	"github.com/mmynk/hogar/internal/filter"
	"github.com/mmynk/hogar/internal/household"
	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/metrics"
	"github.com/mmynk/hogar/internal/models"
)

// Form defaults for new expenses.
const (
	DefaultCategory   = "General"
	DefaultCostCenter = "Shared"
	DefaultRatio      = 0.5
)

// Session is one signed-in user's live ledger.
//
// It owns the current subscription and replaces it whenever the partner changes. Each
// subscription is tagged with a generation; snapshots from an older generation are
// dropped, so nothing pushed after teardown reaches the view.
type Session struct {
	user    identity.User
	youKeys identity.KeySet
	primary identity.Key

	source   ExpenseSource
	writer   RecordWriter
	prefs    Preferences
	migrator *household.Migrator
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// reconnectMu serializes subscription swaps.
	reconnectMu sync.Mutex

	mu       sync.RWMutex
	gen      uint64
	sub      Subscription
	partner  string
	addr     household.Address
	snapshot []models.Expense
	ready    bool
	changed  chan struct{}
	closed   bool
}

// NewSession creates a session for user. Call Start before reading views.
func NewSession(user identity.User, source ExpenseSource, writer RecordWriter, prefs Preferences, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user_id", user.UID)
	ctx, cancel := context.WithCancel(context.Background())

	metrics.ActiveSessions.Inc()
	return &Session{
		user:     user,
		youKeys:  identity.KeysForUser(user),
		primary:  identity.PrimaryKey(user),
		source:   source,
		writer:   writer,
		prefs:    prefs,
		migrator: household.NewMigrator(writer, logger),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		changed:  make(chan struct{}),
	}
}

// Start loads the stored partner preference, falling back to fallbackPartner, and
// subscribes to the household. It returns once the first snapshot has been applied.
func (s *Session) Start(ctx context.Context, fallbackPartner string) error {
	partner := fallbackPartner
	if s.prefs != nil {
		stored, ok, err := s.prefs.GetPreference(ctx, s.user.UID, PartnerPreference)
		if err != nil {
			return fmt.Errorf("failed to load partner preference: %w", err)
		}
		if ok {
			partner = stored
		}
	}
	return s.reconnect(ctx, partner)
}

// Partner returns the active partner identifier.
func (s *Session) Partner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partner
}

// Household returns the ids currently addressing the household.
func (s *Session) Household() household.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// SetPartner persists partner and resubscribes to the resulting household.
func (s *Session) SetPartner(ctx context.Context, partner string) error {
	partner = strings.TrimSpace(partner)
	if s.prefs != nil {
		if err := s.prefs.SetPreference(ctx, s.user.UID, PartnerPreference, partner); err != nil {
			return fmt.Errorf("failed to save partner preference: %w", err)
		}
	}
	return s.reconnect(ctx, partner)
}

func (s *Session) reconnect(ctx context.Context, partner string) error {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	old := s.sub
	s.sub = nil
	s.gen++
	gen := s.gen
	s.partner = partner
	s.addr = household.Resolve(s.user, partner)
	s.snapshot = nil
	s.ready = false
	ids := s.addr.IDs()
	s.mu.Unlock()

	// The generation bump above already makes any push from old stale.
	if old != nil {
		old.Close()
	}

	if len(ids) == 0 {
		s.logger.Debug("Household unresolvable, nothing to subscribe", "partner", partner)
		s.apply(gen, nil)
		return nil
	}

	sub, err := s.source.Subscribe(s.ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to subscribe to household: %w", err)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return ErrSessionClosed
	}
	s.sub = sub
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Subscribed to household", "household_ids", ids)

	go func() {
		defer s.wg.Done()
		for snap := range sub.Snapshots() {
			s.apply(gen, snap)
		}
	}()

	return s.waitReady(ctx, gen)
}

// apply installs snap if gen is still current and wakes every waiter.
func (s *Session) apply(gen uint64, snap []models.Expense) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		metrics.SnapshotsStale.Inc()
		return
	}
	s.snapshot = snap
	s.ready = true
	addr := s.addr
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	metrics.SnapshotsApplied.Inc()
	if n := s.migrator.Reconcile(s.ctx, addr, snap); n > 0 {
		s.logger.Info("Migrating legacy household records", "count", n, "to", addr.Current)
	}
}

func (s *Session) waitReady(ctx context.Context, gen uint64) error {
	for {
		s.mu.RLock()
		if s.gen != gen || s.ready || s.closed {
			s.mu.RUnlock()
			return nil
		}
		ch := s.changed
		s.mu.RUnlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Changed returns a channel closed on the next applied snapshot.
func (s *Session) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Snapshot returns the latest full snapshot.
func (s *Session) Snapshot() []models.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Row is one displayed expense with its per-row net for the signed-in user.
type Row struct {
	Expense   models.Expense `json:"expense"`
	Net       int64          `json:"net"`
	PaidByYou bool           `json:"paidByYou"`
}

// PayerLabel is "You" or "Partner".
func (r Row) PayerLabel() string {
	if r.PaidByYou {
		return "You"
	}
	return "Partner"
}

// View is everything derived from one snapshot and one filter state.
type View struct {
	Partner      string               `json:"partner"`
	HouseholdIDs []string             `json:"householdIds"`
	Rows         []Row                `json:"rows"`
	Balances     calculator.Summary   `json:"balances"`
	Transfer     *calculator.Transfer `json:"transfer,omitempty"`
}

// View derives rows and balances from the latest snapshot.
func (s *Session) View(f filter.Filters, now time.Time) View {
	s.mu.RLock()
	snap := s.snapshot
	partner := s.partner
	addr := s.addr
	s.mu.RUnlock()

	return BuildView(snap, s.youKeys, partner, addr.IDs(), f, now)
}

// BuildView filters snap and computes rows and balances. Balances only count unsettled
// rows of the filtered set.
func BuildView(snap []models.Expense, youKeys identity.KeySet, partner string, householdIDs []string, f filter.Filters, now time.Time) View {
	visible := filter.Apply(snap, f, now)
	rows := make([]Row, 0, len(visible))
	for _, e := range visible {
		rows = append(rows, Row{
			Expense:   e,
			Net:       calculator.NetForUser(e, youKeys),
			PaidByYou: youKeys.Matches(e.PayerUID),
		})
	}

	sum := calculator.ComputeBalances(filter.Unsettled(visible), youKeys, identity.BuildKeySet(partner))
	return View{
		Partner:      partner,
		HouseholdIDs: householdIDs,
		Rows:         rows,
		Balances:     sum,
		Transfer:     calculator.SuggestTransfer(sum),
	}
}

// Draft is the user-editable content of an expense.
type Draft struct {
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	CostCenter  string        `json:"costCenter"`
	Amount      models.Amount `json:"amount"`
	Conciliado  bool          `json:"conciliado"`
	// Payer is a raw identifier; empty or any of your keys means you.
	Payer string `json:"payer"`
	// YourRatio is your share in [0, 1]; nil means an even split.
	YourRatio *float64 `json:"yourRatio,omitempty"`
}

// Record validates d and fills in defaults, producing the stored form of the expense.
// Nothing is written; invalid drafts return one of the input errors.
func (s *Session) Record(d Draft, now time.Time) (*models.Expense, error) {
	return s.record(d, now, false)
}

// record builds the stored form of d. With keepPayer, a blank payer stays blank so the
// writer keeps the stored one.
func (s *Session) record(d Draft, now time.Time, keepPayer bool) (*models.Expense, error) {
	description := strings.TrimSpace(d.Description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if d.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	date := strings.TrimSpace(d.Date)
	if date == "" {
		date = now.Format(filter.DateLayout)
	}
	if _, err := time.Parse(filter.DateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d.Date)
	}

	ratio := DefaultRatio
	if d.YourRatio != nil {
		ratio = *d.YourRatio
	}
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRatio, ratio)
	}

	category := strings.TrimSpace(d.Category)
	if category == "" {
		category = DefaultCategory
	}
	costCenter := strings.TrimSpace(d.CostCenter)
	if costCenter == "" {
		costCenter = DefaultCostCenter
	}

	payer := identity.NormalizeKey(d.Payer)
	switch {
	case payer == "" && keepPayer:
	case payer == "" || s.youKeys.Has(payer):
		payer = s.primary
	}

	split := []models.SplitEntry{{UIDOrEmail: string(s.primary), Ratio: models.Ratio(ratio)}}
	if partnerKey := identity.NormalizeKey(s.Partner()); partnerKey != "" {
		rest, _ := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(ratio)).Round(4).Float64()
		split = append(split, models.SplitEntry{UIDOrEmail: string(partnerKey), Ratio: models.Ratio(rest)})
	}

	return &models.Expense{
		Date:        date,
		WeekLabel:   WeekLabel(date),
		Description: description,
		Category:    category,
		CostCenter:  costCenter,
		Amount:      d.Amount,
		Conciliado:  d.Conciliado,
		PayerUID:    string(payer),
		Split:       split,
	}, nil
}

// AddExpense validates d and creates it in the household.
func (s *Session) AddExpense(ctx context.Context, d Draft) (string, error) {
	e, err := s.Record(d, time.Now())
	if err != nil {
		return "", err
	}
	householdID := s.Household().ForNewRecord()
	if householdID == "" {
		return "", ErrNoHousehold
	}
	e.HouseholdID = householdID
	e.CreatedBy = string(s.primary)

	id, err := s.writer.Create(ctx, e)
	if err != nil {
		return "", fmt.Errorf("failed to create expense: %w", err)
	}
	s.logger.Info("Expense created", "expense_id", id, "household_id", householdID, "amount", int64(e.Amount))
	return id, nil
}

// EditExpense replaces the content of id with d. Household, creator and creation time
// are kept by the writer, and so is the payer when d leaves it blank.
func (s *Session) EditExpense(ctx context.Context, id string, d Draft) error {
	e, err := s.record(d, time.Now(), true)
	if err != nil {
		return err
	}
	if err := s.writer.Replace(ctx, s.Household().IDs(), id, e); err != nil {
		return fmt.Errorf("failed to update expense %s: %w", id, err)
	}
	s.logger.Info("Expense updated", "expense_id", id)
	return nil
}

// DeleteExpense removes one expense after confirmation.
func (s *Session) DeleteExpense(ctx context.Context, id string, confirm Confirm) error {
	return s.DeleteExpenses(ctx, []string{id}, confirm)
}

// DeleteExpenses removes every id after confirmation, all or nothing. A declined or
// missing confirmation returns ErrNotConfirmed without touching the writer.
func (s *Session) DeleteExpenses(ctx context.Context, ids []string, confirm Confirm) error {
	ids = DistinctIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if confirm == nil || !confirm(len(ids)) {
		return ErrNotConfirmed
	}

	var err error
	if len(ids) == 1 {
		err = s.writer.Delete(ctx, s.Household().IDs(), ids[0])
	} else {
		err = s.writer.BatchDelete(ctx, s.Household().IDs(), ids)
	}
	if err != nil {
		return fmt.Errorf("failed to delete expenses: %w", err)
	}
	s.logger.Info("Expenses deleted", "count", len(ids))
	return nil
}

// SettleExpenses sets the conciliado flag on every id, all or nothing.
func (s *Session) SettleExpenses(ctx context.Context, ids []string, settled bool) error {
	ids = DistinctIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if err := s.writer.BatchUpdate(ctx, s.Household().IDs(), ids, models.FieldUpdate{Conciliado: &settled}); err != nil {
		return fmt.Errorf("failed to update conciliado: %w", err)
	}
	s.logger.Info("Expenses settlement updated", "count", len(ids), "conciliado", settled)
	return nil
}

// Close tears down the subscription and waits for in-flight migrations.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	s.cancel()
	if sub != nil {
		sub.Close()
	}
	s.wg.Wait()
	s.migrator.Wait()
	metrics.ActiveSessions.Dec()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
