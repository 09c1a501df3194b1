package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/hogar/internal/ledger"
	"github.com/mmynk/hogar/internal/models"
)

// Lister reads a household snapshot.
type Lister interface {
	ListExpensesByHousehold(ctx context.Context, householdIDs []string) ([]models.Expense, error)
}

// Source opens snapshot subscriptions backed by a Lister and a Notifier.
type Source struct {
	store    Lister
	notifier Notifier
	logger   *slog.Logger
}

var _ ledger.ExpenseSource = (*Source)(nil)

// NewSource creates a Source.
func NewSource(store Lister, notifier Notifier, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{store: store, notifier: notifier, logger: logger}
}

// Subscribe starts a subscription that pushes the current snapshot immediately and a
// fresh one after every change notice. A slow reader only ever sees the latest snapshot.
// The subscription ends when ctx is cancelled or Close is called.
func (s *Source) Subscribe(ctx context.Context, householdIDs []string) (ledger.Subscription, error) {
	ids := append([]string(nil), householdIDs...)
	sub := &subscription{
		out:     make(chan []models.Expense, 1),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	cancel, err := s.notifier.Subscribe(ids, func(string) {
		select {
		case sub.changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	sub.cancel = cancel

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer close(sub.out)
		defer cancel()
		s.run(ctx, sub, ids)
	}()
	return sub, nil
}

func (s *Source) run(ctx context.Context, sub *subscription, ids []string) {
	for {
		snapshot, err := s.store.ListExpensesByHousehold(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Failed to load household snapshot", "household_ids", ids, "error", err)
		} else {
			sub.deliver(snapshot)
		}

		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-sub.changed:
		}
	}
}

type subscription struct {
	out     chan []models.Expense
	changed chan struct{}
	done    chan struct{}
	cancel  func()

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// deliver replaces any unread snapshot with the new one.
func (s *subscription) deliver(snapshot []models.Expense) {
	for {
		select {
		case s.out <- snapshot:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}

func (s *subscription) Snapshots() <-chan []models.Expense { return s.out }

func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.wg.Wait()
}
