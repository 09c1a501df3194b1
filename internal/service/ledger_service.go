package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/hogar/internal/calculator"
	"github.com/mmynk/hogar/internal/currency"
	"github.com/mmynk/hogar/internal/filter"
	"github.com/mmynk/hogar/internal/ledger"
	"github.com/mmynk/hogar/internal/middleware"
	"github.com/mmynk/hogar/internal/storage"
	"github.com/mmynk/hogar/pkg/api"
	"github.com/mmynk/hogar/pkg/api/apiconnect"
)

// LedgerService implements the LedgerService RPC interface on top of per-user sessions.
type LedgerService struct {
	sessions *SessionManager
	logger   *slog.Logger
	now      func() time.Time
}

var _ apiconnect.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a new ledger service.
func NewLedgerService(sessions *SessionManager, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{sessions: sessions, logger: logger, now: time.Now}
}

// session acquires the caller's ledger session. The returned release must be called when
// the RPC ends.
func (s *LedgerService) session(ctx context.Context) (*ledger.Session, func(), error) {
	user, ok := middleware.GetIdentity(ctx)
	if !ok {
		return nil, nil, connect.NewError(connect.CodeUnauthenticated, errors.New("not signed in"))
	}
	sess, release, err := s.sessions.Acquire(ctx, user)
	if err != nil {
		return nil, nil, toConnectError(err)
	}
	return sess, release, nil
}

// toConnectError maps ledger and storage errors to Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrEmptyDescription),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, ledger.ErrInvalidRatio):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrNoHousehold), errors.Is(err, ledger.ErrNotConfirmed):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ledger.ErrSessionClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func toFilters(f api.Filter) (filter.Filters, error) {
	status, err := filter.ParseStatus(f.Status)
	if err != nil {
		return filter.Filters{}, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return filter.Filters{ThisMonth: f.ThisMonth, Status: status, Query: f.Query}, nil
}

func toDraft(in api.ExpenseInput) ledger.Draft {
	return ledger.Draft{
		Date:        in.Date,
		Description: in.Description,
		Category:    in.Category,
		CostCenter:  in.CostCenter,
		Amount:      in.Amount,
		Conciliado:  in.Conciliado,
		Payer:       in.Payer,
		YourRatio:   in.YourRatio,
	}
}

func transferText(t *calculator.Transfer) string {
	if t == nil {
		return "All settled"
	}
	if t.From == calculator.PartyPartner {
		return "Partner owes you " + currency.Format(t.Amount)
	}
	return "You owe partner " + currency.Format(t.Amount)
}

func toLedger(v ledger.View) *api.Ledger {
	rows := make([]api.Row, 0, len(v.Rows))
	for _, r := range v.Rows {
		rows = append(rows, api.Row{
			Expense:    r.Expense,
			Net:        r.Net,
			Payer:      r.PayerLabel(),
			AmountText: currency.Format(int64(r.Expense.Amount)),
			NetText:    currency.FormatSigned(r.Net),
			NetTone:    currency.Tone(r.Net),
		})
	}
	return &api.Ledger{
		Partner:      v.Partner,
		HouseholdIDs: v.HouseholdIDs,
		Rows:         rows,
		You:          v.Balances.You,
		PartnerTotal: v.Balances.Partner,
		Transfer:     v.Transfer,
		TransferText: transferText(v.Transfer),
	}
}

// GetPartner returns the partner the caller's ledger is paired with.
func (s *LedgerService) GetPartner(ctx context.Context, req *connect.Request[api.GetPartnerRequest]) (*connect.Response[api.GetPartnerResponse], error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return connect.NewResponse(&api.GetPartnerResponse{
		Partner:      sess.Partner(),
		HouseholdIDs: sess.Household().IDs(),
	}), nil
}

// SetPartner stores a new partner and switches the caller's ledger to that household.
func (s *LedgerService) SetPartner(ctx context.Context, req *connect.Request[api.SetPartnerRequest]) (*connect.Response[api.SetPartnerResponse], error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("SetPartner request", "user_id", middleware.GetUserID(ctx), "partner", req.Msg.Partner)
	if err := sess.SetPartner(ctx, req.Msg.Partner); err != nil {
		s.logger.Error("Failed to set partner", "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.SetPartnerResponse{
		Partner:      sess.Partner(),
		HouseholdIDs: sess.Household().IDs(),
	}), nil
}

// GetLedger returns the current ledger view for a filter state.
func (s *LedgerService) GetLedger(ctx context.Context, req *connect.Request[api.GetLedgerRequest]) (*connect.Response[api.GetLedgerResponse], error) {
	f, err := toFilters(req.Msg.Filter)
	if err != nil {
		return nil, err
	}
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return connect.NewResponse(&api.GetLedgerResponse{Ledger: toLedger(sess.View(f, s.now()))}), nil
}

// WatchLedger sends the ledger view now and again after every change until the client
// goes away or the session ends.
func (s *LedgerService) WatchLedger(ctx context.Context, req *connect.Request[api.WatchLedgerRequest], stream *connect.ServerStream[api.WatchLedgerResponse]) error {
	f, err := toFilters(req.Msg.Filter)
	if err != nil {
		return err
	}
	sess, release, err := s.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	for {
		// Take the signal before reading the view so a change in between is not lost.
		changed := sess.Changed()
		if sess.Closed() {
			return connect.NewError(connect.CodeUnavailable, ledger.ErrSessionClosed)
		}
		if err := stream.Send(&api.WatchLedgerResponse{Ledger: toLedger(sess.View(f, s.now()))}); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}

// CreateExpense records a new expense in the caller's household.
func (s *LedgerService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("CreateExpense request", "description", req.Msg.Expense.Description, "amount", req.Msg.Expense.Amount)
	id, err := sess.AddExpense(ctx, toDraft(req.Msg.Expense))
	if err != nil {
		s.logger.Warn("Failed to create expense", "error", err)
		return nil, toConnectError(err)
	}

	s.logger.Info("Expense created", "expense_id", id)
	return connect.NewResponse(&api.CreateExpenseResponse{ID: id}), nil
}

// UpdateExpense replaces the editable content of an expense.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	if req.Msg.ID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("UpdateExpense request", "expense_id", req.Msg.ID)
	if err := sess.EditExpense(ctx, req.Msg.ID, toDraft(req.Msg.Expense)); err != nil {
		s.logger.Warn("Failed to update expense", "expense_id", req.Msg.ID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.UpdateExpenseResponse{}), nil
}

// DeleteExpenses removes expenses. The request must carry an explicit confirmation.
func (s *LedgerService) DeleteExpenses(ctx context.Context, req *connect.Request[api.DeleteExpensesRequest]) (*connect.Response[api.DeleteExpensesResponse], error) {
	ids := ledger.DistinctIDs(req.Msg.IDs)
	if len(ids) == 0 {
		return connect.NewResponse(&api.DeleteExpensesResponse{}), nil
	}
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("DeleteExpenses request", "count", len(ids), "confirmed", req.Msg.Confirmed)
	confirm := func(int) bool { return req.Msg.Confirmed }
	if err := sess.DeleteExpenses(ctx, ids, confirm); err != nil {
		s.logger.Warn("Failed to delete expenses", "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.DeleteExpensesResponse{Deleted: len(ids)}), nil
}

// SettleExpenses sets the settlement flag on expenses.
func (s *LedgerService) SettleExpenses(ctx context.Context, req *connect.Request[api.SettleExpensesRequest]) (*connect.Response[api.SettleExpensesResponse], error) {
	ids := ledger.DistinctIDs(req.Msg.IDs)
	if len(ids) == 0 {
		return connect.NewResponse(&api.SettleExpensesResponse{}), nil
	}
	sess, release, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s.logger.Info("SettleExpenses request", "count", len(ids), "conciliado", req.Msg.Conciliado)
	if err := sess.SettleExpenses(ctx, ids, req.Msg.Conciliado); err != nil {
		s.logger.Warn("Failed to settle expenses", "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.SettleExpensesResponse{Updated: len(ids)}), nil
}
