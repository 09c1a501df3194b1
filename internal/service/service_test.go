package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/hogar/internal/auth"
	"github.com/mmynk/hogar/internal/feed"
	"github.com/mmynk/hogar/internal/middleware"
	"github.com/mmynk/hogar/internal/models"
	"github.com/mmynk/hogar/internal/storage/sqlite"
	"github.com/mmynk/hogar/pkg/api"
	"github.com/mmynk/hogar/pkg/api/apiconnect"
)

type testServer struct {
	url    string
	client *http.Client
	auth   apiconnect.AuthServiceClient
}

// setupTestServer creates a full server over a temporary SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	broker := feed.NewBroker()
	source := feed.NewSource(store, broker, nil)
	writer := feed.NewWriter(store, broker, nil)
	sessions := NewSessionManager(source, writer, store, nil, nil)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)

	router := NewRouter(
		NewAuthService(authenticator, store, jwtManager, nil),
		NewLedgerService(sessions, nil),
		jwtManager,
		nil,
	)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		sessions.Close()
		server.Close()
		store.Close()
	})

	return &testServer{
		url:    server.URL,
		client: server.Client(),
		auth:   apiconnect.NewAuthServiceClient(server.Client(), server.URL),
	}
}

// register creates an account and returns a ledger client signed in as it.
func (s *testServer) register(t *testing.T, email string) apiconnect.LedgerServiceClient {
	t.Helper()

	resp, err := s.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		DisplayName: email,
		Password:    "correct-horse",
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return apiconnect.NewLedgerServiceClient(s.client, s.url,
		connect.WithInterceptors(middleware.BearerToken(resp.Msg.Token)))
}

func setPartner(t *testing.T, client apiconnect.LedgerServiceClient, partner string) {
	t.Helper()
	if _, err := client.SetPartner(context.Background(), connect.NewRequest(&api.SetPartnerRequest{Partner: partner})); err != nil {
		t.Fatalf("SetPartner(%s) failed: %v", partner, err)
	}
}

func getLedger(t *testing.T, client apiconnect.LedgerServiceClient, f api.Filter) *api.Ledger {
	t.Helper()
	resp, err := client.GetLedger(context.Background(), connect.NewRequest(&api.GetLedgerRequest{Filter: f}))
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	return resp.Msg.Ledger
}

// waitLedger polls GetLedger until ok accepts the view. Writes reach sessions through
// the change feed, so reads right after a write may still see the old snapshot.
func waitLedger(t *testing.T, client apiconnect.LedgerServiceClient, f api.Filter, ok func(*api.Ledger) bool) *api.Ledger {
	t.Helper()
	var view *api.Ledger
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view = getLedger(t, client, f)
		if ok(view) {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ledger did not reach the expected state, last rows: %+v", view.Rows)
	return nil
}

func hasRows(n int) func(*api.Ledger) bool {
	return func(l *api.Ledger) bool { return len(l.Rows) == n }
}

func createExpense(t *testing.T, client apiconnect.LedgerServiceClient, description string, amount int64) string {
	t.Helper()
	resp, err := client.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Expense: api.ExpenseInput{Date: "2026-10-19", Description: description, Amount: models.Amount(amount)},
	}))
	if err != nil {
		t.Fatalf("CreateExpense(%s) failed: %v", description, err)
	}
	if resp.Msg.ID == "" {
		t.Fatal("expected an expense id")
	}
	return resp.Msg.ID
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != want {
		t.Errorf("expected code %v, got %v", want, connectErr.Code())
	}
}

func TestAuth_RegisterLoginCurrentUser(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	reg, err := s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "Alice@X.com", DisplayName: "Alice", Password: "correct-horse",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.User.Email != "alice@x.com" {
		t.Errorf("expected normalized email, got %q", reg.Msg.User.Email)
	}
	if reg.Msg.User.CreatedAt.IsZero() {
		t.Error("expected createdAt to be set")
	}

	_, err = s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email: "alice@x.com", DisplayName: "Again", Password: "correct-horse",
	}))
	assertCode(t, err, connect.CodeAlreadyExists)

	_, err = s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "alice@x.com", Password: "wrong-horse"}))
	assertCode(t, err, connect.CodeUnauthenticated)

	login, err := s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "alice@x.com", Password: "correct-horse"}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	authed := apiconnect.NewAuthServiceClient(s.client, s.url,
		connect.WithInterceptors(middleware.BearerToken(login.Msg.Token)))
	me, err := authed.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.ID != reg.Msg.User.ID {
		t.Errorf("expected user %s, got %s", reg.Msg.User.ID, me.Msg.User.ID)
	}

	_, err = s.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestLedger_RequiresToken(t *testing.T) {
	s := setupTestServer(t)

	anonymous := apiconnect.NewLedgerServiceClient(s.client, s.url)
	_, err := anonymous.GetLedger(context.Background(), connect.NewRequest(&api.GetLedgerRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)

	forged := apiconnect.NewLedgerServiceClient(s.client, s.url,
		connect.WithInterceptors(middleware.BearerToken("not-a-token")))
	_, err = forged.GetLedger(context.Background(), connect.NewRequest(&api.GetLedgerRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestLedger_SharedHousehold(t *testing.T) {
	s := setupTestServer(t)
	alice := s.register(t, "alice@x.com")
	bob := s.register(t, "bob@x.com")

	setPartner(t, alice, "bob@x.com")
	setPartner(t, bob, "Alice@X.com")

	id := createExpense(t, alice, "Mercado", 250000)

	view := waitLedger(t, bob, api.Filter{}, hasRows(1))

	row := view.Rows[0]
	if row.Payer != "Partner" {
		t.Errorf("expected payer Partner, got %q", row.Payer)
	}
	if row.Net != -125000 || row.NetTone != "negative" {
		t.Errorf("expected net -125000 (negative), got %d (%s)", row.Net, row.NetTone)
	}
	if view.You.Balance != -125000 || view.PartnerTotal.Balance != 125000 {
		t.Errorf("unexpected balances: you=%+v partner=%+v", view.You, view.PartnerTotal)
	}
	if view.TransferText != "You owe partner $125.000" {
		t.Errorf("unexpected transfer text %q", view.TransferText)
	}

	aliceView := waitLedger(t, alice, api.Filter{}, hasRows(1))
	if aliceView.TransferText != "Partner owes you $125.000" {
		t.Errorf("unexpected transfer text for alice %q", aliceView.TransferText)
	}
	if aliceView.Rows[0].Expense.Category != "General" || aliceView.Rows[0].Expense.CostCenter != "Shared" {
		t.Errorf("expected form defaults, got %+v", aliceView.Rows[0].Expense)
	}
	if aliceView.Rows[0].NetTone != "positive" {
		t.Errorf("expected positive tone for alice, got %q", aliceView.Rows[0].NetTone)
	}

	// Editing without a payer keeps whoever paid.
	_, err := bob.UpdateExpense(context.Background(), connect.NewRequest(&api.UpdateExpenseRequest{
		ID:      id,
		Expense: api.ExpenseInput{Date: "2026-10-19", Description: "Mercado y aseo", Amount: models.Amount(250000)},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	edited := waitLedger(t, bob, api.Filter{}, func(l *api.Ledger) bool {
		return len(l.Rows) == 1 && l.Rows[0].Expense.Description == "Mercado y aseo"
	})
	if got := edited.Rows[0]; got.Payer != "Partner" || got.Expense.PayerUID != "alice@x.com" {
		t.Errorf("edit must keep the stored payer, got %q (%s)", got.Payer, got.Expense.PayerUID)
	}
}

func TestLedger_OtherHouseholdCannotModifyExpenses(t *testing.T) {
	s := setupTestServer(t)
	alice := s.register(t, "alice@x.com")
	mallory := s.register(t, "mallory@x.com")
	setPartner(t, alice, "bob@x.com")
	setPartner(t, mallory, "eve@x.com")
	ctx := context.Background()

	id := createExpense(t, alice, "Mercado", 80000)

	_, err := mallory.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ID:      id,
		Expense: api.ExpenseInput{Date: "2026-10-19", Description: "Otra cosa", Amount: models.Amount(999999)},
	}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = mallory.SettleExpenses(ctx, connect.NewRequest(&api.SettleExpensesRequest{
		IDs: []string{id}, Conciliado: true,
	}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = mallory.DeleteExpenses(ctx, connect.NewRequest(&api.DeleteExpensesRequest{
		IDs: []string{id}, Confirmed: true,
	}))
	assertCode(t, err, connect.CodeNotFound)

	if n := len(getLedger(t, mallory, api.Filter{}).Rows); n != 0 {
		t.Errorf("expected mallory to see no rows, got %d", n)
	}

	view := waitLedger(t, alice, api.Filter{}, hasRows(1))
	got := view.Rows[0].Expense
	if got.ID != id || got.Description != "Mercado" || got.Amount != 80000 || got.Conciliado {
		t.Errorf("expense changed from another household: %+v", got)
	}
	if len(got.Split) != 2 || got.HouseholdID != "alice@x.com__bob@x.com" {
		t.Errorf("unexpected split or household: %+v", got)
	}
}

func TestLedger_PartnerEndpoints(t *testing.T) {
	s := setupTestServer(t)
	alice := s.register(t, "alice@x.com")

	resp, err := alice.GetPartner(context.Background(), connect.NewRequest(&api.GetPartnerRequest{}))
	if err != nil {
		t.Fatalf("GetPartner failed: %v", err)
	}
	if resp.Msg.Partner != "" || len(resp.Msg.HouseholdIDs) != 0 {
		t.Errorf("expected no partner yet, got %+v", resp.Msg)
	}

	_, err = alice.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Expense: api.ExpenseInput{Description: "Arriendo", Amount: models.Amount(1000)},
	}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	setPartner(t, alice, "bob@x.com")
	resp, err = alice.GetPartner(context.Background(), connect.NewRequest(&api.GetPartnerRequest{}))
	if err != nil {
		t.Fatalf("GetPartner failed: %v", err)
	}
	if resp.Msg.Partner != "bob@x.com" {
		t.Errorf("expected partner bob@x.com, got %q", resp.Msg.Partner)
	}
	if len(resp.Msg.HouseholdIDs) == 0 || resp.Msg.HouseholdIDs[0] != "alice@x.com__bob@x.com" {
		t.Errorf("unexpected household ids %v", resp.Msg.HouseholdIDs)
	}
}

func TestLedger_Mutations(t *testing.T) {
	s := setupTestServer(t)
	alice := s.register(t, "alice@x.com")
	setPartner(t, alice, "bob@x.com")
	ctx := context.Background()

	first := createExpense(t, alice, "Mercado", 80000)
	second := createExpense(t, alice, "Gas", 40000)

	_, err := alice.CreateExpense(ctx, connect.NewRequest(&api.CreateExpenseRequest{
		Expense: api.ExpenseInput{Description: "Nada", Amount: 0},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = alice.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ID:      first,
		Expense: api.ExpenseInput{Date: "2026-10-18", Description: "Mercado grande", Amount: models.Amount(90000)},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	_, err = alice.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ID:      "missing",
		Expense: api.ExpenseInput{Description: "x", Amount: models.Amount(1)},
	}))
	assertCode(t, err, connect.CodeNotFound)

	settle, err := alice.SettleExpenses(ctx, connect.NewRequest(&api.SettleExpensesRequest{
		IDs: []string{first}, Conciliado: true,
	}))
	if err != nil {
		t.Fatalf("SettleExpenses failed: %v", err)
	}
	if settle.Msg.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", settle.Msg.Updated)
	}

	settle, err = alice.SettleExpenses(ctx, connect.NewRequest(&api.SettleExpensesRequest{
		IDs: []string{first, first, ""}, Conciliado: true,
	}))
	if err != nil {
		t.Fatalf("SettleExpenses failed: %v", err)
	}
	if settle.Msg.Updated != 1 {
		t.Errorf("repeated ids must count once, got %d updated", settle.Msg.Updated)
	}

	_, err = alice.DeleteExpenses(ctx, connect.NewRequest(&api.DeleteExpensesRequest{IDs: []string{second}}))
	assertCode(t, err, connect.CodeFailedPrecondition)

	_, err = alice.GetLedger(ctx, connect.NewRequest(&api.GetLedgerRequest{Filter: api.Filter{Status: "bogus"}}))
	assertCode(t, err, connect.CodeInvalidArgument)

	settled := waitLedger(t, alice, api.Filter{Status: "settled"}, func(l *api.Ledger) bool {
		return len(l.Rows) == 1 && l.Rows[0].Expense.Description == "Mercado grande"
	})
	if settled.Transfer != nil || settled.TransferText != "All settled" {
		t.Errorf("settled rows must not count toward balances, got %q", settled.TransferText)
	}

	del, err := alice.DeleteExpenses(ctx, connect.NewRequest(&api.DeleteExpensesRequest{
		IDs: []string{first, second, first}, Confirmed: true,
	}))
	if err != nil {
		t.Fatalf("DeleteExpenses failed: %v", err)
	}
	if del.Msg.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", del.Msg.Deleted)
	}
}

func TestLedger_WatchStreamsChanges(t *testing.T) {
	s := setupTestServer(t)
	alice := s.register(t, "alice@x.com")
	bob := s.register(t, "bob@x.com")
	setPartner(t, alice, "bob@x.com")
	setPartner(t, bob, "alice@x.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := bob.WatchLedger(ctx, connect.NewRequest(&api.WatchLedgerRequest{}))
	if err != nil {
		t.Fatalf("WatchLedger failed: %v", err)
	}
	defer stream.Close()

	if !stream.Receive() {
		t.Fatalf("expected initial ledger, got %v", stream.Err())
	}
	if n := len(stream.Msg().Ledger.Rows); n != 0 {
		t.Fatalf("expected empty initial ledger, got %d rows", n)
	}

	createExpense(t, alice, "Internet", 120000)

	for stream.Receive() {
		if rows := stream.Msg().Ledger.Rows; len(rows) == 1 {
			if rows[0].Expense.Description != "Internet" {
				t.Errorf("unexpected row %+v", rows[0].Expense)
			}
			return
		}
	}
	t.Fatalf("stream ended before the new expense arrived: %v", stream.Err())
}
