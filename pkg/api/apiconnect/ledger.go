package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/hogar/pkg/api"
)

// LedgerServiceName is the fully-qualified name of the LedgerService service.
const LedgerServiceName = "hogar.v1.LedgerService"

// Procedure paths of LedgerService.
const (
	LedgerServiceGetPartnerProcedure     = "/hogar.v1.LedgerService/GetPartner"
	LedgerServiceSetPartnerProcedure     = "/hogar.v1.LedgerService/SetPartner"
	LedgerServiceGetLedgerProcedure      = "/hogar.v1.LedgerService/GetLedger"
	LedgerServiceWatchLedgerProcedure    = "/hogar.v1.LedgerService/WatchLedger"
	LedgerServiceCreateExpenseProcedure  = "/hogar.v1.LedgerService/CreateExpense"
	LedgerServiceUpdateExpenseProcedure  = "/hogar.v1.LedgerService/UpdateExpense"
	LedgerServiceDeleteExpensesProcedure = "/hogar.v1.LedgerService/DeleteExpenses"
	LedgerServiceSettleExpensesProcedure = "/hogar.v1.LedgerService/SettleExpenses"
)

// LedgerServiceHandler is implemented by the LedgerService server.
type LedgerServiceHandler interface {
	GetPartner(context.Context, *connect.Request[api.GetPartnerRequest]) (*connect.Response[api.GetPartnerResponse], error)
	SetPartner(context.Context, *connect.Request[api.SetPartnerRequest]) (*connect.Response[api.SetPartnerResponse], error)
	GetLedger(context.Context, *connect.Request[api.GetLedgerRequest]) (*connect.Response[api.GetLedgerResponse], error)
	WatchLedger(context.Context, *connect.Request[api.WatchLedgerRequest], *connect.ServerStream[api.WatchLedgerResponse]) error
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error)
	DeleteExpenses(context.Context, *connect.Request[api.DeleteExpensesRequest]) (*connect.Response[api.DeleteExpensesResponse], error)
	SettleExpenses(context.Context, *connect.Request[api.SettleExpensesRequest]) (*connect.Response[api.SettleExpensesResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service implementation. It
// returns the path on which to mount the handler and the handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connect.WithCodec(Codec{}))
	handlers := map[string]http.Handler{
		LedgerServiceGetPartnerProcedure:     connect.NewUnaryHandler(LedgerServiceGetPartnerProcedure, svc.GetPartner, opts...),
		LedgerServiceSetPartnerProcedure:     connect.NewUnaryHandler(LedgerServiceSetPartnerProcedure, svc.SetPartner, opts...),
		LedgerServiceGetLedgerProcedure:      connect.NewUnaryHandler(LedgerServiceGetLedgerProcedure, svc.GetLedger, opts...),
		LedgerServiceWatchLedgerProcedure:    connect.NewServerStreamHandler(LedgerServiceWatchLedgerProcedure, svc.WatchLedger, opts...),
		LedgerServiceCreateExpenseProcedure:  connect.NewUnaryHandler(LedgerServiceCreateExpenseProcedure, svc.CreateExpense, opts...),
		LedgerServiceUpdateExpenseProcedure:  connect.NewUnaryHandler(LedgerServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...),
		LedgerServiceDeleteExpensesProcedure: connect.NewUnaryHandler(LedgerServiceDeleteExpensesProcedure, svc.DeleteExpenses, opts...),
		LedgerServiceSettleExpensesProcedure: connect.NewUnaryHandler(LedgerServiceSettleExpensesProcedure, svc.SettleExpenses, opts...),
	}

	return "/" + LedgerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// LedgerServiceClient is a client for the LedgerService service.
type LedgerServiceClient interface {
	GetPartner(context.Context, *connect.Request[api.GetPartnerRequest]) (*connect.Response[api.GetPartnerResponse], error)
	SetPartner(context.Context, *connect.Request[api.SetPartnerRequest]) (*connect.Response[api.SetPartnerResponse], error)
	GetLedger(context.Context, *connect.Request[api.GetLedgerRequest]) (*connect.Response[api.GetLedgerResponse], error)
	WatchLedger(context.Context, *connect.Request[api.WatchLedgerRequest]) (*connect.ServerStreamForClient[api.WatchLedgerResponse], error)
	CreateExpense(context.Context, *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error)
	DeleteExpenses(context.Context, *connect.Request[api.DeleteExpensesRequest]) (*connect.Response[api.DeleteExpensesResponse], error)
	SettleExpenses(context.Context, *connect.Request[api.SettleExpensesRequest]) (*connect.Response[api.SettleExpensesResponse], error)
}

// NewLedgerServiceClient constructs a client for the LedgerService service at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ledgerServiceClient{
		getPartner:     connect.NewClient[api.GetPartnerRequest, api.GetPartnerResponse](httpClient, baseURL+LedgerServiceGetPartnerProcedure, opts...),
		setPartner:     connect.NewClient[api.SetPartnerRequest, api.SetPartnerResponse](httpClient, baseURL+LedgerServiceSetPartnerProcedure, opts...),
		getLedger:      connect.NewClient[api.GetLedgerRequest, api.GetLedgerResponse](httpClient, baseURL+LedgerServiceGetLedgerProcedure, opts...),
		watchLedger:    connect.NewClient[api.WatchLedgerRequest, api.WatchLedgerResponse](httpClient, baseURL+LedgerServiceWatchLedgerProcedure, opts...),
		createExpense:  connect.NewClient[api.CreateExpenseRequest, api.CreateExpenseResponse](httpClient, baseURL+LedgerServiceCreateExpenseProcedure, opts...),
		updateExpense:  connect.NewClient[api.UpdateExpenseRequest, api.UpdateExpenseResponse](httpClient, baseURL+LedgerServiceUpdateExpenseProcedure, opts...),
		deleteExpenses: connect.NewClient[api.DeleteExpensesRequest, api.DeleteExpensesResponse](httpClient, baseURL+LedgerServiceDeleteExpensesProcedure, opts...),
		settleExpenses: connect.NewClient[api.SettleExpensesRequest, api.SettleExpensesResponse](httpClient, baseURL+LedgerServiceSettleExpensesProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	getPartner     *connect.Client[api.GetPartnerRequest, api.GetPartnerResponse]
	setPartner     *connect.Client[api.SetPartnerRequest, api.SetPartnerResponse]
	getLedger      *connect.Client[api.GetLedgerRequest, api.GetLedgerResponse]
	watchLedger    *connect.Client[api.WatchLedgerRequest, api.WatchLedgerResponse]
	createExpense  *connect.Client[api.CreateExpenseRequest, api.CreateExpenseResponse]
	updateExpense  *connect.Client[api.UpdateExpenseRequest, api.UpdateExpenseResponse]
	deleteExpenses *connect.Client[api.DeleteExpensesRequest, api.DeleteExpensesResponse]
	settleExpenses *connect.Client[api.SettleExpensesRequest, api.SettleExpensesResponse]
}

func (c *ledgerServiceClient) GetPartner(ctx context.Context, req *connect.Request[api.GetPartnerRequest]) (*connect.Response[api.GetPartnerResponse], error) {
	return c.getPartner.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SetPartner(ctx context.Context, req *connect.Request[api.SetPartnerRequest]) (*connect.Response[api.SetPartnerResponse], error) {
	return c.setPartner.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetLedger(ctx context.Context, req *connect.Request[api.GetLedgerRequest]) (*connect.Response[api.GetLedgerResponse], error) {
	return c.getLedger.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) WatchLedger(ctx context.Context, req *connect.Request[api.WatchLedgerRequest]) (*connect.ServerStreamForClient[api.WatchLedgerResponse], error) {
	return c.watchLedger.CallServerStream(ctx, req)
}

func (c *ledgerServiceClient) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	return c.createExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) DeleteExpenses(ctx context.Context, req *connect.Request[api.DeleteExpensesRequest]) (*connect.Response[api.DeleteExpensesResponse], error) {
	return c.deleteExpenses.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) SettleExpenses(ctx context.Context, req *connect.Request[api.SettleExpensesRequest]) (*connect.Response[api.SettleExpensesResponse], error) {
	return c.settleExpenses.CallUnary(ctx, req)
}
