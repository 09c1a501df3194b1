// Package api holds the request and response messages of the hogar.v1 services.
//
// Messages travel as JSON. Timestamps use the protobuf well-known type and its canonical
// JSON form (RFC 3339).
package api

import (
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/mmynk/hogar/internal/calculator"
	"github.com/mmynk/hogar/internal/models"
)

// Timestamp is a protobuf timestamp that marshals as an RFC 3339 string.
type Timestamp struct {
	ts *timestamppb.Timestamp
}

// UnixTimestamp converts Unix seconds; zero yields an empty Timestamp.
func UnixTimestamp(sec int64) Timestamp {
	if sec == 0 {
		return Timestamp{}
	}
	return Timestamp{ts: timestamppb.New(time.Unix(sec, 0))}
}

// IsZero reports whether no time is set.
func (t Timestamp) IsZero() bool { return t.ts == nil }

// Time returns the timestamp as a time.Time; the zero Timestamp yields the zero time.
func (t Timestamp) Time() time.Time {
	if t.ts == nil {
		return time.Time{}
	}
	return t.ts.AsTime()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.ts == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(t.ts)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.ts = nil
		return nil
	}
	ts := &timestamppb.Timestamp{}
	if err := protojson.Unmarshal(data, ts); err != nil {
		return err
	}
	t.ts = ts
	return nil
}

// User is the public view of an account.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   Timestamp `json:"createdAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

type GetPartnerRequest struct{}

type GetPartnerResponse struct {
	Partner      string   `json:"partner"`
	HouseholdIDs []string `json:"householdIds"`
}

type SetPartnerRequest struct {
	Partner string `json:"partner"`
}

type SetPartnerResponse struct {
	Partner      string   `json:"partner"`
	HouseholdIDs []string `json:"householdIds"`
}

// Filter is the ledger filter state.
type Filter struct {
	ThisMonth bool `json:"thisMonth"`
	// Status is "all", "settled" or "pending"; empty means all.
	Status string `json:"status"`
	Query  string `json:"query"`
}

// Row is a displayed expense with the caller's net position on it.
type Row struct {
	Expense models.Expense `json:"expense"`
	Net     int64          `json:"net"`
	// Payer is "You" or "Partner".
	Payer      string `json:"payer"`
	AmountText string `json:"amountText"`
	NetText    string `json:"netText"`
	// NetTone is "positive", "negative" or "zero".
	NetTone string `json:"netTone"`
}

// Ledger is the full derived view of a household for one filter state.
type Ledger struct {
	Partner      string                 `json:"partner"`
	HouseholdIDs []string               `json:"householdIds"`
	Rows         []Row                  `json:"rows"`
	You          calculator.PartyTotals `json:"you"`
	PartnerTotal calculator.PartyTotals `json:"partnerTotals"`
	Transfer     *calculator.Transfer   `json:"transfer,omitempty"`
	// TransferText is a human-readable settlement suggestion.
	TransferText string `json:"transferText"`
}

type GetLedgerRequest struct {
	Filter Filter `json:"filter"`
}

type GetLedgerResponse struct {
	Ledger *Ledger `json:"ledger"`
}

type WatchLedgerRequest struct {
	Filter Filter `json:"filter"`
}

type WatchLedgerResponse struct {
	Ledger *Ledger `json:"ledger"`
}

// ExpenseInput is the editable content of an expense. Omitted fields take the form
// defaults: today, "General", "Shared", an even split and you as payer.
type ExpenseInput struct {
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	CostCenter  string        `json:"costCenter"`
	Amount      models.Amount `json:"amount"`
	Conciliado  bool          `json:"conciliado"`
	Payer       string        `json:"payer"`
	YourRatio   *float64      `json:"yourRatio,omitempty"`
}

type CreateExpenseRequest struct {
	Expense ExpenseInput `json:"expense"`
}

type CreateExpenseResponse struct {
	ID string `json:"id"`
}

type UpdateExpenseRequest struct {
	ID      string       `json:"id"`
	Expense ExpenseInput `json:"expense"`
}

type UpdateExpenseResponse struct{}

type DeleteExpensesRequest struct {
	IDs []string `json:"ids"`
	// Confirmed must be true; deletes are refused otherwise.
	Confirmed bool `json:"confirmed"`
}

type DeleteExpensesResponse struct {
	Deleted int `json:"deleted"`
}

type SettleExpensesRequest struct {
	IDs        []string `json:"ids"`
	Conciliado bool     `json:"conciliado"`
}

type SettleExpensesResponse struct {
	Updated int `json:"updated"`
}
