package calculator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

func TestResolveRatios(t *testing.T) {
	you := identity.BuildKeySet("you@x.com", "uid1")

	tests := []struct {
		name      string
		split     []models.SplitEntry
		wantParty string
		wantTotal string
		wantNorm  string
	}{
		{
			name: "even split",
			split: []models.SplitEntry{
				{UIDOrEmail: "you@x.com", Ratio: 0.5},
				{UIDOrEmail: "partner@y.com", Ratio: 0.5},
			},
			wantParty: "0.5", wantTotal: "1", wantNorm: "0.5",
		},
		{
			name: "ratios summing to 0.6 are scaled",
			split: []models.SplitEntry{
				{UIDOrEmail: "you@x.com", Ratio: 0.3},
				{UIDOrEmail: "partner@y.com", Ratio: 0.3},
			},
			wantParty: "0.3", wantTotal: "0.6", wantNorm: "0.5",
		},
		{
			name:      "empty split defaults to half",
			split:     nil,
			wantParty: "0", wantTotal: "0", wantNorm: "0.5",
		},
		{
			name: "zero and negative ratios are absent",
			split: []models.SplitEntry{
				{UIDOrEmail: "you@x.com", Ratio: 0},
				{UIDOrEmail: "partner@y.com", Ratio: -1},
			},
			wantParty: "0", wantTotal: "0", wantNorm: "0.5",
		},
		{
			name: "matched through key set not exact string",
			split: []models.SplitEntry{
				{UIDOrEmail: " YOU@x.com", Ratio: 0.7},
				{UIDOrEmail: "partner@y.com", Ratio: 0.3},
			},
			wantParty: "0.7", wantTotal: "1", wantNorm: "0.7",
		},
		{
			name: "legacy uid entry counts as you",
			split: []models.SplitEntry{
				{UIDOrEmail: "uid1", Ratio: 0.25},
				{UIDOrEmail: "partner@y.com", Ratio: 0.75},
			},
			wantParty: "0.25", wantTotal: "1", wantNorm: "0.25",
		},
		{
			name:      "only your entry gives partner the complement",
			split:     []models.SplitEntry{{UIDOrEmail: "you@x.com", Ratio: 0.3}},
			wantParty: "0.3", wantTotal: "0.3", wantNorm: "0.3",
		},
		{
			name:      "only partner entry gives you the complement",
			split:     []models.SplitEntry{{UIDOrEmail: "partner@y.com", Ratio: 0.8}},
			wantParty: "0", wantTotal: "0.8", wantNorm: "0.2",
		},
		{
			name:      "oversized single ratio is clamped",
			split:     []models.SplitEntry{{UIDOrEmail: "you@x.com", Ratio: 1.5}},
			wantParty: "1.5", wantTotal: "1.5", wantNorm: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResolveRatios(tt.split, you)
			if !r.Party.Equal(decimal.RequireFromString(tt.wantParty)) {
				t.Errorf("Party = %s, want %s", r.Party, tt.wantParty)
			}
			if !r.Total.Equal(decimal.RequireFromString(tt.wantTotal)) {
				t.Errorf("Total = %s, want %s", r.Total, tt.wantTotal)
			}
			if got := r.Normalized(); !got.Equal(decimal.RequireFromString(tt.wantNorm)) {
				t.Errorf("Normalized() = %s, want %s", got, tt.wantNorm)
			}
		})
	}
}

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name            string
		amount          int64
		ratio           string
		wantParty       int64
		wantCounterpart int64
	}{
		{"even", 100, "0.5", 50, 50},
		{"odd amount remainder to counterpart", 101, "0.5", 50, 51},
		{"thirds", 100, "0.3333333333333333", 33, 67},
		{"float noise does not drop a unit", 300, "0.3333333333333333", 100, 200},
		{"two thirds", 300, "0.6666666666666667", 200, 100},
		{"all", 999, "1", 999, 0},
		{"nothing", 999, "0", 0, 999},
		{"clamped above one", 10, "1.5", 10, 0},
		{"zero amount", 0, "0.5", 0, 0},
		{"negative amount", -50, "0.5", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitAmount(tt.amount, decimal.RequireFromString(tt.ratio))
			if got.Party != tt.wantParty || got.Counterpart != tt.wantCounterpart {
				t.Errorf("SplitAmount(%d, %s) = %+v, want {%d %d}",
					tt.amount, tt.ratio, got, tt.wantParty, tt.wantCounterpart)
			}
			if tt.amount > 0 && got.Party+got.Counterpart != tt.amount {
				t.Errorf("shares %+v leak currency from %d", got, tt.amount)
			}
		})
	}
}

func TestExpenseShares_FloatDrift(t *testing.T) {
	you := identity.BuildKeySet("you@x.com")
	a, b := 0.1, 0.2 // sums to 0.30000000000000004 at runtime
	e := models.Expense{
		Amount: 1000,
		Split: []models.SplitEntry{
			{UIDOrEmail: "you@x.com", Ratio: models.Ratio(a + b)},
			{UIDOrEmail: "partner@y.com", Ratio: 0.7},
		},
	}

	got := ExpenseShares(e, you)
	if got.Party != 300 || got.Counterpart != 700 {
		t.Errorf("ExpenseShares() = %+v, want {300 700}", got)
	}
}
