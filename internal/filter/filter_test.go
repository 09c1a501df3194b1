package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/hogar/internal/models"
)

func ids(expenses []models.Expense) []string {
	out := make([]string, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, e.ID)
	}
	return out
}

func snapshot() []models.Expense {
	return []models.Expense{
		{ID: "a", Date: "2026-10-18", Description: "Mercado Éxito", Category: "Market", Conciliado: false},
		{ID: "b", Date: "2026-10-01", Description: "Rent", Category: "Housing", Conciliado: true},
		{ID: "c", Date: "2026-09-30", Description: "Dinner", Category: "Restaurants", Conciliado: false},
		{ID: "d", Date: "2025-12-31", Description: "Gift", Category: "market extras", Conciliado: true},
	}
}

func TestApply(t *testing.T) {
	now := time.Date(2026, time.October, 19, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"zero value matches all", Filters{}, []string{"a", "b", "c", "d"}},
		{"this month is inclusive of the first", Filters{ThisMonth: true}, []string{"a", "b"}},
		{"settled only", Filters{Status: StatusSettled}, []string{"b", "d"}},
		{"pending only", Filters{Status: StatusPending}, []string{"a", "c"}},
		{"query matches category case-insensitively", Filters{Query: "MARKET"}, []string{"a", "d"}},
		{"query matches description", Filters{Query: "rent"}, []string{"b"}},
		{"blank query matches all", Filters{Query: "   "}, []string{"a", "b", "c", "d"}},
		{"query spans description and category", Filters{Query: "dinner rest"}, []string{"c"}},
		{"predicates combine", Filters{ThisMonth: true, Status: StatusPending, Query: "market"}, []string{"a"}},
		{"no match", Filters{Query: "zzz"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(snapshot(), tt.filters, now)))
		})
	}
}

func TestMonthStart(t *testing.T) {
	assert.Equal(t, "2026-10-01", MonthStart(time.Date(2026, time.October, 19, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2027-01-01", MonthStart(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestUnsettled(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, ids(Unsettled(snapshot())))
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"":         StatusAll,
		"ALL":      StatusAll,
		"settled":  StatusSettled,
		" pending": StatusPending,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStatus("maybe")
	assert.Error(t, err)
	assert.Equal(t, "pending", StatusPending.String())
}
