package calculator

import (
	"testing"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

func evenSplit(a, b string) []models.SplitEntry {
	return []models.SplitEntry{{UIDOrEmail: a, Ratio: 0.5}, {UIDOrEmail: b, Ratio: 0.5}}
}

// ledgerFixture mixes legacy uid keys, email case drift, odd amounts and partial splits.
func ledgerFixture() []models.Expense {
	return []models.Expense{
		{ID: "1", Amount: 25000, PayerUID: "you@x.com", Split: evenSplit("you@x.com", "partner@y.com")},
		{ID: "2", Amount: 12345, PayerUID: "Partner@Y.com", Split: []models.SplitEntry{
			{UIDOrEmail: "uid1", Ratio: 0.3}, {UIDOrEmail: "partner@y.com", Ratio: 0.7},
		}},
		{ID: "3", Amount: 999, PayerUID: "uid1", Split: nil},
		{ID: "4", Amount: 7001, PayerUID: "partner@y.com", Split: []models.SplitEntry{
			{UIDOrEmail: "you@x.com", Ratio: 0.3}, {UIDOrEmail: "partner@y.com", Ratio: 0.3},
		}},
		{ID: "5", Amount: 0, PayerUID: "you@x.com", Split: evenSplit("you@x.com", "partner@y.com")},
		{ID: "6", Amount: 3333, PayerUID: "you@x.com", Split: []models.SplitEntry{
			{UIDOrEmail: "you@x.com", Ratio: 0.3333},
			{UIDOrEmail: "partner@y.com", Ratio: 0.6667},
		}},
	}
}

func TestComputeBalances(t *testing.T) {
	you := identity.BuildKeySet("you@x.com", "uid1")

	tests := []struct {
		name         string
		expenses     []models.Expense
		youKeys      identity.KeySet
		partnerKeys  identity.KeySet
		wantYou      PartyTotals
		wantPartner  PartyTotals
		validateFunc func(t *testing.T, sum Summary)
	}{
		{
			name: "even split paid by you",
			expenses: []models.Expense{{
				Amount:     25000,
				PayerUID:   "you@x.com",
				Split:      evenSplit("you@x.com", "partner@y.com"),
				Conciliado: false,
			}},
			youKeys:     identity.BuildKeySet("you@x.com"),
			partnerKeys: identity.BuildKeySet("partner@y.com"),
			wantYou:     PartyTotals{Gasto: 12500, Aporto: 25000, Balance: 12500},
			wantPartner: PartyTotals{Gasto: 12500, Aporto: 0, Balance: -12500},
		},
		{
			name:        "empty split defaults to half",
			expenses:    []models.Expense{{Amount: 100, PayerUID: "A"}},
			youKeys:     identity.BuildKeySet("A"),
			wantYou:     PartyTotals{Gasto: 50, Aporto: 100, Balance: 50},
			wantPartner: PartyTotals{Gasto: 50, Aporto: 0, Balance: -50},
		},
		{
			name: "zero and negative amounts are skipped",
			expenses: []models.Expense{
				{Amount: 0, PayerUID: "you@x.com"},
				{Amount: -40, PayerUID: "partner@y.com"},
			},
			youKeys: you,
		},
		{
			name: "unrecorded payer contributes no aporto",
			expenses: []models.Expense{
				{Amount: 200, PayerUID: "  ", Split: evenSplit("you@x.com", "partner@y.com")},
			},
			youKeys:     you,
			wantYou:     PartyTotals{Gasto: 100, Balance: -100},
			wantPartner: PartyTotals{Gasto: 100, Balance: -100},
		},
		{
			name: "partner keys are discovered from data",
			expenses: []models.Expense{
				{Amount: 100, PayerUID: "Partner@Y.com", Split: evenSplit("uid1", "partner-uid")},
			},
			youKeys:     you,
			partnerKeys: nil,
			wantYou:     PartyTotals{Gasto: 50, Balance: -50},
			wantPartner: PartyTotals{Gasto: 50, Aporto: 100, Balance: 50},
			validateFunc: func(t *testing.T, sum Summary) {
				for _, k := range []identity.Key{"partner@y.com", "partner-uid"} {
					if !sum.PartnerKeys.Has(k) {
						t.Errorf("PartnerKeys missing %q: %v", k, sum.PartnerKeys.Sorted())
					}
				}
				if sum.PartnerKeys.Has("uid1") {
					t.Errorf("PartnerKeys must not contain your keys")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := ComputeBalances(tt.expenses, tt.youKeys, tt.partnerKeys)
			if sum.You != tt.wantYou {
				t.Errorf("You = %+v, want %+v", sum.You, tt.wantYou)
			}
			if sum.Partner != tt.wantPartner {
				t.Errorf("Partner = %+v, want %+v", sum.Partner, tt.wantPartner)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, sum)
			}
		})
	}
}

func TestComputeBalances_ConservesMoney(t *testing.T) {
	you := identity.BuildKeySet("you@x.com", "uid1")
	sum := ComputeBalances(ledgerFixture(), you, identity.BuildKeySet("partner@y.com"))

	if got := sum.You.Balance + sum.Partner.Balance; got != 0 {
		t.Errorf("balances sum to %d, want 0 (you %+v, partner %+v)", got, sum.You, sum.Partner)
	}

	var total int64
	for _, e := range ledgerFixture() {
		if e.Amount > 0 {
			total += int64(e.Amount)
		}
	}
	if got := sum.You.Gasto + sum.Partner.Gasto; got != total {
		t.Errorf("gasto sums to %d, want %d", got, total)
	}
	if got := sum.You.Aporto + sum.Partner.Aporto; got != total {
		t.Errorf("aporto sums to %d, want %d", got, total)
	}
}

func TestComputeBalances_OrderIndependent(t *testing.T) {
	you := identity.BuildKeySet("you@x.com", "uid1")
	forward := ledgerFixture()
	reversed := make([]models.Expense, len(forward))
	for i, e := range forward {
		reversed[len(forward)-1-i] = e
	}

	a := ComputeBalances(forward, you, nil)
	b := ComputeBalances(reversed, you, nil)
	if a.You != b.You || a.Partner != b.Partner {
		t.Errorf("order changed result: %+v/%+v vs %+v/%+v", a.You, a.Partner, b.You, b.Partner)
	}
}

func TestComputeBalances_DoesNotMutatePartnerKeys(t *testing.T) {
	partner := identity.BuildKeySet("partner@y.com")
	ComputeBalances([]models.Expense{
		{Amount: 10, PayerUID: "someone-else", Split: evenSplit("you@x.com", "other")},
	}, identity.BuildKeySet("you@x.com"), partner)

	if len(partner) != 1 {
		t.Errorf("input partner keys mutated: %v", partner.Sorted())
	}
}

func TestNetForUser_MatchesAggregator(t *testing.T) {
	you := identity.BuildKeySet("you@x.com", "uid1")

	var netSum int64
	for _, e := range ledgerFixture() {
		net := NetForUser(e, you)
		single := ComputeBalances([]models.Expense{e}, you, identity.KeySet{})
		if net != single.You.Balance {
			t.Errorf("expense %s: NetForUser = %d, aggregator = %d", e.ID, net, single.You.Balance)
		}
		netSum += net
	}

	all := ComputeBalances(ledgerFixture(), you, nil)
	if netSum != all.You.Balance {
		t.Errorf("sum of row nets = %d, want %d", netSum, all.You.Balance)
	}
}

func TestNetForUser(t *testing.T) {
	you := identity.BuildKeySet("you@x.com")
	e := models.Expense{Amount: 25000, PayerUID: "partner@y.com", Split: evenSplit("you@x.com", "partner@y.com")}

	if got := NetForUser(e, you); got != -12500 {
		t.Errorf("NetForUser() = %d, want -12500", got)
	}
	e.PayerUID = "YOU@x.com"
	if got := NetForUser(e, you); got != 12500 {
		t.Errorf("NetForUser() = %d, want 12500", got)
	}
	e.Amount = 0
	if got := NetForUser(e, you); got != 0 {
		t.Errorf("NetForUser() = %d, want 0", got)
	}
}

func TestSuggestTransfer(t *testing.T) {
	tests := []struct {
		name       string
		youBalance int64
		want       *Transfer
	}{
		{"partner owes you", 12500, &Transfer{From: PartyPartner, To: PartyYou, Amount: 12500}},
		{"you owe partner", -300, &Transfer{From: PartyYou, To: PartyPartner, Amount: 300}},
		{"even", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestTransfer(Summary{You: PartyTotals{Balance: tt.youBalance}})
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("SuggestTransfer() = %+v, want %+v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("SuggestTransfer() = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}
