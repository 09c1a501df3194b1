package calculator

import (
	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

// Party labels used in summaries and transfers.
const (
	PartyYou     = "you"
	PartyPartner = "partner"
)

// PartyTotals is the aggregate position of one party.
type PartyTotals struct {
	Gasto   int64 `json:"gasto"`   // share of cost attributed to the party
	Aporto  int64 `json:"aporto"`  // amount actually paid by the party
	Balance int64 `json:"balance"` // Aporto - Gasto; positive = owed money
}

// Summary is the per-party result of folding a set of expenses.
type Summary struct {
	You     PartyTotals `json:"you"`
	Partner PartyTotals `json:"partner"`

	// PartnerKeys is the partner key set passed in, widened with every counterpart
	// identifier observed in payers and split entries.
	PartnerKeys identity.KeySet `json:"-"`
}

// Transfer is the single payment that would settle a two-party summary.
type Transfer struct {
	From   string `json:"from"` // party who owes
	To     string `json:"to"`   // party who is owed
	Amount int64  `json:"amount"`
}

// ComputeBalances folds expenses into per-party totals.
//
// Algorithm:
//   - Expenses with a non-positive amount contribute nothing
//   - Your share comes from the normalized split ratio; the counterpart gets the rest
//   - The payer's full amount counts as aporto for you when the payer is in youKeys,
//     otherwise for the partner when a payer is recorded at all
//   - balance = aporto - gasto
//
// Every split entry and payer not in youKeys is treated as the partner. partnerKeys is
// not modified; the widened set is returned in Summary.PartnerKeys. All arithmetic is in
// integer units, so the result does not depend on input order.
func ComputeBalances(expenses []models.Expense, youKeys, partnerKeys identity.KeySet) Summary {
	sum := Summary{PartnerKeys: partnerKeys.Clone()}

	for _, e := range expenses {
		amount := int64(e.Amount)
		if amount <= 0 {
			continue
		}

		for _, entry := range e.Split {
			if !youKeys.Matches(entry.UIDOrEmail) {
				sum.PartnerKeys.Add(identity.NormalizeKey(entry.UIDOrEmail))
			}
		}

		shares := ExpenseShares(e, youKeys)
		sum.You.Gasto += shares.Party
		sum.Partner.Gasto += shares.Counterpart

		payer := identity.NormalizeKey(e.PayerUID)
		switch {
		case youKeys.Has(payer):
			sum.You.Aporto += amount
		case payer != "":
			sum.Partner.Aporto += amount
			sum.PartnerKeys.Add(payer)
		}
	}

	sum.You.Balance = sum.You.Aporto - sum.You.Gasto
	sum.Partner.Balance = sum.Partner.Aporto - sum.Partner.Gasto
	return sum
}

// NetForUser is your position on a single expense: the full amount if you paid it, minus
// your share. It equals your balance from ComputeBalances over just this expense.
func NetForUser(e models.Expense, youKeys identity.KeySet) int64 {
	amount := int64(e.Amount)
	if amount <= 0 {
		return 0
	}
	var paid int64
	if youKeys.Matches(e.PayerUID) {
		paid = amount
	}
	return paid - ExpenseShares(e, youKeys).Party
}

// SuggestTransfer returns the payment that settles the summary, or nil when even.
// Your balance is authoritative: it is exact even when some payers were unrecorded.
func SuggestTransfer(sum Summary) *Transfer {
	switch {
	case sum.You.Balance > 0:
		return &Transfer{From: PartyPartner, To: PartyYou, Amount: sum.You.Balance}
	case sum.You.Balance < 0:
		return &Transfer{From: PartyYou, To: PartyPartner, Amount: -sum.You.Balance}
	default:
		return nil
	}
}
