package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

var (
	one  = decimal.NewFromInt(1)
	half = decimal.NewFromFloat(0.5)
)

// shareRounding absorbs float noise (0.1+0.2 style) before a share is floored.
const shareRounding = 6

// Ratios is the result of scanning a split for one party.
type Ratios struct {
	// Party is the sum of usable ratios whose identifier belongs to the party.
	Party decimal.Decimal
	// Total is the sum of every usable ratio in the split.
	Total decimal.Decimal
}

// ResolveRatios sums the usable ratios that belong to party and, separately, all usable
// ratios. Zero, negative and non-finite ratios are treated as absent.
func ResolveRatios(split []models.SplitEntry, party identity.KeySet) Ratios {
	r := Ratios{Party: decimal.Zero, Total: decimal.Zero}
	for _, entry := range split {
		if !entry.Ratio.Usable() {
			continue
		}
		ratio := decimal.NewFromFloat(float64(entry.Ratio))
		r.Total = r.Total.Add(ratio)
		if party.Matches(entry.UIDOrEmail) {
			r.Party = r.Party.Add(ratio)
		}
	}
	return r
}

// Normalized returns the party's fraction of the expense in [0, 1].
//
// With no usable ratios the expense splits evenly. When only one side appears in the
// split, the other side gets the complement of the known ratio. When both sides appear,
// the party ratio is scaled by 1/Total so splits that do not sum to exactly 1 still
// allocate the whole amount.
func (r Ratios) Normalized() decimal.Decimal {
	counterpart := r.Total.Sub(r.Party)
	switch {
	case !r.Total.IsPositive():
		return half
	case !counterpart.IsPositive():
		return clampUnit(r.Party)
	case !r.Party.IsPositive():
		return one.Sub(clampUnit(r.Total))
	default:
		return clampUnit(r.Party.Div(r.Total))
	}
}

func clampUnit(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(one) {
		return one
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Shares is how one amount divides between the primary party and its counterpart.
// Party + Counterpart always equals the amount.
type Shares struct {
	Party       int64
	Counterpart int64
}

// SplitAmount allocates amount by ratio. The primary party's share is rounded down and
// any remainder goes to the counterpart, so no currency unit is lost.
func SplitAmount(amount int64, ratio decimal.Decimal) Shares {
	if amount <= 0 {
		return Shares{}
	}
	party := decimal.NewFromInt(amount).Mul(clampUnit(ratio)).Round(shareRounding).Floor().IntPart()
	if party > amount {
		party = amount
	}
	if party < 0 {
		party = 0
	}
	return Shares{Party: party, Counterpart: amount - party}
}

// ExpenseShares resolves and allocates a single expense for the party identified by keys.
func ExpenseShares(e models.Expense, keys identity.KeySet) Shares {
	return SplitAmount(int64(e.Amount), ResolveRatios(e.Split, keys).Normalized())
}
