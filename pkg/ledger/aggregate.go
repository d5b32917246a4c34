package ledger

import "github.com/shopspring/decimal"

// Aggregate is a tutor's running rating: the sum of current opinion scores and their number.
type Aggregate struct {
	Sum   decimal.Decimal `json:"sum"`
	Count int64           `json:"count"`
}

// Delta is the change an opinion write applies to an Aggregate.
type Delta struct {
	Sum   decimal.Decimal
	Count int64
}

// Add accounts for a first opinion on an enrollment.
func (a Aggregate) Add(score int) (Aggregate, Delta) {
	d := Delta{Sum: decimal.NewFromInt(int64(score)), Count: 1}
	return a.apply(d), d
}

// Revise accounts for a changed score on an enrollment that already had one.
func (a Aggregate) Revise(previous, next int) (Aggregate, Delta) {
	d := Delta{Sum: decimal.NewFromInt(int64(next - previous))}
	return a.apply(d), d
}

func (a Aggregate) apply(d Delta) Aggregate {
	return Aggregate{Sum: a.Sum.Add(d.Sum), Count: a.Count + d.Count}
}

// Average returns Sum/Count rounded to two places, and false when there are no opinions.
func (a Aggregate) Average() (decimal.Decimal, bool) {
	if a.Count <= 0 {
		return decimal.Zero, false
	}
	return a.Sum.DivRound(decimal.NewFromInt(a.Count), 2), true
}
