package ethsender

import "github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"

// bumpNumerator/bumpDenominator set the minimum relative increase a
// supplement's gas price must clear over the price it replaces (spec.md
// §4.7 step 5: "higher gas price (adjuster enforces a bound relative to
// prior)"), mirroring domain/txpool/mempool's strict-greater-than
// replacement-by-fee rule but expressed as a percentage bump rather than
// a bare inequality, since a supplement must clear the anchor chain's own
// minimum-replacement-bump rule, not just beat the old price by any
// nonzero amount.
const (
	bumpNumerator   = 110
	bumpDenominator = 100
)

// GasAdjuster tracks the anchor chain's current suggested price and
// enforces the minimum bump a stuck row's supplement must clear over its
// own last price (spec.md §4.7).
type GasAdjuster struct {
	client suggester
}

type suggester interface {
	SuggestGasPrice() (externalapi.Amount, error)
}

// NewGasAdjuster returns an adjuster reading its floor from client.
func NewGasAdjuster(client suggester) *GasAdjuster {
	return &GasAdjuster{client: client}
}

// InitialPrice returns the price a brand-new row should be sent at: the
// anchor chain's current suggestion.
func (a *GasAdjuster) InitialPrice() (externalapi.Amount, error) {
	return a.client.SuggestGasPrice()
}

// SupplementPrice returns the price a stuck row's supplement must use:
// the greater of the chain's current suggestion and lastPrice bumped by
// bumpNumerator/bumpDenominator, so a supplement always strictly exceeds
// what it replaces even when the chain's own suggestion has not moved.
func (a *GasAdjuster) SupplementPrice(lastPrice externalapi.Amount) (externalapi.Amount, error) {
	suggested, err := a.client.SuggestGasPrice()
	if err != nil {
		return externalapi.ZeroAmount(), err
	}
	bumped := bump(lastPrice)
	if bumped.GreaterThan(suggested) {
		return bumped, nil
	}
	return suggested, nil
}

// bump returns a price strictly greater than price. Integer division on
// price*110/100 rounds down to price itself for any price below
// bumpDenominator/(bumpNumerator-bumpDenominator), so the percentage bump
// alone cannot be trusted to clear the chain's minimum-replacement rule;
// a price+1 floor keeps the guarantee for every input.
func bump(price externalapi.Amount) externalapi.Amount {
	numerator := externalapi.AmountFromUint64(bumpNumerator)
	denominator := externalapi.AmountFromUint64(bumpDenominator)
	bumped := price.Mul(numerator).Div(denominator)
	floor := price.Add(externalapi.AmountFromUint64(1))
	if floor.GreaterThan(bumped) {
		return floor
	}
	return bumped
}
