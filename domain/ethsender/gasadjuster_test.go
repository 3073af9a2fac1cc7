package ethsender

import (
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

type fixedSuggester struct {
	price externalapi.Amount
}

func (f fixedSuggester) SuggestGasPrice() (externalapi.Amount, error) {
	return f.price, nil
}

// TestSupplementPriceExceedsLastPrice covers seed scenario 6's core
// assertion: a supplement's gas price must be strictly greater than the
// price it replaces, even when the chain's own suggestion has not moved.
func TestSupplementPriceExceedsLastPrice(t *testing.T) {
	adjuster := NewGasAdjuster(fixedSuggester{price: externalapi.AmountFromUint64(10)})

	last := externalapi.AmountFromUint64(10)
	next, err := adjuster.SupplementPrice(last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.GreaterThan(last) {
		t.Fatalf("expected supplement price %s to exceed last price %s", next, last)
	}
}

// TestSupplementPriceExceedsLastPriceForSmallValues covers the integer
// truncation edge case: price*110/100 rounds back down to price itself
// for any price below 10, so the bump alone cannot be trusted to clear
// the chain's minimum-replacement rule at small values.
func TestSupplementPriceExceedsLastPriceForSmallValues(t *testing.T) {
	for _, v := range []uint64{1, 2, 5, 9} {
		adjuster := NewGasAdjuster(fixedSuggester{price: externalapi.AmountFromUint64(v)})
		last := externalapi.AmountFromUint64(v)
		next, err := adjuster.SupplementPrice(last)
		if err != nil {
			t.Fatalf("unexpected error for lastPrice=%d: %v", v, err)
		}
		if !next.GreaterThan(last) {
			t.Fatalf("expected supplement price %s to exceed last price %s (lastPrice=%d)", next, last, v)
		}
	}
}

// TestSupplementPriceFollowsSuggestionWhenHigher ensures the adjuster
// never undercuts a rising chain-suggested price just because the bumped
// last price would also clear it.
func TestSupplementPriceFollowsSuggestionWhenHigher(t *testing.T) {
	adjuster := NewGasAdjuster(fixedSuggester{price: externalapi.AmountFromUint64(1000)})

	last := externalapi.AmountFromUint64(10)
	next, err := adjuster.SupplementPrice(last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Cmp(externalapi.AmountFromUint64(1000)) != 0 {
		t.Fatalf("expected suggested price 1000 to win, got %s", next)
	}
}
