package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/haggle/internal/entropy"
)

func TestBuyerOpeningRanges(t *testing.T) {
	rng := entropy.NewStream(1)
	tests := []struct {
		strategy BuyerStrategy
		lo, hi   float64
	}{
		{BuyerStepwise, 0.60, 0.80},
		{BuyerCompromise, 0.50, 0.70},
		{BuyerAggressive, 0.10, 0.20},
		{BuyerMirror, 0.60, 0.80},
		{BuyerUltimatum, 0.80, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			for i := 0; i < 200; i++ {
				got := tt.strategy.Opening(BuyerMove{Target: 20000, Seller: 50000}, rng)
				assert.GreaterOrEqual(t, got, 20000*tt.lo-0.01)
				assert.LessOrEqual(t, got, 20000*tt.hi+0.01)
			}
		})
	}
}

func TestBuyerCounterRules(t *testing.T) {
	rng := entropy.NewStream(2)
	move := BuyerMove{Target: 20000, PrevOwn: 10000, Step: 2000, PrevSeller: 19000, Seller: 18000}

	assert.Equal(t, 12000.0, BuyerStepwise.Counter(move, rng))
	assert.Equal(t, 14000.0, BuyerCompromise.Counter(move, rng))
	assert.Equal(t, 10555.56, BuyerMirror.Counter(move, rng))
	assert.Equal(t, 10000.0, BuyerUltimatum.Counter(move, rng))

	got := BuyerAggressive.Counter(move, rng)
	assert.GreaterOrEqual(t, got, 10500.0)
	assert.LessOrEqual(t, got, 11000.0)
}

func TestBuyerCounterNeverExceedsTarget(t *testing.T) {
	rng := entropy.NewStream(3)
	move := BuyerMove{Target: 20000, PrevOwn: 19500, Step: 3000, PrevSeller: 40000, Seller: 30000}
	for s := BuyerStepwise; s <= BuyerUltimatum; s++ {
		for i := 0; i < 50; i++ {
			assert.LessOrEqual(t, s.Counter(move, rng), 20000.0, s.String())
		}
	}
	// Cap is idempotent.
	capped := capOffer(25000, move)
	assert.Equal(t, capped, capOffer(capped, move))
}

func TestBuyerCounterNeverExceedsSellerOffer(t *testing.T) {
	rng := entropy.NewStream(4)
	move := BuyerMove{Target: 20000, PrevOwn: 16000, Step: 3000, PrevSeller: 18000, Seller: 17000}
	assert.Equal(t, 17000.0, BuyerStepwise.Counter(move, rng))
	// Ultimatum opens at 16000..19000, above the 15000 quote.
	assert.Equal(t, 15000.0, BuyerUltimatum.Opening(BuyerMove{Target: 20000, Seller: 15000}, rng))
}

func TestSellerQuoteRanges(t *testing.T) {
	rng := entropy.NewStream(5)
	for s := SellerStepwise; s <= SellerUltimatum; s++ {
		lo, hi := s.Markup()
		for i := 0; i < 200; i++ {
			q := s.Quote(15000, rng)
			assert.GreaterOrEqual(t, q, 15000*float64(lo)/1000-0.01, s.String())
			assert.LessOrEqual(t, q, 15000*float64(hi)/1000+0.01, s.String())
		}
	}
	lo, hi := SellerCompromise.Markup()
	assert.Equal(t, 1200, lo)
	assert.Equal(t, 1400, hi)
}

func TestSellerMarkupRangesAreDistinct(t *testing.T) {
	seen := map[[2]int]SellerStyle{}
	for s := SellerStepwise; s <= SellerUltimatum; s++ {
		lo, hi := s.Markup()
		_, dup := seen[[2]int{lo, hi}]
		assert.False(t, dup, s.String())
		seen[[2]int{lo, hi}] = s
	}
}

func TestSellerCounterRules(t *testing.T) {
	rng := entropy.NewStream(6)
	move := SellerMove{Floor: 15000, PrevQuote: 20000, Step: 1000, PrevBuyer: 10000, Buyer: 12500}

	assert.Equal(t, 19000.0, SellerStepwise.Counter(move, rng))
	assert.Equal(t, 16250.0, SellerCompromise.Counter(move, rng))
	assert.Equal(t, 16000.0, SellerMirror.Counter(move, rng))
	assert.Equal(t, 20000.0, SellerUltimatum.Counter(move, rng))

	got := SellerAggressive.Counter(move, rng)
	assert.GreaterOrEqual(t, got, 18000.0)
	assert.LessOrEqual(t, got, 19000.0)

	first := move
	first.PrevBuyer = 0
	assert.Equal(t, 19000.0, SellerMirror.Counter(first, rng))
}

func TestSellerCounterNeverBelowFloor(t *testing.T) {
	rng := entropy.NewStream(7)
	move := SellerMove{Floor: 15000, PrevQuote: 15200, Step: 5000, PrevBuyer: 1000, Buyer: 5000}
	for s := SellerStepwise; s <= SellerUltimatum; s++ {
		for i := 0; i < 50; i++ {
			assert.GreaterOrEqual(t, s.Counter(move, rng), 15000.0, s.String())
		}
	}
}

func TestStepFor(t *testing.T) {
	assert.Equal(t, 1000.0, StepFor(20000, 15000, 5))
	assert.Equal(t, 0.0, StepFor(20000, 15000, 0))
}

func TestStrategyValidation(t *testing.T) {
	assert.NoError(t, BuyerMirror.Check())
	assert.ErrorIs(t, BuyerStrategy(0).Check(), ErrUnknownStrategy)
	assert.ErrorIs(t, BuyerStrategy(6).Check(), ErrUnknownStrategy)
	assert.NoError(t, SellerUltimatum.Check())
	assert.ErrorIs(t, SellerStyle(9).Check(), ErrUnknownStrategy)
	assert.Equal(t, "compromise", BuyerCompromise.String())
	assert.Equal(t, "seller-style(9)", SellerStyle(9).String())
}

// Compromise against compromise closes the gap every round.
func TestCompromiseNarrowsGap(t *testing.T) {
	rng := entropy.NewStream(8)
	const target, floor = 20000.0, 15000.0

	quote := SellerCompromise.Quote(floor, rng)
	assert.GreaterOrEqual(t, quote, 18000.0)
	assert.LessOrEqual(t, quote, 21000.0)

	buyer := BuyerCompromise.Opening(BuyerMove{Target: target, Seller: quote}, rng)
	assert.GreaterOrEqual(t, buyer, 10000.0)
	assert.LessOrEqual(t, buyer, 14000.0)

	gap := quote - buyer
	prevBuyer := 0.0
	for round := 0; round < 4 && gap > 0; round++ {
		quote = SellerCompromise.Counter(SellerMove{Floor: floor, PrevQuote: quote, PrevBuyer: prevBuyer, Buyer: buyer}, rng)
		prevBuyer = buyer
		buyer = BuyerCompromise.Counter(BuyerMove{Target: target, PrevOwn: buyer, Seller: quote}, rng)

		next := quote - buyer
		assert.Less(t, next, gap)
		gap = next
	}
}
