package agents

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/entropy"
)

// ErrUnknownStrategy reports a strategy or style id outside 1–5.
var ErrUnknownStrategy = errors.New("unknown strategy")

// BuyerStrategy selects how a buyer moves its offer between rounds.
type BuyerStrategy int

const (
	BuyerStepwise   BuyerStrategy = iota + 1 // Fixed increment each round
	BuyerCompromise                          // Split the difference with the seller
	BuyerAggressive                          // Lowball, then small raises
	BuyerMirror                              // Match the seller's relative concession
	BuyerUltimatum                           // One offer, never moved
)

var buyerNames = [...]string{"", "step-wise", "compromise", "aggressive", "mirror", "ultimatum"}

// buyerOpening is the first offer as a fraction of the target price.
var buyerOpening = [...][2]float64{
	BuyerStepwise:   {0.60, 0.80},
	BuyerCompromise: {0.50, 0.70},
	BuyerAggressive: {0.10, 0.20},
	BuyerMirror:     {0.60, 0.80},
	BuyerUltimatum:  {0.80, 0.95},
}

func (s BuyerStrategy) String() string {
	if s.Valid() {
		return buyerNames[s]
	}
	return fmt.Sprintf("buyer-strategy(%d)", int(s))
}

func (s BuyerStrategy) Valid() bool { return s >= BuyerStepwise && s <= BuyerUltimatum }

// Check returns ErrUnknownStrategy for ids outside the table.
func (s BuyerStrategy) Check() error {
	if !s.Valid() {
		return fmt.Errorf("%w: buyer %d", ErrUnknownStrategy, int(s))
	}
	return nil
}

// BuyerMove is what a buyer knows about one negotiation when it prices its next offer.
type BuyerMove struct {
	Target     float64 // Buyer's ceiling
	PrevOwn    float64 // Buyer's previous offer
	Step       float64 // Step-wise increment fixed at the opening
	PrevSeller float64 // Seller offer before the current one
	Seller     float64 // Seller's standing offer
}

// Opening returns the first offer against a seller quoting m.Seller.
func (s BuyerStrategy) Opening(m BuyerMove, rng *entropy.Stream) float64 {
	r := buyerOpening[BuyerStepwise]
	if s.Valid() {
		r = buyerOpening[s]
	}
	return capOffer(m.Target*rng.Uniform(r[0], r[1]), m)
}

// Counter returns the next offer after the opening.
func (s BuyerStrategy) Counter(m BuyerMove, rng *entropy.Stream) float64 {
	var next float64
	switch s {
	case BuyerStepwise:
		next = m.PrevOwn + m.Step
	case BuyerCompromise:
		next = m.PrevOwn + (m.Seller-m.PrevOwn)/2
	case BuyerAggressive:
		next = m.PrevOwn * rng.Uniform(1.05, 1.10)
	case BuyerMirror:
		next = m.PrevOwn
		if m.Seller > 0 && m.PrevSeller > 0 {
			next = m.PrevOwn * (m.PrevSeller / m.Seller)
		}
	default:
		next = m.PrevOwn
	}
	return capOffer(next, m)
}

// capOffer keeps a buyer offer at or below its target and, when a seller offer
// stands, at or below that offer too. An opening drawn above a low quote
// therefore lands on the quote, and a seller accepting it closes at the quote.
func capOffer(v float64, m BuyerMove) float64 {
	v = catalog.RoundCents(v)
	v = math.Min(v, m.Target)
	if m.Seller > 0 {
		v = math.Min(v, m.Seller)
	}
	return v
}

// SellerStyle selects how a seller concedes from its quote toward its floor.
type SellerStyle int

const (
	SellerStepwise   SellerStyle = iota + 1 // Equal steps down to the floor
	SellerCompromise                        // Split the difference with the buyer
	SellerAggressive                        // Random 5–10% cuts
	SellerMirror                            // Match the buyer's relative move
	SellerUltimatum                         // Quote never moves
)

var sellerNames = [...]string{"", "step-wise", "compromise", "aggressive", "mirror", "ultimatum"}

// sellerMarkup is the quote range per style, in per-mille of the listing price.
var sellerMarkup = [...][2]int{
	SellerStepwise:   {1300, 1500},
	SellerCompromise: {1200, 1400},
	SellerAggressive: {1800, 2200},
	SellerMirror:     {1150, 1350},
	SellerUltimatum:  {1050, 1200},
}

func (s SellerStyle) String() string {
	if s.Valid() {
		return sellerNames[s]
	}
	return fmt.Sprintf("seller-style(%d)", int(s))
}

func (s SellerStyle) Valid() bool { return s >= SellerStepwise && s <= SellerUltimatum }

// Check returns ErrUnknownStrategy for ids outside the table.
func (s SellerStyle) Check() error {
	if !s.Valid() {
		return fmt.Errorf("%w: seller %d", ErrUnknownStrategy, int(s))
	}
	return nil
}

// Markup returns the style's quote range in per-mille.
func (s SellerStyle) Markup() (lo, hi int) {
	r := sellerMarkup[SellerStepwise]
	if s.Valid() {
		r = sellerMarkup[s]
	}
	return r[0], r[1]
}

// Quote prices a matched entry. The result never drops below the listing price.
func (s SellerStyle) Quote(price float64, rng *entropy.Stream) float64 {
	lo, hi := s.Markup()
	return math.Max(price, catalog.RoundCents(price*rng.PerMille(lo, hi)))
}

// SellerMove is what a seller knows about one negotiation when it prices its counter.
type SellerMove struct {
	Floor     float64 // Matched entry's listing price
	PrevQuote float64 // Seller's standing offer
	Step      float64 // Step-wise decrement fixed at the quote
	PrevBuyer float64 // Buyer offer before the current one (0 on the first)
	Buyer     float64 // Buyer's current offer
}

// Counter returns the seller's next offer, never below the floor.
func (s SellerStyle) Counter(m SellerMove, rng *entropy.Stream) float64 {
	var next float64
	switch s {
	case SellerStepwise:
		next = m.PrevQuote - m.Step
	case SellerCompromise:
		next = m.PrevQuote - (m.PrevQuote-m.Buyer)/2
	case SellerAggressive:
		next = m.PrevQuote * rng.Uniform(0.90, 0.95)
	case SellerMirror:
		if m.PrevBuyer == 0 || m.Buyer == 0 {
			next = m.PrevQuote * 0.95
		} else {
			next = m.PrevQuote * (m.PrevBuyer / m.Buyer)
		}
	default:
		next = m.PrevQuote
	}
	return math.Max(catalog.RoundCents(next), m.Floor)
}

// StepFor returns the step-wise decrement for a fresh quote.
func StepFor(quote, floor float64, maxRounds int) float64 {
	if maxRounds < 1 {
		return 0
	}
	return (quote - floor) / float64(maxRounds)
}
