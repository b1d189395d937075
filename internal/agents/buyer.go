package agents

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/mailbox"
	"github.com/talgya/haggle/internal/protocol"
	"github.com/talgya/haggle/internal/scheduler"
)

// obligationGap is the largest distance from target, as a share of target,
// a buyer tolerates at the obligatory round.
const obligationGap = 0.2

// acceptRatio bounds how far above the buyer's last offer an acceptable
// seller offer may sit.
const acceptRatio = 1.2

// BuyerConfig describes one buyer at setup.
type BuyerConfig struct {
	ID          int
	Request     catalog.Entry // What the buyer searches for
	TargetPrice float64       // Ceiling the buyer will counter up to
	Strategy    BuyerStrategy
}

// Purchase is a buyer's finalized outcome. Price 0 means no deal.
type Purchase struct {
	Seller int           `json:"seller"` // -1 without a deal
	Entry  catalog.Entry `json:"entry"`
	Price  float64       `json:"price"`
	Rounds int           `json:"rounds"`
}

// Deal reports whether the purchase closed.
func (p Purchase) Deal() bool { return p.Price != 0 }

// track is the buyer's bookkeeping for one seller in the active set.
type track struct {
	seller     int
	entry      catalog.Entry
	prevOwn    float64 // -1 before the opening offer
	prevSeller float64
	step       float64
	rounds     int
	final      float64 // Seller offer the buyer marked as acceptable
}

// Buyer negotiates one purchase against every seller.
type Buyer struct {
	BuyerConfig

	env   Env
	me    protocol.AgentRef
	boxes []*mailbox.Mailbox // indexed by seller

	mu       sync.Mutex
	state    State
	purchase Purchase
	accepted mapset.Set // seller ids marked acceptable
	broken   mapset.Set // seller ids the buyer walked away from
}

// NewBuyer creates a buyer owning one mailbox per seller.
func NewBuyer(cfg BuyerConfig, boxes []*mailbox.Mailbox, env Env) *Buyer {
	return &Buyer{
		BuyerConfig: cfg,
		env:         env,
		me:          protocol.Buyer(cfg.ID),
		boxes:       boxes,
		purchase:    Purchase{Seller: -1},
		accepted:    mapset.NewSet(),
		broken:      mapset.NewSet(),
	}
}

// State returns where the buyer is in its negotiation.
func (b *Buyer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Buyer) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
	slog.Debug("buyer state", "buyer", b.ID, "state", s)
}

// Purchase returns the finalized outcome; valid once the buyer is done.
func (b *Buyer) Purchase() Purchase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.purchase
}

// Accepted returns the sellers whose offers the buyer found acceptable.
func (b *Buyer) Accepted() []int { return sortedIDs(b.accepted) }

// BrokenDown returns the sellers the buyer broke negotiations off with.
func (b *Buyer) BrokenDown() []int { return sortedIDs(b.broken) }

// Run blocks until the buyer is released, negotiates, and passes the turn on
// to the next buyer.
func (b *Buyer) Run() error {
	ok, err := b.env.Sched.Wait(b.me)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	// Sellers still settling a previous buyer's rejections must finish
	// before this search goes down the chain.
	if err := b.env.Sched.AwaitSellersIdle(); err != nil {
		return err
	}

	b.setState(StateSearching)
	if err := b.search(); err != nil {
		return fmt.Errorf("buyer %d search: %w", b.ID, err)
	}

	b.setState(StateRanking)
	active, err := b.rank()
	if err != nil {
		return fmt.Errorf("buyer %d rank: %w", b.ID, err)
	}

	b.setState(StateNegotiating)
	accepted, err := b.negotiate(active)
	if err != nil {
		return fmt.Errorf("buyer %d negotiate: %w", b.ID, err)
	}

	b.setState(StateFinalizing)
	if err := b.finalize(accepted); err != nil {
		return fmt.Errorf("buyer %d finalize: %w", b.ID, err)
	}
	b.setState(StateDone)

	if next := b.ID + 1; next < b.env.Sched.Buyers() {
		return b.env.Sched.Handoff(b.me, protocol.Buyer(next))
	}
	return b.env.Sched.Yield(b.me)
}

func (b *Buyer) message(seller int, intent mailbox.Intent, amount float64, note string, entry catalog.Entry) *mailbox.Message {
	return mailbox.NewMessage(b.me, protocol.Seller(seller), intent, amount, note, entry)
}

// exchange posts m to the seller and trades turns with it.
func (b *Buyer) exchange(seller int, m *mailbox.Message) error {
	post(b.env, b.boxes[seller], m)
	return b.turn(protocol.Seller(seller))
}

// turn hands the turn to a seller and blocks until some seller hands it back.
func (b *Buyer) turn(to protocol.AgentRef) error {
	if err := b.env.Sched.Handoff(b.me, to); err != nil {
		return err
	}
	ok, err := b.env.Sched.Wait(b.me)
	if err != nil {
		return err
	}
	if !ok {
		return scheduler.ErrAborted
	}
	return nil
}

// search broadcasts the request and starts the seller chain at seller 0.
func (b *Buyer) search() error {
	for s, box := range b.boxes {
		post(b.env, box, b.message(s, mailbox.IntentSearch, 0, "", b.Request))
	}
	slog.Info("buyer searching",
		"buyer", b.ID,
		"brand", b.Request.Vehicle.Brand,
		"model", b.Request.Vehicle.Model,
		"target", b.TargetPrice,
		"strategy", b.Strategy,
	)
	// Sellers relay the search down the chain; the last one hands back.
	return b.turn(protocol.Seller(0))
}

// rank keeps the cheapest quotes and rejects the other quoting sellers.
func (b *Buyer) rank() ([]*track, error) {
	var quotes []*track
	for s, box := range b.boxes {
		last, err := box.Last()
		if err != nil {
			fault(b.env, b.me, err)
			continue
		}
		if !last.IsOffer() {
			continue
		}
		quotes = append(quotes, &track{
			seller:     s,
			entry:      last.Entry(),
			prevOwn:    -1,
			prevSeller: last.Amount(),
		})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].prevSeller < quotes[j].prevSeller
	})

	keep := b.env.Proto.MaxConcurrent
	if keep > len(quotes) {
		keep = len(quotes)
	}
	for _, t := range quotes[keep:] {
		post(b.env, b.boxes[t.seller], b.message(t.seller, mailbox.IntentBreakdown, 0, "not shortlisted", t.entry))
		b.broken.Add(t.seller)
		if err := b.env.Sched.Notify(protocol.Seller(t.seller)); err != nil {
			return nil, err
		}
	}

	slog.Info("buyer ranked quotes", "buyer", b.ID, "quotes", len(quotes), "kept", keep)
	return quotes[:keep], nil
}

// negotiate runs the opening round and then the decision table until every
// seller is either accepted or broken down. It returns the accepted tracks.
func (b *Buyer) negotiate(active []*track) ([]*track, error) {
	maxRounds := b.env.Proto.MaxRounds

	// Round 1: an opening offer to every kept seller, in ranking order.
	for _, t := range active {
		move := BuyerMove{Target: b.TargetPrice, Seller: t.prevSeller}
		offer := b.Strategy.Opening(move, b.env.Rand)
		t.step = (b.TargetPrice - offer) / float64(maxRounds)
		t.prevOwn = offer
		t.rounds = 1
		if err := b.exchange(t.seller, b.message(t.seller, mailbox.IntentOffer, offer, "", t.entry)); err != nil {
			return nil, err
		}
	}

	var accepted []*track
	for round := 2; len(active) > 0; round++ {
		var still []*track
		for _, t := range active {
			last, err := b.boxes[t.seller].Last()
			if err != nil {
				fault(b.env, b.me, err)
				b.broken.Add(t.seller)
				continue
			}
			t.rounds = round

			switch decide(b.env.Proto, round, b.TargetPrice, t.prevOwn, t.prevSeller, last) {
			case actCounter:
				move := BuyerMove{
					Target:     b.TargetPrice,
					PrevOwn:    t.prevOwn,
					Step:       t.step,
					PrevSeller: t.prevSeller,
					Seller:     last.Amount(),
				}
				offer := b.Strategy.Counter(move, b.env.Rand)
				t.prevSeller = last.Amount()
				t.prevOwn = offer
				if err := b.exchange(t.seller, b.message(t.seller, mailbox.IntentOffer, offer, "", t.entry)); err != nil {
					return nil, err
				}
				still = append(still, t)

			case actAccept:
				t.final = last.Amount()
				if e := last.Entry(); e.ID != 0 {
					t.entry = e
				}
				b.accepted.Add(t.seller)
				accepted = append(accepted, t)
				slog.Info("buyer accepts offer", "buyer", b.ID, "seller", t.seller, "round", round, "price", t.final)

			default:
				b.broken.Add(t.seller)
				b.env.Metrics.Closed(round)
				slog.Info("buyer breaks down", "buyer", b.ID, "seller", t.seller, "round", round, "seller_offer", last.Amount())
				if err := b.exchange(t.seller, b.message(t.seller, mailbox.IntentBreakdown, 0, "", t.entry)); err != nil {
					return nil, err
				}
			}
		}
		active = still
	}
	return accepted, nil
}

type action uint8

const (
	actBreakdown action = iota
	actCounter
	actAccept
)

// decide applies the buyer's decision table to the seller's latest message,
// checking the rows in order.
func decide(p *protocol.Protocol, round int, target, prevOwn, prevSeller float64, last *mailbox.Message) action {
	amount := last.Amount()
	isOffer := last.Intent() == mailbox.IntentOffer
	changed := amount != prevSeller
	budget := round < p.MaxRounds

	switch {
	case round == p.ObligatoryRound && isOffer && changed && budget &&
		math.Abs(amount-target) > obligationGap*target:
		return actBreakdown
	case isOffer && changed && budget && amount > target:
		return actCounter
	case last.Intent() == mailbox.IntentAccept,
		round >= p.MaxRounds && round >= p.ObligatoryRound && isOffer,
		isOffer && acceptable(prevOwn, amount, target):
		return actAccept
	}
	return actBreakdown
}

// acceptable passes a seller offer at or under target that is not
// disproportionately above the buyer's own last offer.
func acceptable(prevOwn, offer, target float64) bool {
	if offer > target {
		return false
	}
	return prevOwn <= 0 || offer/prevOwn < acceptRatio
}

// finalize accepts the cheapest acceptable seller and breaks down the rest.
func (b *Buyer) finalize(accepted []*track) error {
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].final != accepted[j].final {
			return accepted[i].final < accepted[j].final
		}
		return accepted[i].seller < accepted[j].seller
	})

	for i, t := range accepted {
		b.env.Metrics.Closed(t.rounds)
		if i == 0 {
			if err := b.exchange(t.seller, b.message(t.seller, mailbox.IntentAccept, t.final, "", t.entry)); err != nil {
				return err
			}
			b.mu.Lock()
			b.purchase = Purchase{Seller: t.seller, Entry: t.entry, Price: t.final, Rounds: t.rounds}
			b.mu.Unlock()
			continue
		}
		if err := b.exchange(t.seller, b.message(t.seller, mailbox.IntentBreakdown, 0, "cheaper offer accepted", t.entry)); err != nil {
			return err
		}
	}

	p := b.Purchase()
	b.env.Metrics.Outcome(p.Price)
	if p.Deal() {
		slog.Info("buyer purchased",
			"buyer", b.ID,
			"seller", p.Seller,
			"entry", p.Entry.ID,
			"price", p.Price,
			"rounds", p.Rounds,
		)
	} else {
		slog.Info("buyer left without a deal", "buyer", b.ID)
	}
	return nil
}

func sortedIDs(s mapset.Set) []int {
	ids := make([]int, 0, s.Cardinality())
	for _, v := range s.ToSlice() {
		ids = append(ids, v.(int))
	}
	sort.Ints(ids)
	return ids
}
