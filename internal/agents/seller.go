package agents

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/mailbox"
	"github.com/talgya/haggle/internal/protocol"
)

// settleWakeSize is the mailbox size above which a break-down is answered
// with a wake. Below it the buyer rejected a bare quote and is not waiting.
const settleWakeSize = 3

// SellerConfig describes one seller at setup.
type SellerConfig struct {
	ID      int
	Name    string
	Style   SellerStyle
	Karma   int // Messages/2 after which a break-down raises every price
	Catalog []catalog.Entry
}

// deal is the seller's state for one buyer it is negotiating with.
type deal struct {
	entry     catalog.Entry
	floor     float64
	quote     float64 // Standing offer
	step      float64
	prevBuyer float64 // 0 until the buyer's first offer
	rounds    int
}

// Seller answers searches from its catalog and negotiates with each buyer
// that shortlists it.
type Seller struct {
	ID    int
	Name  string
	Style SellerStyle
	Karma int

	env   Env
	me    protocol.AgentRef
	boxes []*mailbox.Mailbox // indexed by buyer

	// Only the seller's own goroutine mutates these; the lock covers
	// readers outside the session (API, reports).
	mu        sync.Mutex
	state     State
	catalog   []catalog.Entry
	deals     map[int]*deal
	seen      []int
	penalties int
}

// NewSeller creates a seller owning one mailbox per buyer.
func NewSeller(cfg SellerConfig, boxes []*mailbox.Mailbox, env Env) *Seller {
	inv := make([]catalog.Entry, len(cfg.Catalog))
	copy(inv, cfg.Catalog)
	s := &Seller{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Style:   cfg.Style,
		Karma:   cfg.Karma,
		env:     env,
		me:      protocol.Seller(cfg.ID),
		boxes:   boxes,
		catalog: inv,
		deals:   make(map[int]*deal),
		seen:    make([]int, len(boxes)),
	}
	env.Metrics.Catalog(cfg.ID, len(inv))
	return s
}

// Catalog returns a copy of the seller's current inventory.
func (s *Seller) Catalog() []catalog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Entry, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// RemoveEntry deletes the entry with the given id. It reports whether one was found.
func (s *Seller) RemoveEntry(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.catalog {
		if e.ID == id {
			s.catalog = append(s.catalog[:i], s.catalog[i+1:]...)
			s.env.Metrics.Catalog(s.ID, len(s.catalog))
			return true
		}
	}
	return false
}

// Penalties returns how many karma price raises the seller has applied.
func (s *Seller) Penalties() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.penalties
}

// State returns the seller's current phase.
func (s *Seller) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Seller) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run serves turns until the session terminates.
func (s *Seller) Run() error {
	for {
		s.setState(StateIdle)
		ok, err := s.env.Sched.Wait(s.me)
		if err != nil {
			return err
		}
		if !ok {
			s.setState(StateTerminated)
			slog.Debug("seller terminated", "seller", s.ID)
			return nil
		}

		wake, err := s.serve()
		if err != nil {
			return fmt.Errorf("seller %d: %w", s.ID, err)
		}
		if len(wake) == 0 {
			err = s.env.Sched.Yield(s.me)
		} else {
			err = s.env.Sched.Handoff(s.me, wake...)
		}
		if err != nil {
			return fmt.Errorf("seller %d: %w", s.ID, err)
		}
	}
}

// serve handles every mailbox holding a message the seller has not seen yet
// and returns who to hand the turn to.
func (s *Seller) serve() ([]protocol.AgentRef, error) {
	var wake []protocol.AgentRef
	for b, box := range s.boxes {
		if box.Size() <= s.seen[b] {
			continue
		}
		last, err := box.Last()
		if err != nil {
			fault(s.env, s.me, err)
			continue
		}

		var next *protocol.AgentRef
		switch last.Intent() {
		case mailbox.IntentSearch:
			next = s.onSearch(b, last)
		case mailbox.IntentOffer:
			next = s.onOffer(b, last)
		case mailbox.IntentBreakdown:
			next = s.onBreakdown(b, box.Size())
		case mailbox.IntentAccept:
			next = s.onAccept(b, last)
		}
		s.seen[b] = box.Size()
		if next != nil {
			wake = append(wake, *next)
		}
	}
	return wake, nil
}

func (s *Seller) reply(b int, intent mailbox.Intent, amount float64, note string, entry catalog.Entry) {
	m := mailbox.NewMessage(s.me, protocol.Buyer(b), intent, amount, note, entry)
	post(s.env, s.boxes[b], m)
}

// onSearch quotes the cheapest matching entry or relays a break-down, then
// passes the search on down the seller chain.
func (s *Seller) onSearch(b int, req *mailbox.Message) *protocol.AgentRef {
	s.setState(StateMatching)
	entry, ok := catalog.Match(s.Catalog(), req.Entry())

	s.setState(StateQuoting)
	if ok {
		quote := s.Style.Quote(entry.Price, s.env.Rand)
		s.deals[b] = &deal{
			entry: entry,
			floor: entry.Price,
			quote: quote,
			step:  StepFor(quote, entry.Price, s.env.Proto.MaxRounds),
		}
		s.reply(b, mailbox.IntentOffer, quote, "", entry)
		slog.Debug("seller quoted", "seller", s.ID, "buyer", b, "entry", entry.ID, "floor", entry.Price, "quote", quote)
	} else {
		s.reply(b, mailbox.IntentBreakdown, 0, "no match", req.Entry())
		slog.Debug("seller has no match", "seller", s.ID, "buyer", b)
	}

	next := protocol.Buyer(b)
	if s.ID+1 < s.env.Sched.Sellers() {
		next = protocol.Seller(s.ID + 1)
	}
	return &next
}

// onOffer accepts, counters or declares a stalemate.
func (s *Seller) onOffer(b int, m *mailbox.Message) *protocol.AgentRef {
	s.setState(StateQuoting)
	buyer := protocol.Buyer(b)
	d := s.deals[b]
	if d == nil {
		// An offer with no open deal cannot be priced; end the pair.
		fault(s.env, s.me, fmt.Errorf("offer from buyer %d without a quote", b))
		s.reply(b, mailbox.IntentBreakdown, 0, "no open negotiation", m.Entry())
		return &buyer
	}

	amount := m.Amount()
	d.rounds++
	switch {
	case d.prevBuyer != 0 && amount == d.prevBuyer:
		s.reply(b, mailbox.IntentBreakdown, 0, "stalemate", d.entry)
	case amount >= d.floor:
		s.reply(b, mailbox.IntentAccept, amount, "", d.entry)
	default:
		move := SellerMove{
			Floor:     d.floor,
			PrevQuote: d.quote,
			Step:      d.step,
			PrevBuyer: d.prevBuyer,
			Buyer:     amount,
		}
		d.quote = s.Style.Counter(move, s.env.Rand)
		s.reply(b, mailbox.IntentOffer, d.quote, "", d.entry)
	}
	d.prevBuyer = amount
	return &buyer
}

// onBreakdown settles a failed negotiation. Long failures cost every future
// buyer: the whole catalog gets more expensive.
func (s *Seller) onBreakdown(b, size int) *protocol.AgentRef {
	s.setState(StateSettling)
	if size/2 >= s.Karma {
		s.mu.Lock()
		catalog.RaisePrices(s.catalog, s.env.Proto.PenaltyPercent)
		s.penalties++
		s.mu.Unlock()
		s.env.Metrics.Karma(s.ID)
		slog.Info("seller karma penalty",
			"seller", s.ID,
			"buyer", b,
			"messages", size,
			"penalty_pct", s.env.Proto.PenaltyPercent,
		)
	}
	delete(s.deals, b)

	if size <= settleWakeSize {
		return nil
	}
	buyer := protocol.Buyer(b)
	return &buyer
}

// onAccept closes the deal and wakes the buyer.
func (s *Seller) onAccept(b int, m *mailbox.Message) *protocol.AgentRef {
	s.setState(StateSettling)
	if d := s.deals[b]; d != nil {
		slog.Info("seller sold", "seller", s.ID, "buyer", b, "entry", d.entry.ID, "price", m.Amount(), "floor", d.floor)
	}
	delete(s.deals, b)
	buyer := protocol.Buyer(b)
	return &buyer
}
