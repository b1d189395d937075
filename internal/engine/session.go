// Session wires buyers, sellers, mailboxes and the scheduler together and
// runs one negotiation market to completion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/entropy"
	"github.com/talgya/haggle/internal/mailbox"
	"github.com/talgya/haggle/internal/metrics"
	"github.com/talgya/haggle/internal/protocol"
	"github.com/talgya/haggle/internal/scheduler"
)

var (
	// ErrInvalidSetup reports a market the engine refuses to build.
	ErrInvalidSetup = errors.New("invalid session setup")

	// ErrMissingMailbox means a buyer/seller pair has no mailbox.
	ErrMissingMailbox = errors.New("missing mailbox")

	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("session already run")
)

// Setup is everything needed to build a session.
type Setup struct {
	Protocol protocol.Protocol
	Buyers   []agents.BuyerConfig // IDs are assigned by position
	Sellers  []agents.SellerConfig
	Seed     int64             // 0 = random
	Metrics  *metrics.Recorder // nil disables metrics
}

// Session holds the complete market state.
type Session struct {
	Proto   *protocol.Protocol
	Buyers  []*agents.Buyer
	Sellers []*agents.Seller
	Boxes   [][]*mailbox.Mailbox // [buyer][seller]
	Sched   *scheduler.Scheduler
	Metrics *metrics.Recorder
	Seed    int64

	mu       sync.Mutex
	ran      bool
	running  bool
	started  time.Time
	finished time.Time
	err      error
}

// Validate checks a setup before any agent is built.
func (s Setup) Validate() error {
	if err := s.Protocol.Validate(); err != nil {
		return err
	}
	if len(s.Buyers) == 0 || len(s.Sellers) == 0 {
		return fmt.Errorf("%w: need at least one buyer and one seller, have %d and %d",
			ErrInvalidSetup, len(s.Buyers), len(s.Sellers))
	}
	for i, b := range s.Buyers {
		if err := b.Strategy.Check(); err != nil {
			return fmt.Errorf("%w: buyer %d: %w", ErrInvalidSetup, i, err)
		}
		if b.TargetPrice <= 0 {
			return fmt.Errorf("%w: buyer %d: target price %.2f", ErrInvalidSetup, i, b.TargetPrice)
		}
	}
	for i, sl := range s.Sellers {
		if err := sl.Style.Check(); err != nil {
			return fmt.Errorf("%w: seller %d: %w", ErrInvalidSetup, i, err)
		}
		if sl.Karma < 0 {
			return fmt.Errorf("%w: seller %d: karma %d", ErrInvalidSetup, i, sl.Karma)
		}
	}
	return nil
}

// NewSession validates setup and builds the fixed agent registry with one
// mailbox per buyer/seller pair.
func NewSession(setup Setup) (*Session, error) {
	if err := setup.Validate(); err != nil {
		return nil, err
	}

	proto := setup.Protocol
	nb, ns := len(setup.Buyers), len(setup.Sellers)
	rng := entropy.NewStream(setup.Seed)

	sess := &Session{
		Proto:   &proto,
		Sched:   scheduler.New(nb, ns),
		Metrics: setup.Metrics,
		Seed:    rng.Seed(),
		Boxes:   make([][]*mailbox.Mailbox, nb),
	}

	for b := range sess.Boxes {
		sess.Boxes[b] = make([]*mailbox.Mailbox, ns)
		for s := range sess.Boxes[b] {
			sess.Boxes[b][s] = mailbox.New(b, s, sess.Proto)
		}
	}

	env := func(offset int64) agents.Env {
		return agents.Env{
			Sched:   sess.Sched,
			Proto:   sess.Proto,
			Metrics: sess.Metrics,
			Rand:    rng.Derive(offset),
		}
	}

	for i, cfg := range setup.Buyers {
		cfg.ID = i
		sess.Buyers = append(sess.Buyers, agents.NewBuyer(cfg, sess.Boxes[i], env(1000+int64(i))))
	}
	for i, cfg := range setup.Sellers {
		cfg.ID = i
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("seller-%d", i)
		}
		column := make([]*mailbox.Mailbox, nb)
		for b := range column {
			column[b] = sess.Boxes[b][i]
		}
		sess.Sellers = append(sess.Sellers, agents.NewSeller(cfg, column, env(2000+int64(i))))
	}

	slog.Info("session ready",
		"buyers", nb,
		"sellers", ns,
		"mailboxes", nb*ns,
		"max_rounds", proto.MaxRounds,
		"obligatory_round", proto.ObligatoryRound,
		"penalty_pct", proto.PenaltyPercent,
		"max_concurrent", proto.MaxConcurrent,
		"seed", sess.Seed,
	)
	return sess, nil
}

// Run starts every agent, releases buyer 0 and blocks until all buyers are
// done and every seller has exited. Cancelling ctx aborts the session.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return ErrAlreadyRun
	}
	s.ran, s.running = true, true
	s.started = time.Now()
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("negotiation session: %w", err)
		s.mu.Lock()
		s.running, s.err, s.finished = false, err, time.Now()
		s.mu.Unlock()
		return err
	}

	stop := context.AfterFunc(ctx, func() { s.Sched.Abort(ctx.Err()) })
	defer stop()

	var sellers, buyers errgroup.Group
	for _, sl := range s.Sellers {
		sl := sl
		sellers.Go(func() error { return s.guard(sl.Run()) })
	}
	for _, b := range s.Buyers {
		b := b
		buyers.Go(func() error { return s.guard(b.Run()) })
	}

	if err := s.Sched.Notify(protocol.Buyer(0)); err != nil {
		s.Sched.Abort(err)
	}
	buyers.Wait()

	// Rejected sellers may still be settling; let them finish before
	// telling everyone to go home.
	s.Sched.AwaitSellersIdle()
	s.Sched.Terminate()
	sellers.Wait()

	err := s.Sched.Err()
	if err != nil {
		err = fmt.Errorf("negotiation session: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.finished = time.Now()
	s.err = err
	s.mu.Unlock()

	if err != nil {
		slog.Error("session aborted", "error", err)
		return err
	}
	slog.Info("session complete", "duration", time.Since(s.started).Round(time.Millisecond))
	return nil
}

// guard turns an agent failure into a session abort.
func (s *Session) guard(err error) error {
	if err != nil && !errors.Is(err, scheduler.ErrAborted) {
		s.Sched.Abort(err)
	}
	return err
}

// Mailbox returns the mailbox between buyer b and seller sl.
func (s *Session) Mailbox(b, sl int) (*mailbox.Mailbox, error) {
	if b < 0 || b >= len(s.Boxes) || sl < 0 || sl >= len(s.Boxes[b]) || s.Boxes[b][sl] == nil {
		return nil, fmt.Errorf("%w: buyer %d / seller %d", ErrMissingMailbox, b, sl)
	}
	return s.Boxes[b][sl], nil
}

// Outcome is one buyer's finalized result.
type Outcome struct {
	Buyer    int     `json:"buyer"`
	Strategy string  `json:"strategy"`
	Target   float64 `json:"target"`
	agents.Purchase
	InBand bool `json:"in_band"` // Price lies in the entry's band (always true without a deal)
}

// Outcomes returns every buyer's result in buyer order.
func (s *Session) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(s.Buyers))
	for _, b := range s.Buyers {
		p := b.Purchase()
		out = append(out, Outcome{
			Buyer:    b.ID,
			Strategy: b.Strategy.String(),
			Target:   b.TargetPrice,
			Purchase: p,
			InBand:   !p.Deal() || p.Entry.Band.Contains(p.Price),
		})
	}
	return out
}

// Transcript is the message log of one buyer/seller pair.
type Transcript struct {
	Buyer    int                `json:"buyer"`
	Seller   int                `json:"seller"`
	Messages []*mailbox.Message `json:"messages"`
}

// Transcripts returns every non-empty mailbox log.
func (s *Session) Transcripts() []Transcript {
	var out []Transcript
	for b, row := range s.Boxes {
		for sl, box := range row {
			if box.IsEmpty() {
				continue
			}
			out = append(out, Transcript{Buyer: b, Seller: sl, Messages: box.Transcript()})
		}
	}
	return out
}

// Checkout removes purchased entries from seller catalogs and returns how
// many were removed.
func (s *Session) Checkout() int {
	removed := 0
	for _, o := range s.Outcomes() {
		if !o.Deal() || o.Seller < 0 || o.Seller >= len(s.Sellers) {
			continue
		}
		if s.Sellers[o.Seller].RemoveEntry(o.Entry.ID) {
			removed++
		}
	}
	return removed
}

// Summaries returns the brand/model view across every seller's catalog.
func (s *Session) Summaries() []catalog.Summary {
	var all []catalog.Entry
	for _, sl := range s.Sellers {
		all = append(all, sl.Catalog()...)
	}
	return catalog.Summarize(all)
}

// AgentStatus is a snapshot of one agent.
type AgentStatus struct {
	Ref   protocol.AgentRef `json:"ref"`
	State agents.State      `json:"state"`
}

// Status is a snapshot of the session.
type Status struct {
	Running  bool          `json:"running"`
	Done     bool          `json:"done"`
	Error    string        `json:"error,omitempty"`
	Seed     int64         `json:"seed"`
	Started  time.Time     `json:"started,omitempty"`
	Duration string        `json:"duration,omitempty"`
	Deals    int           `json:"deals"`
	Agents   []AgentStatus `json:"agents"`
}

// Status reports progress; safe to call while the session runs.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Running: s.running,
		Done:    s.ran && !s.running,
		Seed:    s.Seed,
		Started: s.started,
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	if st.Done {
		st.Duration = s.finished.Sub(s.started).Round(time.Millisecond).String()
	}
	s.mu.Unlock()

	for _, b := range s.Buyers {
		st.Agents = append(st.Agents, AgentStatus{Ref: protocol.Buyer(b.ID), State: b.State()})
		if b.Purchase().Deal() {
			st.Deals++
		}
	}
	for _, sl := range s.Sellers {
		st.Agents = append(st.Agents, AgentStatus{Ref: protocol.Seller(sl.ID), State: sl.State()})
	}
	return st
}
