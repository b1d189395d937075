// Package scheduler enforces turn-taking between negotiating agents.
//
// Every agent owns a ready flag guarded by one shared lock and a condition
// variable waiting on it. Passing the turn clears the sender's flag and sets
// the receiver's under that lock, so a message appended before the handoff is
// always visible to the agent it wakes.
package scheduler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/haggle/internal/protocol"
)

var (
	// ErrUnknownAgent means a reference outside the registry was used.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrAborted is returned to every waiter once the session is aborted.
	ErrAborted = errors.New("session aborted")
)

type slot struct {
	ready bool
	cond  *sync.Cond
}

// Scheduler owns the ready flags of one session.
type Scheduler struct {
	mu         sync.Mutex
	buyers     []*slot
	sellers    []*slot
	idle       *sync.Cond // broadcast whenever a seller flag clears
	terminated bool
	err        error
}

// New creates a scheduler for a fixed registry of buyers and sellers.
func New(buyers, sellers int) *Scheduler {
	s := &Scheduler{
		buyers:  make([]*slot, buyers),
		sellers: make([]*slot, sellers),
	}
	for i := range s.buyers {
		s.buyers[i] = &slot{cond: sync.NewCond(&s.mu)}
	}
	for i := range s.sellers {
		s.sellers[i] = &slot{cond: sync.NewCond(&s.mu)}
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Buyers returns the size of the buyer registry.
func (s *Scheduler) Buyers() int { return len(s.buyers) }

// Sellers returns the size of the seller registry.
func (s *Scheduler) Sellers() int { return len(s.sellers) }

func (s *Scheduler) slotLocked(a protocol.AgentRef) (*slot, error) {
	table := s.buyers
	if a.Side == protocol.SideSeller {
		table = s.sellers
	}
	if a.ID < 0 || a.ID >= len(table) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, a)
	}
	return table[a.ID], nil
}

// Wait blocks until a holds the turn. It returns false without error when
// the session terminated before a was woken, and ErrAborted after Abort.
func (s *Scheduler) Wait(a protocol.AgentRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slotLocked(a)
	if err != nil {
		return false, err
	}
	for !sl.ready && !s.terminated && s.err == nil {
		sl.cond.Wait()
	}
	if s.err != nil {
		return false, fmt.Errorf("%s: %w", a, ErrAborted)
	}
	return sl.ready, nil
}

// Handoff passes the turn from one agent to one or more others.
func (s *Scheduler) Handoff(from protocol.AgentRef, to ...protocol.AgentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.slotLocked(from)
	if err != nil {
		return err
	}
	targets := make([]*slot, len(to))
	for i, a := range to {
		if targets[i], err = s.slotLocked(a); err != nil {
			return err
		}
	}

	s.clearLocked(from, src)
	for _, t := range targets {
		t.ready = true
		t.cond.Signal()
	}
	return nil
}

// Notify wakes a without the caller giving up its own turn.
func (s *Scheduler) Notify(a protocol.AgentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slotLocked(a)
	if err != nil {
		return err
	}
	sl.ready = true
	sl.cond.Signal()
	return nil
}

// Yield gives up a's turn without waking anyone.
func (s *Scheduler) Yield(a protocol.AgentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, err := s.slotLocked(a)
	if err != nil {
		return err
	}
	s.clearLocked(a, sl)
	return nil
}

func (s *Scheduler) clearLocked(a protocol.AgentRef, sl *slot) {
	sl.ready = false
	if a.Side == protocol.SideSeller {
		s.idle.Broadcast()
	}
}

// Ready reports whether a currently holds the turn.
func (s *Scheduler) Ready(a protocol.AgentRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.slotLocked(a)
	return err == nil && sl.ready
}

// AwaitSellersIdle blocks until no seller holds the turn.
func (s *Scheduler) AwaitSellersIdle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.sellersIdleLocked() && s.err == nil {
		s.idle.Wait()
	}
	if s.err != nil {
		return ErrAborted
	}
	return nil
}

func (s *Scheduler) sellersIdleLocked() bool {
	for _, sl := range s.sellers {
		if sl.ready {
			return false
		}
	}
	return true
}

// Terminate releases every seller still waiting; they see no turn and exit.
func (s *Scheduler) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = true
	for _, sl := range s.sellers {
		sl.cond.Broadcast()
	}
}

// Terminated reports whether Terminate was called.
func (s *Scheduler) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Abort records err as the session failure and wakes every waiter.
// Only the first error is kept.
func (s *Scheduler) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	for _, sl := range s.buyers {
		sl.cond.Broadcast()
	}
	for _, sl := range s.sellers {
		sl.cond.Broadcast()
	}
	s.idle.Broadcast()
}

// Err returns the error passed to Abort, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
