// Package agents implements the buyer and seller state machines.
//
// Each agent runs on its own goroutine and spends most of its life blocked in
// the scheduler. An agent only reads or writes a mailbox while it holds the
// turn, and gives the turn away only after its message has been appended.
package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/haggle/internal/entropy"
	"github.com/talgya/haggle/internal/mailbox"
	"github.com/talgya/haggle/internal/metrics"
	"github.com/talgya/haggle/internal/protocol"
	"github.com/talgya/haggle/internal/scheduler"
)

// Env is the session plumbing every agent is handed at construction.
type Env struct {
	Sched   *scheduler.Scheduler
	Proto   *protocol.Protocol
	Metrics *metrics.Recorder // may be nil
	Rand    *entropy.Stream
}

// State is a coarse view of where an agent is in its state machine.
type State uint8

const (
	StateIdle State = iota
	StateSearching
	StateRanking
	StateNegotiating
	StateFinalizing
	StateDone
	StateMatching
	StateQuoting
	StateSettling
	StateTerminated
)

var stateNames = [...]string{
	"idle", "searching", "ranking", "negotiating", "finalizing", "done",
	"matching", "quoting", "settling", "terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// post appends m to box and counts it.
func post(env Env, box *mailbox.Mailbox, m *mailbox.Message) int {
	n := box.Append(m)
	env.Metrics.Message(m.From().Side.String(), m.Intent().String())
	slog.Debug("message",
		"from", m.From(),
		"to", m.To(),
		"intent", m.Intent(),
		"amount", m.Amount(),
	)
	return n
}

// fault reports a message an agent cannot act on, such as an empty mailbox
// read or an offer with no quote behind it. The pair is treated as "no deal".
func fault(env Env, who protocol.AgentRef, err error) {
	env.Metrics.Fault()
	slog.Error("protocol fault", "agent", who, "error", err)
}
