// Package mailbox carries the messages a buyer and a seller exchange.
package mailbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/protocol"
)

// Intent is the category of a message.
type Intent uint8

const (
	IntentSearch    Intent = iota // Buyer broadcast asking for a quote
	IntentOffer                   // Price proposal from either side
	IntentAccept                  // Agreement at the carried amount
	IntentBreakdown               // Negotiation ended without a deal
)

var intentNames = [...]string{"search", "offer", "accept", "break-down"}

func (i Intent) String() string {
	if int(i) < len(intentNames) {
		return intentNames[i]
	}
	return fmt.Sprintf("intent(%d)", uint8(i))
}

// MarshalText renders the intent name in JSON.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// Message is immutable once built. The entry is a snapshot taken when the
// message was created, so later price changes do not rewrite history.
type Message struct {
	id     uuid.UUID
	from   protocol.AgentRef
	to     protocol.AgentRef
	intent Intent
	amount float64
	note   string
	entry  catalog.Entry
}

// NewMessage builds a message from one agent to another.
func NewMessage(from, to protocol.AgentRef, intent Intent, amount float64, note string, entry catalog.Entry) *Message {
	return &Message{
		id:     uuid.New(),
		from:   from,
		to:     to,
		intent: intent,
		amount: amount,
		note:   note,
		entry:  entry,
	}
}

func (m *Message) ID() uuid.UUID           { return m.id }
func (m *Message) From() protocol.AgentRef { return m.from }
func (m *Message) To() protocol.AgentRef   { return m.to }
func (m *Message) Intent() Intent          { return m.intent }
func (m *Message) Amount() float64         { return m.amount }
func (m *Message) Note() string            { return m.note }
func (m *Message) Entry() catalog.Entry    { return m.entry }

// IsOffer reports whether m is a priced offer.
func (m *Message) IsOffer() bool {
	return m.intent == IntentOffer && m.amount != 0
}

func (m *Message) String() string {
	return fmt.Sprintf("%s -> %s: %s %.2f", m.from, m.to, m.intent, m.amount)
}

// MarshalJSON exposes the message fields for transcript rendering.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID     uuid.UUID         `json:"id"`
		From   protocol.AgentRef `json:"from"`
		To     protocol.AgentRef `json:"to"`
		Intent Intent            `json:"intent"`
		Amount float64           `json:"amount"`
		Note   string            `json:"note,omitempty"`
		Entry  catalog.Entry     `json:"entry"`
	}{m.id, m.from, m.to, m.intent, m.amount, m.note, m.entry})
}
