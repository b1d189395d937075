package mailbox

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/haggle/internal/protocol"
)

var (
	// ErrEmpty is returned by Last on a mailbox nobody has written to.
	// Under correct turn-taking it never happens.
	ErrEmpty = errors.New("mailbox is empty")

	// ErrIndex is returned by Get for a position outside the log.
	ErrIndex = errors.New("message index out of range")
)

// Mailbox is the ordered log between one buyer and one seller.
type Mailbox struct {
	buyer  int
	seller int
	proto  *protocol.Protocol

	mu   sync.Mutex
	msgs []*Message
}

// New creates the mailbox for a buyer/seller pair under shared rules p.
func New(buyer, seller int, p *protocol.Protocol) *Mailbox {
	return &Mailbox{buyer: buyer, seller: seller, proto: p}
}

// Append adds m and returns the new size.
func (mb *Mailbox) Append(m *Message) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.msgs = append(mb.msgs, m)
	return len(mb.msgs)
}

// Last returns the most recent message.
func (mb *Mailbox) Last() (*Message, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.msgs) == 0 {
		return nil, fmt.Errorf("buyer %d / seller %d: %w", mb.buyer, mb.seller, ErrEmpty)
	}
	return mb.msgs[len(mb.msgs)-1], nil
}

// Get returns the i-th message, oldest first.
func (mb *Mailbox) Get(i int) (*Message, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if i < 0 || i >= len(mb.msgs) {
		return nil, fmt.Errorf("buyer %d / seller %d: %w: %d of %d", mb.buyer, mb.seller, ErrIndex, i, len(mb.msgs))
	}
	return mb.msgs[i], nil
}

func (mb *Mailbox) IsEmpty() bool {
	return mb.Size() == 0
}

func (mb *Mailbox) Size() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.msgs)
}

// Transcript returns a copy of the log for display.
func (mb *Mailbox) Transcript() []*Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]*Message, len(mb.msgs))
	copy(out, mb.msgs)
	return out
}

// Protocol returns the rules this mailbox negotiates under.
func (mb *Mailbox) Protocol() *protocol.Protocol { return mb.proto }

func (mb *Mailbox) Buyer() int  { return mb.buyer }
func (mb *Mailbox) Seller() int { return mb.seller }
