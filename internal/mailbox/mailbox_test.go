package mailbox

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/protocol"
)

func TestEmptyMailbox(t *testing.T) {
	p := protocol.Default()
	mb := New(1, 2, &p)

	assert.True(t, mb.IsEmpty())
	assert.Equal(t, 0, mb.Size())
	assert.Same(t, &p, mb.Protocol())

	_, err := mb.Last()
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = mb.Get(0)
	assert.ErrorIs(t, err, ErrIndex)
}

func TestAppendOrder(t *testing.T) {
	p := protocol.Default()
	mb := New(0, 0, &p)
	entry := catalog.NewItem(4, "tyre", "parts", 80)

	search := NewMessage(protocol.Buyer(0), protocol.Seller(0), IntentSearch, 0, "", entry)
	quote := NewMessage(protocol.Seller(0), protocol.Buyer(0), IntentOffer, 96, "", entry)

	assert.Equal(t, 1, mb.Append(search))
	assert.Equal(t, 2, mb.Append(quote))

	last, err := mb.Last()
	require.NoError(t, err)
	assert.Same(t, quote, last)

	first, err := mb.Get(0)
	require.NoError(t, err)
	assert.Same(t, search, first)
	assert.False(t, first.IsOffer())
	assert.True(t, last.IsOffer())

	tr := mb.Transcript()
	require.Len(t, tr, 2)
	tr[0] = nil
	got, _ := mb.Get(0)
	assert.Same(t, search, got, "transcript must be a copy")
}

func TestMessageSnapshot(t *testing.T) {
	entry := catalog.NewItem(1, "wiper", "parts", 10)
	m := NewMessage(protocol.Buyer(0), protocol.Seller(1), IntentOffer, 9.5, "counter", entry)

	entry.Price = 99
	assert.Equal(t, 10.0, m.Entry().Price)
	assert.NotEqual(t, m.ID(), NewMessage(m.From(), m.To(), m.Intent(), m.Amount(), "", entry).ID())
	assert.Equal(t, "buyer-0 -> seller-1: offer 9.50", m.String())
}

func TestMessageJSON(t *testing.T) {
	m := NewMessage(protocol.Seller(2), protocol.Buyer(0), IntentBreakdown, 0, "no match", catalog.Entry{})
	out, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "break-down", decoded["intent"])
	assert.Equal(t, "seller-2", decoded["from"])
	assert.Equal(t, "no match", decoded["note"])
}

func TestConcurrentAppend(t *testing.T) {
	p := protocol.Default()
	mb := New(0, 0, &p)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(side int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				mb.Append(NewMessage(protocol.Buyer(0), protocol.Seller(0), IntentOffer, float64(side*1000+j), "", catalog.Entry{}))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 200, mb.Size())
}
