package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
	"github.com/talgya/haggle/internal/mailbox"
	"github.com/talgya/haggle/internal/protocol"
)

func TestOutcomesFlagsOutOfBand(t *testing.T) {
	golf := catalog.NewVehicle(7, "2017 VW Golf", "car", 15000, catalog.Vehicle{Brand: "VW"})
	var buf bytes.Buffer
	n := Outcomes(&buf, []engine.Outcome{
		{Buyer: 0, Strategy: "ultimatum", Target: 20000, InBand: true,
			Purchase: agents.Purchase{Seller: 1, Entry: golf, Price: 17000, Rounds: 2}},
		{Buyer: 1, Strategy: "mirror", Target: 9000, InBand: false,
			Purchase: agents.Purchase{Seller: 0, Entry: golf, Price: 40000, Rounds: 5}},
		{Buyer: 2, Strategy: "step-wise", Target: 5000, InBand: true,
			Purchase: agents.Purchase{Seller: -1}},
	})

	assert.Equal(t, 1, n)
	out := buf.String()
	assert.Contains(t, out, "17000.00")
	assert.Contains(t, out, "15000.00-33000.00")
	assert.Contains(t, out, "OUT OF BAND")
	assert.Contains(t, out, "no deal")
	assert.Contains(t, out, "#7 2017 VW Golf")
}

func TestTranscripts(t *testing.T) {
	golf := catalog.NewVehicle(7, "golf", "car", 15000, catalog.Vehicle{Brand: "VW"})
	var buf bytes.Buffer
	Transcripts(&buf, []engine.Transcript{{
		Buyer:  0,
		Seller: 2,
		Messages: []*mailbox.Message{
			mailbox.NewMessage(protocol.Buyer(0), protocol.Seller(2), mailbox.IntentSearch, 0, "", catalog.Request("car", catalog.Vehicle{})),
			mailbox.NewMessage(protocol.Seller(2), protocol.Buyer(0), mailbox.IntentOffer, 18000, "", golf),
			mailbox.NewMessage(protocol.Buyer(0), protocol.Seller(2), mailbox.IntentBreakdown, 0, "not shortlisted", golf),
		},
	}})

	out := buf.String()
	assert.Contains(t, out, "buyer 0 / seller 2")
	assert.Contains(t, out, "seller-2")
	assert.Contains(t, out, "18000.00")
	assert.Contains(t, out, "break-down")
	assert.Contains(t, out, "not shortlisted")
}

func TestCatalog(t *testing.T) {
	var buf bytes.Buffer
	Catalog(&buf, []catalog.Summary{{Brand: "VW", Model: "Golf", Count: 3, MinPrice: 9000, MaxPrice: 21000}})
	out := buf.String()
	assert.Contains(t, out, "Golf")
	assert.Contains(t, out, "9000.00")
	assert.Contains(t, out, "21000.00")
}
