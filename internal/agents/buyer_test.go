package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/mailbox"
	"github.com/talgya/haggle/internal/protocol"
)

func sellerMsg(intent mailbox.Intent, amount float64) *mailbox.Message {
	return mailbox.NewMessage(protocol.Seller(0), protocol.Buyer(0), intent, amount, "", catalog.Entry{})
}

func TestDecide(t *testing.T) {
	p := protocol.Default() // 5 rounds, obligation at 4
	const target = 20000.0

	tests := []struct {
		name       string
		round      int
		prevOwn    float64
		prevSeller float64
		last       *mailbox.Message
		want       action
	}{
		{"counter above target", 2, 12000, 26000, sellerMsg(mailbox.IntentOffer, 25000), actCounter},
		{"seller accepted", 2, 16000, 26000, sellerMsg(mailbox.IntentAccept, 16000), actAccept},
		{"seller broke down", 2, 12000, 26000, sellerMsg(mailbox.IntentBreakdown, 0), actBreakdown},
		{"identical offer", 3, 12000, 25000, sellerMsg(mailbox.IntentOffer, 25000), actBreakdown},
		{"obligation gap too wide", 4, 15000, 26000, sellerMsg(mailbox.IntentOffer, 25000), actBreakdown},
		{"obligation gap tolerable", 4, 15000, 26000, sellerMsg(mailbox.IntentOffer, 23000), actCounter},
		{"below target and close", 3, 16000, 21000, sellerMsg(mailbox.IntentOffer, 18000), actAccept},
		{"below target but far from own offer", 3, 12000, 21000, sellerMsg(mailbox.IntentOffer, 18000), actBreakdown},
		{"rounds exhausted", 5, 15000, 26000, sellerMsg(mailbox.IntentOffer, 25000), actAccept},
		{"rounds exhausted unchanged", 5, 15000, 25000, sellerMsg(mailbox.IntentOffer, 25000), actAccept},
		{"rounds exhausted break-down", 5, 15000, 25000, sellerMsg(mailbox.IntentBreakdown, 0), actBreakdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(&p, tt.round, target, tt.prevOwn, tt.prevSeller, tt.last))
		})
	}
}

func TestDecideObligationOnlyAtItsRound(t *testing.T) {
	p := protocol.Default()
	last := sellerMsg(mailbox.IntentOffer, 25000)
	assert.Equal(t, actCounter, decide(&p, 3, 20000, 15000, 26000, last))
	assert.Equal(t, actBreakdown, decide(&p, 4, 20000, 15000, 26000, last))
}

func TestAcceptable(t *testing.T) {
	assert.True(t, acceptable(16000, 19000, 20000))
	assert.False(t, acceptable(15000, 18000, 20000)) // ratio exactly 1.2
	assert.False(t, acceptable(19000, 21000, 20000))
	assert.True(t, acceptable(-1, 5000, 20000))
}

func TestPurchaseDeal(t *testing.T) {
	assert.False(t, Purchase{Seller: -1}.Deal())
	assert.True(t, Purchase{Seller: 2, Price: 1}.Deal())
}
