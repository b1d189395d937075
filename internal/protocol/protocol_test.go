package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, 5, p.MaxRounds)
	assert.Equal(t, 4, p.ObligatoryRound)
	assert.Equal(t, 5.0, p.PenaltyPercent)
	assert.Equal(t, 3, p.MaxConcurrent)
	assert.False(t, p.DeferPurchase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Protocol)
	}{
		{"obligation beyond budget", func(p *Protocol) { p.ObligatoryRound = 6 }},
		{"zero concurrency", func(p *Protocol) { p.MaxConcurrent = 0 }},
		{"single round", func(p *Protocol) { p.MaxRounds = 1; p.ObligatoryRound = 1 }},
		{"zero obligation", func(p *Protocol) { p.ObligatoryRound = 0 }},
		{"negative penalty", func(p *Protocol) { p.PenaltyPercent = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidProtocol)
		})
	}
}

func TestObligationAtBudgetIsValid(t *testing.T) {
	p := Default()
	p.ObligatoryRound = p.MaxRounds
	assert.NoError(t, p.Validate())
}

func TestAgentRef(t *testing.T) {
	assert.Equal(t, "buyer-2", Buyer(2).String())
	assert.Equal(t, "seller-0", Seller(0).String())

	out, err := json.Marshal(map[string]AgentRef{"from": Seller(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"seller-3"}`, string(out))
}
