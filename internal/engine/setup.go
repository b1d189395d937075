package engine

import (
	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/entropy"
)

// PickBuyers creates n buyers aimed at models the market actually stocks.
// Each targets a random brand/model from the summary with a ceiling between
// the cheapest listing and 40% above it, and a random strategy.
func PickBuyers(n int, summaries []catalog.Summary, rng *entropy.Stream) []agents.BuyerConfig {
	if len(summaries) == 0 {
		return nil
	}
	out := make([]agents.BuyerConfig, 0, n)
	for i := 0; i < n; i++ {
		sum := summaries[rng.Intn(len(summaries))]
		out = append(out, agents.BuyerConfig{
			ID:          i,
			Request:     catalog.Request("", catalog.Vehicle{Brand: sum.Brand, Model: sum.Model}),
			TargetPrice: catalog.RoundCents(sum.MinPrice * rng.Uniform(1.0, 1.4)),
			Strategy:    agents.BuyerStrategy(1 + rng.Intn(5)),
		})
	}
	return out
}
