package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/entropy"
	"github.com/talgya/haggle/internal/protocol"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, protocol.Default(), cfg.Protocol)
	require.Len(t, cfg.Sellers, 5)
	assert.Equal(t, 3, cfg.Sellers[0].Karma)
	assert.Equal(t, 234, cfg.Sellers[3].Stock)
	assert.True(t, cfg.Generated())
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
protocol:
  max_rounds: 7
seed: 42
sellers:
  - name: lot
    style: 5
    karma: 2
    entries:
      - id: 1
        description: golf
        category: car
        price: 15000
        vehicle:
          brand: VW
          model: Golf
          year: 2017
      - id: 2
        description: roof box
        category: accessory
        price: 300
buyers:
  - brand: VW
    target: 18000
    strategy: 3
random_buyers: 0
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Protocol.MaxRounds)
	assert.Equal(t, 4, cfg.Protocol.ObligatoryRound, "unset keys keep defaults")
	assert.Equal(t, int64(42), cfg.Seed)
	assert.False(t, cfg.Generated())
	assert.Equal(t, "data/haggle.db", cfg.Catalog.DB)

	sellers := cfg.BuildSellers(cfg.Seed)
	require.Len(t, sellers, 1)
	assert.Equal(t, agents.SellerUltimatum, sellers[0].Style)
	require.Len(t, sellers[0].Catalog, 2)
	assert.Equal(t, catalog.KindVehicle, sellers[0].Catalog[0].Kind)
	assert.Equal(t, catalog.KindItem, sellers[0].Catalog[1].Kind)
	assert.Equal(t, 33000.0, sellers[0].Catalog[0].Band.Max)

	buyers := cfg.BuildBuyers(nil, entropy.NewStream(1))
	require.Len(t, buyers, 1)
	assert.Equal(t, "VW", buyers[0].Request.Vehicle.Brand)
	assert.Equal(t, agents.BuyerAggressive, buyers[0].Strategy)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad protocol", "protocol:\n  obligatory_round: 9\n"},
		{"no buyers", "random_buyers: 0\n"},
		{"bad style", "sellers:\n  - style: 6\n    stock: 1\n"},
		{"bad strategy", "buyers:\n  - strategy: 0\n    target: 10\n"},
		{"free entry", "sellers:\n  - style: 1\n    entries:\n      - id: 1\n        price: 0\n"},
		{"not yaml", "protocol: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildSellersGenerated(t *testing.T) {
	cfg := Default()
	a := cfg.BuildSellers(5)
	b := cfg.BuildSellers(5)
	require.Len(t, a, 5)
	assert.Equal(t, a, b, "same seed, same market")
	for i, s := range a {
		assert.Equal(t, i, s.ID)
		assert.Len(t, s.Catalog, cfg.Sellers[i].Stock)
	}
}

func TestBuildBuyersRandom(t *testing.T) {
	cfg := Default()
	sellers := cfg.BuildSellers(5)
	var all []catalog.Entry
	for _, s := range sellers {
		all = append(all, s.Catalog...)
	}
	buyers := cfg.BuildBuyers(catalog.Summarize(all), entropy.NewStream(5))
	require.Len(t, buyers, cfg.RandomBuyers)
	for _, b := range buyers {
		assert.NotEmpty(t, b.Request.Vehicle.Brand)
		assert.True(t, b.Strategy.Valid())
		assert.Positive(t, b.TargetPrice)
	}
}
