package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
	"github.com/talgya/haggle/internal/protocol"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "haggle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSellers() []agents.SellerConfig {
	golf := catalog.NewVehicle(1, "golf", "car", 15000, catalog.Vehicle{
		Brand: "VW", Model: "Golf", Year: 2017, Transmission: "manual",
		Mileage: 42000, Fuel: "petrol", MPG: 48.5, EngineSize: 1.4,
	})
	golf.Band.Max = 36000
	return []agents.SellerConfig{
		{ID: 0, Name: "north", Style: agents.SellerUltimatum, Karma: 3, Catalog: []catalog.Entry{
			golf,
			catalog.NewItem(2, "roof box", "accessory", 300),
		}},
		{ID: 1, Name: "south", Style: agents.SellerCompromise, Karma: 4},
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	db := openTemp(t)
	assert.False(t, db.HasCatalog())

	want := sampleSellers()
	require.NoError(t, db.SaveCatalog(want))
	assert.True(t, db.HasCatalog())

	got, err := db.LoadCatalog()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[0], got[0])
	assert.Equal(t, "south", got[1].Name)
	assert.Empty(t, got[1].Catalog)
}

func TestSaveCatalogReplaces(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.SaveCatalog(sampleSellers()))

	only := sampleSellers()[:1]
	only[0].Catalog = only[0].Catalog[1:]
	require.NoError(t, db.SaveCatalog(only))

	got, err := db.LoadCatalog()
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Catalog, 1)
	assert.Equal(t, 2, got[0].Catalog[0].ID)
}

func TestMeta(t *testing.T) {
	db := openTemp(t)

	v, err := db.GetMeta("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SaveMeta("k", "1"))
	require.NoError(t, db.SaveMeta("k", "2"))
	v, err = db.GetMeta("k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestSaveSession(t *testing.T) {
	db := openTemp(t)
	sess, err := engine.NewSession(engine.Setup{
		Protocol: protocol.Default(),
		Buyers: []agents.BuyerConfig{{
			Request:     catalog.Request("", catalog.Vehicle{Brand: "VW"}),
			TargetPrice: 20000,
			Strategy:    agents.BuyerUltimatum,
		}},
		Sellers: sampleSellers(),
		Seed:    9,
	})
	require.NoError(t, err)

	require.NoError(t, db.SaveSession(sess))
	require.NoError(t, db.SaveSession(sess))

	runs, err := db.GetMeta("sessions_run")
	require.NoError(t, err)
	assert.Equal(t, "2", runs)
	seed, err := db.GetMeta("last_seed")
	require.NoError(t, err)
	assert.Equal(t, "9", seed)

	got, err := db.LoadCatalog()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Len(t, got[0].Catalog, 2)
}
