// Package config loads the YAML description of a negotiation session.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
	"github.com/talgya/haggle/internal/entropy"
	"github.com/talgya/haggle/internal/protocol"
)

// ErrNoBuyers means the file names neither explicit nor random buyers.
var ErrNoBuyers = errors.New("no buyers configured")

type Config struct {
	Protocol     protocol.Protocol `yaml:"protocol"`
	Seed         int64             `yaml:"seed"`
	Sellers      []SellerConfig    `yaml:"sellers"`
	Buyers       []BuyerConfig     `yaml:"buyers"`
	RandomBuyers int               `yaml:"random_buyers"`
	Catalog      CatalogConfig     `yaml:"catalog"`
	Server       ServerConfig      `yaml:"server"`
}

type SellerConfig struct {
	Name    string      `yaml:"name"`
	Style   int         `yaml:"style"`
	Karma   int         `yaml:"karma"`
	Stock   int         `yaml:"stock"` // Generated vehicles, ignored when Entries is set
	Entries []EntrySpec `yaml:"entries"`
}

type EntrySpec struct {
	ID          int             `yaml:"id"`
	Description string          `yaml:"description"`
	Category    string          `yaml:"category"`
	Price       float64         `yaml:"price"`
	Vehicle     catalog.Vehicle `yaml:"vehicle"`
}

type BuyerConfig struct {
	Category string  `yaml:"category"`
	Brand    string  `yaml:"brand"`
	Model    string  `yaml:"model"`
	EntryID  int     `yaml:"entry_id"`
	Target   float64 `yaml:"target"`
	Strategy int     `yaml:"strategy"`
}

type CatalogConfig struct {
	DB         string `yaml:"db"`
	Regenerate bool   `yaml:"regenerate"` // Ignore a saved catalog
	Checkout   bool   `yaml:"checkout"`   // Remove sold entries after the session
	BaseYear   int    `yaml:"base_year"`
	NewYear    int    `yaml:"new_year"`
}

type ServerConfig struct {
	Port  int  `yaml:"port"`
	Serve bool `yaml:"serve"` // Keep serving the API after the session ends
}

// Default returns the stock market: five sellers of uneven size and four
// random buyers.
func Default() Config {
	return Config{
		Protocol: protocol.Default(),
		Sellers: []SellerConfig{
			{Name: "seller-0", Style: 1, Stock: 10, Karma: 3},
			{Name: "seller-1", Style: 2, Stock: 34, Karma: 4},
			{Name: "seller-2", Style: 1, Stock: 123, Karma: 4},
			{Name: "seller-3", Style: 2, Stock: 234, Karma: 4},
			{Name: "seller-4", Style: 1, Stock: 1, Karma: 4},
		},
		RandomBuyers: 4,
		Catalog: CatalogConfig{
			DB:       "data/haggle.db",
			Checkout: true,
			BaseYear: 2005,
			NewYear:  2024,
		},
		Server: ServerConfig{Port: 8080},
	}
}

// LoadConfig reads path over the defaults; keys absent from the file keep
// their default value.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the parts of the file the engine cannot check itself.
func (c *Config) Validate() error {
	if err := c.Protocol.Validate(); err != nil {
		return err
	}
	if len(c.Buyers) == 0 && c.RandomBuyers <= 0 {
		return ErrNoBuyers
	}
	if len(c.Sellers) == 0 {
		return errors.New("no sellers configured")
	}
	for i, s := range c.Sellers {
		if err := agents.SellerStyle(s.Style).Check(); err != nil {
			return fmt.Errorf("seller %d: %w", i, err)
		}
		if s.Stock < 0 {
			return fmt.Errorf("seller %d: negative stock %d", i, s.Stock)
		}
		for _, e := range s.Entries {
			if e.Price <= 0 {
				return fmt.Errorf("seller %d: entry %d priced %.2f", i, e.ID, e.Price)
			}
		}
	}
	for i, b := range c.Buyers {
		if err := agents.BuyerStrategy(b.Strategy).Check(); err != nil {
			return fmt.Errorf("buyer %d: %w", i, err)
		}
	}
	return nil
}

// Generated reports whether any seller takes its inventory from the
// generator rather than from the file.
func (c *Config) Generated() bool {
	for _, s := range c.Sellers {
		if len(s.Entries) == 0 {
			return true
		}
	}
	return false
}

// BuildSellers turns the seller list into engine configs. Sellers without
// explicit entries draw from the seeded generator.
func (c *Config) BuildSellers(seed int64) []agents.SellerConfig {
	gen := catalog.DefaultGenConfig()
	gen.Seed = seed
	gen.Sizes = make([]int, len(c.Sellers))
	for i, s := range c.Sellers {
		gen.Sizes[i] = s.Stock
	}
	if c.Catalog.BaseYear > 0 {
		gen.BaseYear = c.Catalog.BaseYear
	}
	if c.Catalog.NewYear > 0 {
		gen.NewYear = c.Catalog.NewYear
	}
	generated := catalog.Generate(gen)

	out := make([]agents.SellerConfig, len(c.Sellers))
	for i, s := range c.Sellers {
		inv := generated[i]
		if len(s.Entries) > 0 {
			inv = make([]catalog.Entry, 0, len(s.Entries))
			for _, e := range s.Entries {
				inv = append(inv, e.entry())
			}
		}
		out[i] = agents.SellerConfig{
			ID:      i,
			Name:    s.Name,
			Style:   agents.SellerStyle(s.Style),
			Karma:   s.Karma,
			Catalog: inv,
		}
	}
	return out
}

func (e EntrySpec) entry() catalog.Entry {
	if e.Vehicle == (catalog.Vehicle{}) {
		return catalog.NewItem(e.ID, e.Description, e.Category, e.Price)
	}
	return catalog.NewVehicle(e.ID, e.Description, e.Category, e.Price, e.Vehicle)
}

// BuildBuyers returns the explicit buyers followed by RandomBuyers picked
// against summaries.
func (c *Config) BuildBuyers(summaries []catalog.Summary, rng *entropy.Stream) []agents.BuyerConfig {
	out := make([]agents.BuyerConfig, 0, len(c.Buyers)+c.RandomBuyers)
	for _, b := range c.Buyers {
		req := catalog.Request(b.Category, catalog.Vehicle{Brand: b.Brand, Model: b.Model})
		req.ID = b.EntryID
		out = append(out, agents.BuyerConfig{
			Request:     req,
			TargetPrice: b.Target,
			Strategy:    agents.BuyerStrategy(b.Strategy),
		})
	}
	return append(out, engine.PickBuyers(c.RandomBuyers, summaries, rng)...)
}
