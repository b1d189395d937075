// Package persistence provides SQLite-based storage for seller profiles and
// their inventories, so karma-raised prices and sold-out entries carry over
// between sessions.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/haggle/internal/agents"
	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
)

// DB wraps a SQLite connection for catalog persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sellers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		style INTEGER NOT NULL,
		karma INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		seller_id INTEGER NOT NULL,
		id INTEGER NOT NULL,
		kind INTEGER NOT NULL,
		description TEXT NOT NULL,
		price REAL NOT NULL,
		band_min REAL NOT NULL,
		band_max REAL NOT NULL,
		category TEXT NOT NULL,
		image TEXT NOT NULL,
		brand TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		transmission TEXT NOT NULL,
		mileage INTEGER NOT NULL,
		fuel TEXT NOT NULL,
		mpg REAL NOT NULL,
		engine_size REAL NOT NULL,
		PRIMARY KEY (seller_id, id)
	);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_brand ON entries(brand, model);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type sellerRow struct {
	ID    int    `db:"id"`
	Name  string `db:"name"`
	Style int    `db:"style"`
	Karma int    `db:"karma"`
}

type entryRow struct {
	SellerID     int     `db:"seller_id"`
	ID           int     `db:"id"`
	Kind         int     `db:"kind"`
	Description  string  `db:"description"`
	Price        float64 `db:"price"`
	BandMin      float64 `db:"band_min"`
	BandMax      float64 `db:"band_max"`
	Category     string  `db:"category"`
	Image        string  `db:"image"`
	Brand        string  `db:"brand"`
	Model        string  `db:"model"`
	Year         int     `db:"year"`
	Transmission string  `db:"transmission"`
	Mileage      int     `db:"mileage"`
	Fuel         string  `db:"fuel"`
	MPG          float64 `db:"mpg"`
	EngineSize   float64 `db:"engine_size"`
}

func toRow(sellerID int, e catalog.Entry) entryRow {
	return entryRow{
		SellerID:     sellerID,
		ID:           e.ID,
		Kind:         int(e.Kind),
		Description:  e.Description,
		Price:        e.Price,
		BandMin:      e.Band.Min,
		BandMax:      e.Band.Max,
		Category:     e.Category,
		Image:        e.Image,
		Brand:        e.Vehicle.Brand,
		Model:        e.Vehicle.Model,
		Year:         e.Vehicle.Year,
		Transmission: e.Vehicle.Transmission,
		Mileage:      e.Vehicle.Mileage,
		Fuel:         e.Vehicle.Fuel,
		MPG:          e.Vehicle.MPG,
		EngineSize:   e.Vehicle.EngineSize,
	}
}

func (r entryRow) entry() catalog.Entry {
	return catalog.Entry{
		ID:          r.ID,
		Kind:        catalog.Kind(r.Kind),
		Description: r.Description,
		Price:       r.Price,
		Band:        catalog.Band{Min: r.BandMin, Max: r.BandMax},
		Category:    r.Category,
		Image:       r.Image,
		Vehicle: catalog.Vehicle{
			Brand:        r.Brand,
			Model:        r.Model,
			Year:         r.Year,
			Transmission: r.Transmission,
			Mileage:      r.Mileage,
			Fuel:         r.Fuel,
			MPG:          r.MPG,
			EngineSize:   r.EngineSize,
		},
	}
}

// SaveCatalog writes every seller profile and inventory (full replace).
func (db *DB) SaveCatalog(sellers []agents.SellerConfig) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sellers"); err != nil {
		return err
	}

	for _, s := range sellers {
		_, err := tx.NamedExec(`INSERT INTO sellers (id, name, style, karma)
			VALUES (:id, :name, :style, :karma)`,
			sellerRow{ID: s.ID, Name: s.Name, Style: int(s.Style), Karma: s.Karma})
		if err != nil {
			return fmt.Errorf("insert seller %d: %w", s.ID, err)
		}
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO entries
		(seller_id, id, kind, description, price, band_min, band_max, category, image,
		 brand, model, year, transmission, mileage, fuel, mpg, engine_size)
		VALUES (:seller_id, :id, :kind, :description, :price, :band_min, :band_max, :category, :image,
		 :brand, :model, :year, :transmission, :mileage, :fuel, :mpg, :engine_size)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range sellers {
		for _, e := range s.Catalog {
			if _, err := stmt.Exec(toRow(s.ID, e)); err != nil {
				return fmt.Errorf("insert entry %d of seller %d: %w", e.ID, s.ID, err)
			}
		}
	}

	return tx.Commit()
}

// LoadCatalog reads seller profiles with their inventories, ordered by
// seller id then entry id.
func (db *DB) LoadCatalog() ([]agents.SellerConfig, error) {
	var sellers []sellerRow
	if err := db.conn.Select(&sellers, "SELECT id, name, style, karma FROM sellers ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load sellers: %w", err)
	}

	var rows []entryRow
	if err := db.conn.Select(&rows, "SELECT * FROM entries ORDER BY seller_id, id"); err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	out := make([]agents.SellerConfig, len(sellers))
	index := make(map[int]int, len(sellers))
	for i, s := range sellers {
		out[i] = agents.SellerConfig{ID: s.ID, Name: s.Name, Style: agents.SellerStyle(s.Style), Karma: s.Karma}
		index[s.ID] = i
	}
	for _, r := range rows {
		i, ok := index[r.SellerID]
		if !ok {
			slog.Warn("orphan catalog entry", "seller", r.SellerID, "entry", r.ID)
			continue
		}
		out[i].Catalog = append(out[i].Catalog, r.entry())
	}
	return out, nil
}

// HasCatalog reports whether any seller has been saved.
func (db *DB) HasCatalog() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM sellers"); err != nil {
		return false
	}
	return n > 0
}

// SaveMeta stores a key-value pair in catalog metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO catalog_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key yields "" and no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM catalog_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SaveSession stores the post-session inventories of every seller and bumps
// the session counter.
func (db *DB) SaveSession(sess *engine.Session) error {
	sellers := make([]agents.SellerConfig, 0, len(sess.Sellers))
	entries := 0
	for _, s := range sess.Sellers {
		inv := s.Catalog()
		entries += len(inv)
		sellers = append(sellers, agents.SellerConfig{
			ID: s.ID, Name: s.Name, Style: s.Style, Karma: s.Karma, Catalog: inv,
		})
	}
	slog.Info("saving catalog", "sellers", len(sellers), "entries", entries)

	if err := db.SaveCatalog(sellers); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}

	runs := 0
	if v, err := db.GetMeta("sessions_run"); err != nil {
		return fmt.Errorf("get meta: %w", err)
	} else if v != "" {
		runs, _ = strconv.Atoi(v)
	}
	if err := db.SaveMeta("sessions_run", strconv.Itoa(runs+1)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("last_seed", strconv.FormatInt(sess.Seed, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("catalog saved")
	return nil
}
