// Package catalog holds seller inventory entries and the request matching
// sellers run against a buyer's search.
package catalog

import (
	"math"
	"sort"
	"strings"
)

// BandCeiling is the multiple of the listing price that bounds an entry's
// accepted price band. It matches the widest seller markup.
const BandCeiling = 2.2

// Kind tags which attributes of an Entry are meaningful.
type Kind uint8

const (
	KindItem    Kind = iota // Plain product: category only
	KindVehicle             // Vehicle attributes are populated
)

var kindNames = [...]string{"item", "vehicle"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Band is the accepted price range for an entry.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether price lies in the band, to the cent.
func (b Band) Contains(price float64) bool {
	return price >= b.Min-0.005 && price <= b.Max+0.005
}

// Vehicle carries the attributes buyers can search cars by.
// Zero values mean "unspecified" when used in a request.
type Vehicle struct {
	Brand        string  `json:"brand" yaml:"brand"`
	Model        string  `json:"model" yaml:"model"`
	Year         int     `json:"year" yaml:"year"`
	Transmission string  `json:"transmission" yaml:"transmission"`
	Mileage      int     `json:"mileage" yaml:"mileage"`
	Fuel         string  `json:"fuel" yaml:"fuel"`
	MPG          float64 `json:"mpg" yaml:"mpg"`
	EngineSize   float64 `json:"engine_size" yaml:"engine_size"`
}

// Entry is one product in a seller's catalog. Messages carry copies.
type Entry struct {
	ID          int     `json:"id"`
	Kind        Kind    `json:"kind"`
	Description string  `json:"description"`
	Price       float64 `json:"price"` // Current listing price
	Band        Band    `json:"band"`
	Category    string  `json:"category"`
	Image       string  `json:"image,omitempty"`
	Vehicle     Vehicle `json:"vehicle"`
}

// NewItem creates a plain catalog entry priced at price.
func NewItem(id int, description, category string, price float64) Entry {
	price = RoundCents(price)
	return Entry{
		ID:          id,
		Kind:        KindItem,
		Description: description,
		Price:       price,
		Band:        Band{Min: price, Max: RoundCents(price * BandCeiling)},
		Category:    category,
	}
}

// NewVehicle creates a vehicle entry priced at price.
func NewVehicle(id int, description, category string, price float64, v Vehicle) Entry {
	e := NewItem(id, description, category, price)
	e.Kind = KindVehicle
	e.Vehicle = v
	return e
}

// Request builds a search request for the given vehicle attributes.
// The returned entry has no id and no price.
func Request(category string, v Vehicle) Entry {
	return Entry{Kind: KindVehicle, Category: category, Vehicle: v}
}

// PriceBand returns the accepted band for e.
func (e Entry) PriceBand() Band { return e.Band }

// Satisfies reports whether e can serve the buyer request req.
// A request naming an id matches only that id's entry or the attribute rules.
func (e Entry) Satisfies(req Entry) bool {
	if req.ID != 0 && req.ID == e.ID {
		return true
	}
	if !textMatch(req.Category, e.Category) {
		return false
	}
	switch e.Kind {
	case KindVehicle:
		return e.Vehicle.satisfies(req.Vehicle)
	default:
		// Plain items cannot satisfy vehicle criteria.
		return req.Vehicle == (Vehicle{})
	}
}

func (v Vehicle) satisfies(req Vehicle) bool {
	switch {
	case !textMatch(req.Brand, v.Brand),
		!textMatch(req.Model, v.Model),
		v.Year < req.Year,
		!textMatch(req.Transmission, v.Transmission),
		req.Mileage != 0 && v.Mileage > req.Mileage,
		!textMatch(req.Fuel, v.Fuel),
		req.MPG != 0 && v.MPG > req.MPG,
		req.EngineSize != 0 && v.EngineSize > req.EngineSize:
		return false
	}
	return true
}

// textMatch treats an empty wanted value as a wildcard.
func textMatch(want, have string) bool {
	return want == "" || strings.EqualFold(want, have)
}

// Match returns the entry serving req. An exact id match wins outright;
// otherwise the cheapest satisfying entry is returned (lowest id on ties).
func Match(entries []Entry, req Entry) (Entry, bool) {
	if req.ID != 0 {
		for _, e := range entries {
			if e.ID == req.ID {
				return e, true
			}
		}
	}

	var best Entry
	found := false
	for _, e := range entries {
		if !e.Satisfies(req) {
			continue
		}
		if !found || e.Price < best.Price || (e.Price == best.Price && e.ID < best.ID) {
			best = e
			found = true
		}
	}
	return best, found
}

// RaisePrices raises every entry's price by pct percent in place.
// Band.Min is kept; Band.Max grows so the band still covers the widest markup.
func RaisePrices(entries []Entry, pct float64) {
	for i := range entries {
		e := &entries[i]
		e.Price = RoundCents(e.Price * (1 + pct/100))
		if ceiling := RoundCents(e.Price * BandCeiling); ceiling > e.Band.Max {
			e.Band.Max = ceiling
		}
	}
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Summary is the per brand+model view buyers pick targets from.
type Summary struct {
	Brand    string  `json:"brand"`
	Model    string  `json:"model"`
	Count    int     `json:"count"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// Summarize groups vehicle entries by brand and model, sorted by brand then model.
func Summarize(entries []Entry) []Summary {
	type key struct{ brand, model string }
	index := make(map[key]int)
	var out []Summary

	for _, e := range entries {
		if e.Kind != KindVehicle {
			continue
		}
		k := key{e.Vehicle.Brand, e.Vehicle.Model}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, Summary{
				Brand:    k.brand,
				Model:    k.model,
				MinPrice: e.Price,
				MaxPrice: e.Price,
			})
			i = len(out) - 1
		}
		s := &out[i]
		s.Count++
		s.MinPrice = math.Min(s.MinPrice, e.Price)
		s.MaxPrice = math.Max(s.MaxPrice, e.Price)
	}

	sort.Slice(out, func(a, b int) bool {
		if out[a].Brand != out[b].Brand {
			return out[a].Brand < out[b].Brand
		}
		return out[a].Model < out[b].Model
	})
	return out
}
