// Synthetic vehicle inventories using layered simplex noise.
// Noise drives condition (age, mileage) so neighbouring listings of one seller
// look like a coherent stock instead of independent dice rolls.
package catalog

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds inventory generation parameters.
type GenConfig struct {
	Seed     int64 // Random seed (0 = random)
	Sizes    []int // Entries per seller
	FirstID  int   // Id of the first generated entry (0 = 1)
	BaseYear int   // Oldest manufacture year
	NewYear  int   // Newest manufacture year
}

// DefaultGenConfig returns the stock sizes of the five default sellers.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:     0,
		Sizes:    []int{10, 34, 123, 234, 1},
		FirstID:  1,
		BaseYear: 2005,
		NewYear:  2020,
	}
}

// ModelSpec describes one model line of a brand.
type ModelSpec struct {
	Name   string
	Base   float64 // List price of a new car
	Engine float64 // Litres
	MPG    float64
}

// Brands is the vehicle line-up inventories are drawn from.
var Brands = map[string][]ModelSpec{
	"Audi":     {{"A3", 24000, 1.4, 55}, {"A4", 30000, 2.0, 50}, {"Q5", 42000, 2.0, 40}},
	"BMW":      {{"1 Series", 23000, 1.5, 56}, {"3 Series", 31000, 2.0, 50}, {"X3", 43000, 2.0, 42}},
	"Ford":     {{"Fiesta", 15000, 1.0, 60}, {"Focus", 19000, 1.5, 55}, {"Kuga", 26000, 2.0, 45}},
	"Hyundai":  {{"i10", 11000, 1.0, 58}, {"i30", 18000, 1.4, 52}, {"Tucson", 25000, 1.6, 44}},
	"Mercedes": {{"A Class", 26000, 1.3, 54}, {"C Class", 34000, 2.0, 48}, {"GLC", 45000, 2.0, 38}},
	"Skoda":    {{"Fabia", 13000, 1.0, 60}, {"Octavia", 20000, 1.5, 56}, {"Superb", 28000, 2.0, 50}},
	"Toyota":   {{"Yaris", 15000, 1.5, 65}, {"Corolla", 22000, 1.8, 62}, {"RAV4", 32000, 2.5, 48}},
	"Vauxhall": {{"Corsa", 13000, 1.2, 57}, {"Astra", 18000, 1.4, 54}, {"Mokka", 21000, 1.4, 46}},
	"VW":       {{"Polo", 15000, 1.0, 58}, {"Golf", 21000, 1.5, 54}, {"Tiguan", 29000, 2.0, 44}},
}

// BrandNames lists Brands keys in a stable order.
var BrandNames = []string{"Audi", "BMW", "Ford", "Hyundai", "Mercedes", "Skoda", "Toyota", "Vauxhall", "VW"}

var (
	transmissions = []string{"Manual", "Automatic", "Semi-Auto"}
	fuels         = []string{"Petrol", "Diesel", "Hybrid"}
)

// Generate creates one inventory per entry of cfg.Sizes. Ids are unique
// across all returned inventories.
func Generate(cfg GenConfig) [][]Entry {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.FirstID == 0 {
		cfg.FirstID = 1
	}
	if cfg.NewYear <= cfg.BaseYear {
		cfg.BaseYear, cfg.NewYear = 2005, 2020
	}

	// Independent layers for age and usage.
	ageNoise := opensimplex.NewNormalized(seed)
	useNoise := opensimplex.NewNormalized(seed + 1)
	rng := rand.New(rand.NewSource(seed + 2))

	span := float64(cfg.NewYear - cfg.BaseYear)
	nextID := cfg.FirstID
	out := make([][]Entry, len(cfg.Sizes))

	for s, size := range cfg.Sizes {
		inv := make([]Entry, 0, size)
		for i := 0; i < size; i++ {
			x := float64(i) * 0.31
			y := float64(s) * 1.7

			age := octaveNoise(ageNoise, x, y, 3, 1.0, 0.5)  // 0 = oldest, 1 = newest
			wear := octaveNoise(useNoise, x, y, 2, 1.3, 0.5) // relative mileage per year
			year := cfg.BaseYear + int(math.Round(age*span))
			years := float64(cfg.NewYear - year + 1)
			mileage := int(years * (4000 + wear*12000))

			brand := BrandNames[rng.Intn(len(BrandNames))]
			models := Brands[brand]
			m := models[rng.Intn(len(models))]

			// Depreciation: 12% per year plus a mileage discount.
			price := m.Base * math.Pow(0.88, years-1) * (1 - math.Min(0.3, float64(mileage)/400000))
			price = math.Max(1000, price*(0.95+rng.Float64()*0.1))

			v := Vehicle{
				Brand:        brand,
				Model:        m.Name,
				Year:         year,
				Transmission: transmissions[rng.Intn(len(transmissions))],
				Mileage:      mileage,
				Fuel:         fuels[rng.Intn(len(fuels))],
				MPG:          math.Round((m.MPG-4+rng.Float64()*8)*10) / 10,
				EngineSize:   m.Engine,
			}
			desc := fmt.Sprintf("%d %s %s %s", year, brand, m.Name, v.Transmission)
			inv = append(inv, NewVehicle(nextID, desc, "car", price, v))
			nextID++
		}
		out[s] = inv
	}
	return out
}

// octaveNoise samples multiple octaves of noise for natural-looking variation.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
