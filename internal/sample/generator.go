package sample

import (
	"math"
	"math/rand"
	"time"

	"github.com/natalis/natalis/internal/schema"
)

// Record is one birth in the shape of the public natality table. Pointer
// fields are null for years the source did not report them.
type Record struct {
	SourceYear           int64   `parquet:"source_year"`
	Year                 int64   `parquet:"year"`
	Month                int64   `parquet:"month"`
	Day                  int64   `parquet:"day"`
	WDay                 int64   `parquet:"wday"`
	State                *string `parquet:"state"`
	IsMale               bool    `parquet:"is_male"`
	ChildRace            int64   `parquet:"child_race"`
	WeightPounds         float64 `parquet:"weight_pounds"`
	Plurality            int64   `parquet:"plurality"`
	MotherResidenceState string  `parquet:"mother_residence_state"`
	MotherRace           int64   `parquet:"mother_race"`
	MotherAge            int64   `parquet:"mother_age"`
	GestationWeeks       int64   `parquet:"gestation_weeks"`
	MotherMarried        bool    `parquet:"mother_married"`
	CigaretteUse         *bool   `parquet:"cigarette_use"`
	CigarettesPerDay     *int64  `parquet:"cigarettes_per_day"`
	AlcoholUse           *bool   `parquet:"alcohol_use"`
	DrinksPerWeek        *int64  `parquet:"drinks_per_week"`
	WeightGainPounds     int64   `parquet:"weight_gain_pounds"`
	EverBorn             int64   `parquet:"ever_born"`
	FatherAge            int64   `parquet:"father_age"`
	RecordWeight         int64   `parquet:"record_weight"`
}

const (
	lastStateYear    = 2004
	firstSmokeYear   = 2003
	firstAlcoholYear = 1989
)

var states = []string{"CA", "TX", "NY", "FL", "IL", "PA", "OH", "MI", "GA", "NC", "NJ", "VA", "WA", "AZ", "MA", "WY"}

// Generator produces a reproducible stream of records for a seed.
type Generator struct {
	rnd *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Generate(n int) []Record {
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, g.Next())
	}
	return records
}

func (g *Generator) Next() Record {
	year := int64(schema.FirstCoveredYear + g.rnd.Intn(schema.LastCoveredYear-schema.FirstCoveredYear+1))
	month := int64(g.rnd.Intn(12) + 1)
	day := int64(g.rnd.Intn(28) + 1)
	born := time.Date(int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	residence := states[g.rnd.Intn(len(states))]
	motherAge := g.normalInt(26, 6, 14, 50)

	rec := Record{
		SourceYear:           year,
		Year:                 year,
		Month:                month,
		Day:                  day,
		WDay:                 int64(born.Weekday()) + 1,
		IsMale:               g.rnd.Intn(1000) < 512,
		ChildRace:            g.pickRace(),
		WeightPounds:         round3(clamp(g.rnd.NormFloat64()*1.2+7.3, 1, 13)),
		Plurality:            g.pickPlurality(),
		MotherResidenceState: residence,
		MotherAge:            motherAge,
		GestationWeeks:       g.normalInt(39, 2, 22, 45),
		MotherMarried:        g.rnd.Intn(100) < 68,
		WeightGainPounds:     g.normalInt(30, 10, 0, 98),
		EverBorn:             g.normalInt(2, 1, 1, 12),
		FatherAge:            clampInt(motherAge+g.normalInt(3, 4, -10, 20), 15, 80),
		RecordWeight:         int64(1 + g.rnd.Intn(2)),
	}
	rec.MotherRace = rec.ChildRace
	if year <= lastStateYear {
		state := residence
		rec.State = &state
	}
	if year >= firstSmokeYear {
		smokes := g.rnd.Intn(100) < 11
		perDay := int64(0)
		if smokes {
			perDay = g.normalInt(10, 5, 1, 40)
		}
		rec.CigaretteUse, rec.CigarettesPerDay = &smokes, &perDay
	}
	if year >= firstAlcoholYear {
		drinks := g.rnd.Intn(100) < 3
		perWeek := int64(0)
		if drinks {
			perWeek = g.normalInt(2, 2, 1, 20)
		}
		rec.AlcoholUse, rec.DrinksPerWeek = &drinks, &perWeek
	}
	return rec
}

func (g *Generator) pickPlurality() int64 {
	p := g.rnd.Intn(1000)
	switch {
	case p < 968:
		return 1
	case p < 997:
		return 2
	default:
		return 3
	}
}

func (g *Generator) pickRace() int64 {
	p := g.rnd.Intn(100)
	switch {
	case p < 78:
		return 1
	case p < 94:
		return 2
	case p < 96:
		return 3
	default:
		return int64(4 + g.rnd.Intn(6))
	}
}

func (g *Generator) normalInt(mean, stddev, lo, hi float64) int64 {
	return int64(math.Round(clamp(g.rnd.NormFloat64()*stddev+mean, lo, hi)))
}

func clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

func clampInt(value, lo, hi int64) int64 {
	return max(lo, min(hi, value))
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}
