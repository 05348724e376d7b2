package seed

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/types"
)

// Performance bands as fractions of a subject maximum.
type band struct{ lo, hi float64 }

var bands = []band{
	{0.30, 0.70}, // average, most common
	{0.30, 0.70},
	{0.70, 0.90}, // high
	{0.05, 0.30}, // low
	{0.90, 1.00}, // elite
	{0.60, 0.80}, // mid-high
	{0.20, 0.40}, // mid-low
	{0.00, 1.00}, // anywhere
}

// dailyDrift bounds how far a student's level moves between days.
const dailyDrift = 0.05

// Generator produces reproducible classes for a schema.
type Generator struct {
	rng    *rand.Rand
	schema model.Schema
	level  map[string]float64
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(schema model.Schema, seed uint64) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		schema: schema,
		level:  make(map[string]float64),
	}
}

// Names returns n distinct student names tagged with runID.
func (g *Generator) Names(runID string, n int) []string {
	tag := runID
	if len(tag) > 8 {
		tag = tag[:8]
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("student-%s-%03d", tag, i+1)
	}
	return out
}

// Roster generates one day of marks for names. Each student keeps a level
// across calls that drifts a little every day.
func (g *Generator) Roster(date time.Time, names []string) types.SubmitRequest {
	req := types.SubmitRequest{
		Date:     model.FormatDay(date),
		Students: make([]types.StudentInput, 0, len(names)),
	}
	for _, name := range names {
		lvl, ok := g.level[name]
		if !ok {
			b := bands[g.rng.IntN(len(bands))]
			lvl = b.lo + g.rng.Float64()*(b.hi-b.lo)
		} else {
			lvl = clamp01(lvl + (g.rng.Float64()*2-1)*dailyDrift)
		}
		g.level[name] = lvl

		marks := make(map[string]float64, g.schema.SubjectCount())
		for _, sub := range g.schema.Subjects() {
			limit := g.schema.MaxFor(sub)
			v := clamp01(lvl+(g.rng.Float64()*2-1)*2*dailyDrift) * limit
			marks[sub] = math.Min(limit, math.Round(v*10)/10)
		}
		req.Students = append(req.Students, types.StudentInput{Name: name, Marks: marks})
	}
	return req
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
