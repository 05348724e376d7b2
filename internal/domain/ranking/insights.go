package ranking

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/okian/marksense/internal/domain/model"
)

// DefaultBins is the histogram resolution used when none is requested.
const DefaultBins = 10

// DefaultMaxCompare caps how many students Compare accepts.
const DefaultMaxCompare = 5

// Sentinel kinds for insight queries.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrEmptyRoster     = errors.New("roster is empty")
	ErrTooManyStudents = errors.New("too many students requested")
	ErrUnknownMode     = errors.New("unknown spotlight mode")
)

// Bucket is one equal-width histogram bin. Lower is inclusive; Upper is
// exclusive except for the last bucket.
type Bucket struct {
	Lower float64
	Upper float64
	Count int
}

// Distribution buckets values into bins equal-width bins spanning
// [min(values), max(values)]. When every value is equal a single bucket is
// returned.
func Distribution(values []float64, bins int) []Bucket {
	if len(values) == 0 {
		return []Bucket{}
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return []Bucket{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bucket, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

// Compare returns the named records in request order. At most limit names
// are accepted; limit <= 0 means DefaultMaxCompare.
func Compare(r RankedRoster, names []string, limit int) ([]model.StudentRecord, error) {
	if limit <= 0 {
		limit = DefaultMaxCompare
	}
	if len(names) > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyStudents, len(names), limit)
	}
	out := make([]model.StudentRecord, 0, len(names))
	for _, name := range names {
		rec, ok := r.Find(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrStudentNotFound, name)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SpotlightMode selects which student Spotlight returns.
type SpotlightMode string

// Spotlight modes.
const (
	SpotlightTop    SpotlightMode = "top"
	SpotlightBottom SpotlightMode = "bottom"
	SpotlightRandom SpotlightMode = "random"
	SpotlightName   SpotlightMode = "name"
)

// ParseSpotlightMode validates s as a SpotlightMode.
func ParseSpotlightMode(s string) (SpotlightMode, error) {
	switch m := SpotlightMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SpotlightTop, SpotlightBottom, SpotlightRandom, SpotlightName:
		return m, nil
	case "":
		return SpotlightTop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Spotlight picks one student from r. rng is only used by SpotlightRandom;
// nil falls back to the package-level generator.
func Spotlight(r RankedRoster, mode SpotlightMode, name string, rng *rand.Rand) (model.StudentRecord, error) {
	if r.Empty || len(r.Records) == 0 {
		return model.StudentRecord{}, ErrEmptyRoster
	}
	switch mode {
	case SpotlightTop:
		return r.Records[0], nil
	case SpotlightBottom:
		return r.Records[len(r.Records)-1], nil
	case SpotlightRandom:
		var i int
		if rng != nil {
			i = rng.IntN(len(r.Records))
		} else {
			i = rand.IntN(len(r.Records))
		}
		return r.Records[i], nil
	case SpotlightName:
		rec, ok := r.Find(strings.TrimSpace(name))
		if !ok {
			return model.StudentRecord{}, fmt.Errorf("%w: %q", ErrStudentNotFound, name)
		}
		return rec, nil
	default:
		return model.StudentRecord{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
