// Package sorting orders whitelist records by any column with a three-way
// comparator that understands numbers, dates and plain text.
package sorting

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/authip/internal/brfmt"
	"github.com/julianstephens/authip/internal/models"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection reads "asc" or "desc"; anything else is ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "desc") {
		return Desc
	}
	return Asc
}

// State is the active sort column and direction. An empty Key keeps the
// order returned by the server.
type State struct {
	Key       string
	Direction Direction
}

// Toggle selects key. Selecting the active ascending column flips it to
// descending; any other selection sorts key ascending.
func (s State) Toggle(key string) State {
	if s.Key == key && s.Direction == Asc {
		return State{Key: key, Direction: Desc}
	}
	return State{Key: key, Direction: Asc}
}

// Indicator returns the header marker for key under s.
func Indicator(s State, key string) string {
	if s.Key == "" || s.Key != key {
		return ""
	}
	if s.Direction == Desc {
		return " ▼"
	}
	return " ▲"
}

type mode int

const (
	modeNumber mode = iota
	modeDate
	modeString
)

// Compare orders a and b by the column key. Two numeric values compare as
// numbers, two dates by instant, anything else as strings.
// Unknown keys compare equal.
func Compare(a, b models.Record, key string, dir Direction) int {
	av, ok := a.Field(key)
	if !ok {
		return 0
	}
	bv, ok := b.Field(key)
	if !ok {
		return 0
	}
	return applyDirection(compareValues(av, bv, pairMode(av, bv)), dir)
}

// Sort returns a sorted copy of records. The comparison mode is picked once
// for the whole column so a column mixing value kinds still sorts
// consistently. Equal values keep their relative order.
func Sort(records []models.Record, s State) []models.Record {
	out := slices.Clone(records)
	if s.Key == "" || len(out) < 2 {
		return out
	}
	if _, ok := (models.Record{}).Field(s.Key); !ok {
		return out
	}

	m := columnMode(out, s.Key)
	slices.SortStableFunc(out, func(a, b models.Record) int {
		av, _ := a.Field(s.Key)
		bv, _ := b.Field(s.Key)
		return applyDirection(compareValues(av, bv, m), s.Direction)
	})
	return out
}

func applyDirection(c int, dir Direction) int {
	if dir == Desc {
		return -c
	}
	return c
}

func pairMode(a, b string) mode {
	if isNumber(a) && isNumber(b) {
		return modeNumber
	}
	if isDate(a) && isDate(b) {
		return modeDate
	}
	return modeString
}

func columnMode(records []models.Record, key string) mode {
	numeric, dated := true, true
	for _, r := range records {
		v, _ := r.Field(key)
		if strings.TrimSpace(v) == "" {
			continue
		}
		if numeric && !isNumber(v) {
			numeric = false
		}
		if dated && !isDate(v) {
			dated = false
		}
		if !numeric && !dated {
			return modeString
		}
	}
	if numeric {
		return modeNumber
	}
	return modeDate
}

func compareValues(a, b string, m mode) int {
	switch m {
	case modeNumber:
		return compareNumbers(parseNumber(a), parseNumber(b))
	case modeDate:
		at, _ := parseDate(a)
		bt, _ := parseDate(b)
		// Values that did not parse are zero times and sort first.
		return at.Compare(bt)
	default:
		return strings.Compare(a, b)
	}
}

func isNumber(v string) bool {
	return parseNumber(v) != nil
}

func isDate(v string) bool {
	_, ok := parseDate(v)
	return ok
}

func parseNumber(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	t, err := brfmt.ParseStorage(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// compareNumbers orders missing values first.
func compareNumbers(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}
