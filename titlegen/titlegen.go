// Package titlegen produces the fallback broadcast title used when the
// title queue is empty.
package titlegen

import (
	"fmt"
	"time"
	_ "time/tzdata" // named zones resolve the same on every host
)

// DefaultTimezone is the zone the service schedule is expressed in.
const DefaultTimezone = "America/New_York"

const (
	dateLayout = "Monday, January 2, 2006"

	// SuffixVespers is used on Saturday evenings.
	SuffixVespers = "Vespers and Midnight Praises"
	// SuffixLiturgy is used at every other time.
	SuffixLiturgy = "Divine Liturgy"
)

// Generator formats fallback titles in a fixed timezone. It holds no mutable
// state and is safe for concurrent use.
type Generator struct {
	loc *time.Location
}

// New returns a Generator for the named IANA timezone. An empty name selects
// DefaultTimezone.
func New(timezone string) (*Generator, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("titlegen: load timezone %q: %w", timezone, err)
	}
	return &Generator{loc: loc}, nil
}

// NewInLocation returns a Generator for an already resolved location.
func NewInLocation(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{loc: loc}
}

// Location returns the generator's timezone.
func (g *Generator) Location() *time.Location { return g.loc }

// Generate returns "<weekday>, <month> <day>, <year> - <suffix>" for now as
// seen in the generator's timezone.
func (g *Generator) Generate(now time.Time) string {
	local := now.In(g.loc)
	return local.Format(dateLayout) + " - " + suffix(local)
}

// suffix picks the service name. Saturday 17:00 through 23:45 inclusive is
// vespers; the boundary is compared at minute resolution.
func suffix(t time.Time) string {
	if t.Weekday() != time.Saturday {
		return SuffixLiturgy
	}
	h, m := t.Hour(), t.Minute()
	if h < 17 || (h == 23 && m > 45) {
		return SuffixLiturgy
	}
	return SuffixVespers
}
