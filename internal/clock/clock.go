// Package clock supplies the time source used by scheduling decisions.
//
// The daemon evaluates run windows in a configured IANA time zone, so every
// component that asks "what time is it" goes through a Clock instead of
// calling time.Now directly. Tests substitute a Fixed clock to pin the
// schedule to known instants.
package clock

import (
	"fmt"
	"time"
)

// Clock returns the current time in the service time zone.
type Clock interface {
	Now() time.Time
}

// Zone is a Clock backed by the wall clock and a fixed *time.Location.
type Zone struct {
	loc *time.Location
}

// NewZone resolves an IANA zone name (e.g. "America/Santiago"). An empty
// name selects the process-local zone.
func NewZone(name string) (*Zone, error) {
	if name == "" {
		return &Zone{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// Now returns the wall-clock time in the configured zone.
func (z *Zone) Now() time.Time {
	return time.Now().In(z.loc)
}

// Location exposes the underlying zone for timestamp formatting.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// Fixed is a Clock that always reports the same instant. Test helper.
type Fixed struct {
	Time time.Time
}

func (f Fixed) Now() time.Time { return f.Time }

var (
	_ Clock = (*Zone)(nil)
	_ Clock = Fixed{}
)
