// Package streak tracks consecutive-day activity counters.
package streak

import (
	"fmt"
	"time"

	"fitDietAPI/internal/apperr"
	"fitDietAPI/internal/localday"
)

type Kind string

const (
	KindLogin Kind = "login"
	KindGoal  Kind = "goal"
)

var ErrClockSkew = apperr.New(apperr.KindStateConflict, "clock_skew",
	"activity date is before the last recorded activity")

// Counter is the persisted state of one streak.
type Counter struct {
	Current  int        `json:"current"`
	Longest  int        `json:"longest"`
	LastDate *time.Time `json:"last_date,omitempty"`
}

type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeStarted
	OutcomeExtended
	OutcomeReset
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeExtended:
		return "extended"
	case OutcomeReset:
		return "reset"
	default:
		return "unchanged"
	}
}

// Record counts activity on day (a local calendar day). Recording the same
// day twice is a no-op; a day before LastDate is rejected with ErrClockSkew
// and leaves c untouched.
func Record(c *Counter, day time.Time) (Outcome, error) {
	day = localday.Normalize(day)

	if c.LastDate == nil {
		c.Current = 1
		c.LastDate = &day
		c.bumpLongest()
		return OutcomeStarted, nil
	}

	gap := localday.Between(*c.LastDate, day)
	switch {
	case gap < 0:
		return OutcomeUnchanged, fmt.Errorf("%w: %s after %s", ErrClockSkew,
			localday.Format(day), localday.Format(*c.LastDate))
	case gap == 0:
		return OutcomeUnchanged, nil
	case gap == 1:
		c.Current++
		c.LastDate = &day
		c.bumpLongest()
		return OutcomeExtended, nil
	default:
		c.Current = 1
		c.LastDate = &day
		c.bumpLongest()
		return OutcomeReset, nil
	}
}

func (c *Counter) bumpLongest() {
	if c.Current > c.Longest {
		c.Longest = c.Current
	}
}
