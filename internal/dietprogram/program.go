// Package dietprogram is the per-user state machine of an N-day diet program.
// Each day moves Locked → Unlocked → Completed and days unlock strictly in
// order: day k unlocks only when day k-1 is completed.
package dietprogram

import (
	"encoding/json"
	"fmt"
	"time"

	"fitDietAPI/internal/apperr"
)

type DayState string

const (
	DayLocked    DayState = "locked"
	DayUnlocked  DayState = "unlocked"
	DayCompleted DayState = "completed"
)

// transitions lists the only legal move out of each state.
var transitions = map[DayState]DayState{
	DayLocked:   DayUnlocked,
	DayUnlocked: DayCompleted,
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

var (
	ErrInvalidDay       = apperr.New(apperr.KindValidation, "invalid_day", "day number is out of range")
	ErrInvalidLength    = apperr.New(apperr.KindValidation, "invalid_length", "program must have at least one day")
	ErrUnknownDiet      = apperr.New(apperr.KindValidation, "unknown_diet", "unknown diet id")
	ErrDayLocked        = apperr.New(apperr.KindStateConflict, "day_locked", "day is locked")
	ErrAlreadyActive    = apperr.New(apperr.KindStateConflict, "already_active", "a program for this diet is already active")
	ErrProgramInactive  = apperr.New(apperr.KindStateConflict, "program_inactive", "program is no longer active")
	ErrAlreadyCompleted = apperr.New(apperr.KindAlreadyDone, "already_completed", "day is already completed")
	ErrProgramNotFound  = apperr.New(apperr.KindNotFound, "program_not_found", "program not found")
)

type Day struct {
	Number      int        `json:"day"`
	State       DayState   `json:"state"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MarshalJSON adds the unlocked/completed flags the mobile client reads.
func (d Day) MarshalJSON() ([]byte, error) {
	type day Day
	return json.Marshal(struct {
		day
		Unlocked  bool `json:"unlocked"`
		Completed bool `json:"completed"`
	}{
		day:       day(d),
		Unlocked:  d.State != DayLocked,
		Completed: d.State == DayCompleted,
	})
}

func (d *Day) move(to DayState) error {
	if transitions[d.State] != to {
		return fmt.Errorf("day %d: illegal transition %s -> %s", d.Number, d.State, to)
	}
	d.State = to
	return nil
}

type Program struct {
	ID          string     `json:"program_id"`
	UserID      string     `json:"user_id"`
	DietID      string     `json:"diet_id"`
	TotalDays   int        `json:"total_days"`
	CurrentDay  int        `json:"current_day"`
	Status      Status     `json:"status"`
	Days        []Day      `json:"days"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result describes a successful day completion.
type Result struct {
	Day      int  `json:"day"`
	NextDay  *int `json:"next_day"`
	Finished bool `json:"finished"`
}

// Start creates a program with day 1 unlocked and every other day locked.
func Start(id, userID, dietID string, totalDays int, now time.Time) (*Program, error) {
	if totalDays < 1 {
		return nil, ErrInvalidLength
	}
	days := make([]Day, totalDays)
	for i := range days {
		days[i] = Day{Number: i + 1, State: DayLocked}
	}
	days[0].State = DayUnlocked
	return &Program{
		ID:         id,
		UserID:     userID,
		DietID:     dietID,
		TotalDays:  totalDays,
		CurrentDay: 1,
		Status:     StatusActive,
		Days:       days,
		StartedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Day returns day n (1-based).
func (p *Program) Day(n int) (Day, error) {
	if n < 1 || n > p.TotalDays {
		return Day{}, fmt.Errorf("%w: day %d outside 1..%d", ErrInvalidDay, n, p.TotalDays)
	}
	return p.Days[n-1], nil
}

// CompleteDay marks day n completed. Completing an already completed day
// returns ErrAlreadyCompleted and changes nothing.
func (p *Program) CompleteDay(n int, now time.Time) (Result, error) {
	d, err := p.Day(n)
	if err != nil {
		return Result{}, err
	}
	if d.State == DayCompleted {
		return Result{Day: n, NextDay: p.NextDay(), Finished: p.Status == StatusCompleted},
			fmt.Errorf("%w: day %d", ErrAlreadyCompleted, n)
	}
	if p.Status != StatusActive {
		return Result{}, fmt.Errorf("%w: status %s", ErrProgramInactive, p.Status)
	}
	if d.State == DayLocked {
		return Result{}, fmt.Errorf("%w: day %d, current day is %d", ErrDayLocked, n, p.CurrentDay)
	}

	day := &p.Days[n-1]
	if err := day.move(DayCompleted); err != nil {
		return Result{}, err
	}
	at := now
	day.CompletedAt = &at
	p.UpdatedAt = now

	if n == p.CurrentDay && n < p.TotalDays {
		if err := p.Days[n].move(DayUnlocked); err != nil {
			return Result{}, err
		}
		p.CurrentDay = n + 1
	}

	if p.CompletedDays() == p.TotalDays {
		p.Status = StatusCompleted
		p.CurrentDay = 0
		p.CompletedAt = &at
	}

	return Result{Day: n, NextDay: p.NextDay(), Finished: p.Status == StatusCompleted}, nil
}

// NextDay is the unlocked day awaiting completion, nil when none remains.
func (p *Program) NextDay() *int {
	if p.Status != StatusActive || p.CurrentDay < 1 {
		return nil
	}
	n := p.CurrentDay
	return &n
}

// Abandon retires an active program. Its days are kept as they were.
func (p *Program) Abandon(now time.Time) {
	if p.Status != StatusActive {
		return
	}
	p.Status = StatusAbandoned
	p.UpdatedAt = now
}

func (p *Program) CompletedDays() int {
	n := 0
	for _, d := range p.Days {
		if d.State == DayCompleted {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants: days form a completed prefix,
// followed by at most one unlocked day, followed by locked days, and
// CurrentDay points at the unlocked day (0 once everything is completed).
func (p *Program) Validate() error {
	if len(p.Days) != p.TotalDays || p.TotalDays < 1 {
		return fmt.Errorf("program %s: %d days stored for total %d", p.ID, len(p.Days), p.TotalDays)
	}
	if p.Days[0].State == DayLocked {
		return fmt.Errorf("program %s: day 1 is locked", p.ID)
	}
	phase := DayCompleted
	unlocked, locked := 0, 0
	for _, d := range p.Days {
		switch d.State {
		case DayCompleted:
			if phase != DayCompleted {
				return fmt.Errorf("program %s: day %d completed after an open day", p.ID, d.Number)
			}
		case DayUnlocked:
			if phase != DayCompleted {
				return fmt.Errorf("program %s: day %d unlocked out of order", p.ID, d.Number)
			}
			phase = DayUnlocked
			unlocked = d.Number
		case DayLocked:
			phase = DayLocked
			locked++
		default:
			return fmt.Errorf("program %s: day %d has unknown state %q", p.ID, d.Number, d.State)
		}
	}
	if unlocked == 0 && locked > 0 {
		return fmt.Errorf("program %s: locked days remain but none is unlocked", p.ID)
	}
	if p.CurrentDay != unlocked {
		return fmt.Errorf("program %s: current day %d but unlocked day is %d", p.ID, p.CurrentDay, unlocked)
	}
	return nil
}
