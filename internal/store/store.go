// Package store declares the persistence contract of the progression engine.
// Implementations live in the postgres and sqlite subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/progression"
)

var ErrNotFound = errors.New("not found")

// EventKind groups reward ledger rows for the achievement counters.
type EventKind string

const (
	EventLogin       EventKind = "login"
	EventWater       EventKind = "water"
	EventSteps       EventKind = "steps"
	EventCalorie     EventKind = "calorie"
	EventPhoto       EventKind = "photo"
	EventDietDay     EventKind = "diet_day"
	EventDietProgram EventKind = "diet_program"
	EventAchievement EventKind = "achievement"
)

// Event is one row of the reward ledger. (UserID, Key) is unique, which is
// what makes every reward grant idempotent.
type Event struct {
	UserID    string    `json:"-"`
	Key       string    `json:"key"`
	Kind      EventKind `json:"kind"`
	XP        int64     `json:"xp"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type Device struct {
	UserID    string
	Token     string
	Platform  string
	UpdatedAt time.Time
}

// Store is safe for concurrent use.
type Store interface {
	// WithUserTx runs fn in a transaction holding the user's progression
	// row lock. The row is created on first use. fn's error rolls back.
	WithUserTx(ctx context.Context, userID string, fn func(Tx) error) error

	// Standings returns one entry per user with the achievement count
	// filled in, unordered and unranked.
	Standings(ctx context.Context) ([]*leaderboard.LeaderboardEntry, error)

	// DailyMetrics returns ErrNotFound when nothing was reported that day.
	DailyMetrics(ctx context.Context, userID string, day time.Time) (*dailytask.Metrics, error)
	UpsertDailyMetrics(ctx context.Context, userID string, day time.Time, m dailytask.Metrics) error

	// SetDisplayName creates the user's row when it does not exist yet.
	SetDisplayName(ctx context.Context, userID, name string) error
	// DeleteUser removes every row owned by the user.
	DeleteUser(ctx context.Context, userID string) error

	RegisterDevice(ctx context.Context, d Device) error
	DeviceTokens(ctx context.Context, userID string) ([]string, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is bound to one user and one transaction.
type Tx interface {
	Progression(ctx context.Context) (*progression.Record, error)
	SaveProgression(ctx context.Context, r *progression.Record) error

	// ClaimEvent inserts e and reports false when the key was already taken.
	ClaimEvent(ctx context.Context, e Event) (bool, error)
	HasEvent(ctx context.Context, key string) (bool, error)
	EventCounts(ctx context.Context) (map[EventKind]int64, error)
	RecentEvents(ctx context.Context, limit int) ([]Event, error)

	EarnedAchievements(ctx context.Context) (map[string]time.Time, error)
	// InsertAchievement reports false when the achievement was already held.
	InsertAchievement(ctx context.Context, achievementID string, at time.Time) (bool, error)

	// ActiveProgram returns ErrNotFound when the user has none.
	ActiveProgram(ctx context.Context) (*dietprogram.Program, error)
	Program(ctx context.Context, programID string) (*dietprogram.Program, error)
	Programs(ctx context.Context) ([]*dietprogram.Program, error)
	InsertProgram(ctx context.Context, p *dietprogram.Program) error
	SaveProgram(ctx context.Context, p *dietprogram.Program) error
}
