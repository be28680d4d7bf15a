// Package progression holds the per-user progression record and the pure
// calculators (level, league) that derive its cached fields.
package progression

import (
	"time"

	"fitDietAPI/internal/streak"
)

// Record is the durable progression row of one user. XP and TotalPoints only
// ever grow; Level and League are caches refreshed on every save.
type Record struct {
	UserID             string     `json:"user_id" db:"user_id"`
	DisplayName        string     `json:"display_name" db:"display_name"`
	XP                 int64      `json:"xp" db:"xp"`
	Level              int        `json:"level" db:"level"`
	TotalPoints        int64      `json:"total_points" db:"total_points"`
	League             Tier       `json:"league" db:"league"`
	DailyStreak        int        `json:"daily_streak" db:"daily_streak"`
	LongestDailyStreak int        `json:"longest_daily_streak" db:"longest_daily_streak"`
	GoalStreak         int        `json:"goal_streak" db:"goal_streak"`
	LongestGoalStreak  int        `json:"longest_goal_streak" db:"longest_goal_streak"`
	LastLoginDate      *time.Time `json:"last_login_date" db:"last_login_date"`
	LastGoalDate       *time.Time `json:"last_goal_date" db:"last_goal_date"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Rules bundles the calculators used to derive cached fields.
type Rules struct {
	Levels  *LevelCalculator
	Leagues *LeagueAssigner
}

func NewRecord(userID string, now time.Time) *Record {
	return &Record{
		UserID:    userID,
		Level:     1,
		League:    TierBronze,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Grant adds xp and points. Negative amounts are ignored so the totals never
// decrease.
func (r *Record) Grant(xp, points int64) {
	if xp > 0 {
		r.XP += xp
	}
	if points > 0 {
		r.TotalPoints += points
	}
}

// Refresh recomputes Level and League from XP and TotalPoints.
func (r *Record) Refresh(rules Rules) {
	r.Level = rules.Levels.ForXP(r.XP).Level
	r.League = rules.Leagues.ForPoints(r.TotalPoints)
}

func (r *Record) Streak(kind streak.Kind) streak.Counter {
	if kind == streak.KindGoal {
		return streak.Counter{Current: r.GoalStreak, Longest: r.LongestGoalStreak, LastDate: r.LastGoalDate}
	}
	return streak.Counter{Current: r.DailyStreak, Longest: r.LongestDailyStreak, LastDate: r.LastLoginDate}
}

func (r *Record) SetStreak(kind streak.Kind, c streak.Counter) {
	if kind == streak.KindGoal {
		r.GoalStreak, r.LongestGoalStreak, r.LastGoalDate = c.Current, c.Longest, c.LastDate
		return
	}
	r.DailyStreak, r.LongestDailyStreak, r.LastLoginDate = c.Current, c.Longest, c.LastDate
}

// RecordActivity applies streak.Record to the counter of the given kind.
func (r *Record) RecordActivity(kind streak.Kind, day time.Time) (streak.Outcome, error) {
	c := r.Streak(kind)
	out, err := streak.Record(&c, day)
	if err != nil {
		return out, err
	}
	r.SetStreak(kind, c)
	return out, nil
}
