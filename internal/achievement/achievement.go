// Package achievement defines the badge catalog types and the unlock
// evaluation over a user's cumulative stats.
package achievement

import (
	"fmt"
	"time"
)

type CriteriaType string

const (
	CriteriaLevel              CriteriaType = "level"
	CriteriaXP                 CriteriaType = "xp"
	CriteriaTotalPoints        CriteriaType = "total_points"
	CriteriaDailyStreak        CriteriaType = "daily_streak"
	CriteriaLongestDailyStreak CriteriaType = "longest_daily_streak"
	CriteriaGoalStreak         CriteriaType = "goal_streak"
	CriteriaLongestGoalStreak  CriteriaType = "longest_goal_streak"
	CriteriaLogins             CriteriaType = "logins"
	CriteriaWaterGoals         CriteriaType = "water_goals"
	CriteriaStepGoals          CriteriaType = "step_goals"
	CriteriaCalorieGoals       CriteriaType = "calorie_goals"
	CriteriaPhotosLogged       CriteriaType = "photos_logged"
	CriteriaDietDays           CriteriaType = "diet_days_completed"
	CriteriaProgramsCompleted  CriteriaType = "programs_completed"
)

var knownCriteria = map[CriteriaType]bool{
	CriteriaLevel: true, CriteriaXP: true, CriteriaTotalPoints: true,
	CriteriaDailyStreak: true, CriteriaLongestDailyStreak: true,
	CriteriaGoalStreak: true, CriteriaLongestGoalStreak: true,
	CriteriaLogins: true, CriteriaWaterGoals: true, CriteriaStepGoals: true,
	CriteriaCalorieGoals: true, CriteriaPhotosLogged: true,
	CriteriaDietDays: true, CriteriaProgramsCompleted: true,
}

type Achievement struct {
	ID            string       `json:"id" toml:"id"`
	Name          string       `json:"name" toml:"name"`
	Description   string       `json:"description" toml:"description"`
	Icon          string       `json:"icon" toml:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" toml:"criteria"`
	CriteriaValue int64        `json:"criteria_value" toml:"threshold"`
	XPReward      int64        `json:"xp_reward" toml:"xp_reward"`
	PointsReward  int64        `json:"points_reward" toml:"points_reward"`
}

type AchievementWithStatus struct {
	Achievement
	Unlocked bool       `json:"unlocked"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// Stats is a snapshot of the user's cumulative counters keyed by criteria.
type Stats map[CriteriaType]int64

func (a Achievement) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("achievement without id")
	}
	if !knownCriteria[a.CriteriaType] {
		return fmt.Errorf("achievement %s: unknown criteria %q", a.ID, a.CriteriaType)
	}
	if a.CriteriaValue <= 0 {
		return fmt.Errorf("achievement %s: threshold must be positive", a.ID)
	}
	if a.XPReward < 0 || a.PointsReward < 0 {
		return fmt.Errorf("achievement %s: rewards cannot be negative", a.ID)
	}
	return nil
}

// Met reports whether the unlock predicate holds for stats.
func (a Achievement) Met(stats Stats) bool {
	return stats[a.CriteriaType] >= a.CriteriaValue
}

// Evaluate returns catalog entries whose predicate holds and that are not in
// earned, in catalog order. It has no side effects, so calling it again with
// the same inputs yields the same answer.
func Evaluate(catalog []Achievement, stats Stats, earned map[string]time.Time) []Achievement {
	var unlocked []Achievement
	for _, a := range catalog {
		if _, ok := earned[a.ID]; ok {
			continue
		}
		if a.Met(stats) {
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

// Split partitions the catalog into earned and unearned views.
func Split(catalog []Achievement, earned map[string]time.Time) (got, missing []AchievementWithStatus) {
	got = []AchievementWithStatus{}
	missing = []AchievementWithStatus{}
	for _, a := range catalog {
		if at, ok := earned[a.ID]; ok {
			at := at
			got = append(got, AchievementWithStatus{Achievement: a, Unlocked: true, EarnedAt: &at})
			continue
		}
		missing = append(missing, AchievementWithStatus{Achievement: a})
	}
	return got, missing
}
