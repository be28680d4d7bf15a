package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"fitDietAPI/internal/achievement"
	"fitDietAPI/internal/catalog"
	"fitDietAPI/internal/localday"
	"fitDietAPI/internal/notification"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
)

// Award is one idempotent grant. Key identifies it in the reward ledger; a
// second award with the same key is a no-op.
type Award struct {
	Key    string
	Kind   store.EventKind
	XP     int64
	Points int64
}

// Rewards summarises what one operation changed on the progression record.
type Rewards struct {
	LevelUp  bool `json:"level_up"`
	NewLevel *int `json:"new_level,omitempty"`
}

type Outcome struct {
	XPAwarded       int64
	PointsAwarded   int64
	Rewards         Rewards
	NewAchievements []achievement.Achievement
	// Claimed lists the award keys that were granted by this call.
	Claimed map[string]bool
}

// Engine applies awards and achievement unlocks to a locked progression
// record. Every service that grants XP goes through it.
type Engine struct {
	store    store.Store
	catalog  *catalog.Catalog
	notifier Notifier
	now      func() time.Time
}

func NewEngine(s store.Store, c *catalog.Catalog, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{
		store:    s,
		catalog:  c,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) rules() progression.Rules {
	return e.catalog.Rules()
}

// apply claims every award, grants what was newly claimed, unlocks any
// achievements that became reachable and saves rec. It must run inside the
// user's transaction.
func (e *Engine) apply(ctx context.Context, tx store.Tx, rec *progression.Record, awards []Award, now time.Time) (*Outcome, error) {
	out := &Outcome{
		NewAchievements: []achievement.Achievement{},
		Claimed:         make(map[string]bool, len(awards)),
	}
	before := rec.Level

	for _, a := range awards {
		claimed, err := tx.ClaimEvent(ctx, store.Event{
			UserID: rec.UserID, Key: a.Key, Kind: a.Kind,
			XP: a.XP, Points: a.Points, CreatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}
		out.Claimed[a.Key] = true
		rec.Grant(a.XP, a.Points)
		out.XPAwarded += a.XP
		out.PointsAwarded += a.Points
		xpAwarded.WithLabelValues(string(a.Kind)).Add(float64(a.XP))
	}
	rec.Refresh(e.rules())

	if err := e.unlockAchievements(ctx, tx, rec, out, now); err != nil {
		return nil, err
	}

	rec.UpdatedAt = now
	if err := tx.SaveProgression(ctx, rec); err != nil {
		return nil, err
	}

	if rec.Level > before {
		lvl := rec.Level
		out.Rewards = Rewards{LevelUp: true, NewLevel: &lvl}
		levelUps.Inc()
	}
	return out, nil
}

// unlockAchievements repeats evaluation until nothing new unlocks, since an
// achievement's own reward can satisfy another one.
func (e *Engine) unlockAchievements(ctx context.Context, tx store.Tx, rec *progression.Record, out *Outcome, now time.Time) error {
	earned, err := tx.EarnedAchievements(ctx)
	if err != nil {
		return err
	}
	table := e.catalog.Achievements()

	for {
		stats, err := e.stats(ctx, tx, rec)
		if err != nil {
			return err
		}
		unlocked := achievement.Evaluate(table, stats, earned)
		if len(unlocked) == 0 {
			return nil
		}

		for _, a := range unlocked {
			inserted, err := tx.InsertAchievement(ctx, a.ID, now)
			if err != nil {
				return err
			}
			earned[a.ID] = now
			if !inserted {
				continue
			}
			claimed, err := tx.ClaimEvent(ctx, store.Event{
				UserID: rec.UserID, Key: achievementKey(a.ID), Kind: store.EventAchievement,
				XP: a.XPReward, Points: a.PointsReward, CreatedAt: now,
			})
			if err != nil {
				return err
			}
			if claimed {
				rec.Grant(a.XPReward, a.PointsReward)
				out.XPAwarded += a.XPReward
				out.PointsAwarded += a.PointsReward
				xpAwarded.WithLabelValues(string(store.EventAchievement)).Add(float64(a.XPReward))
			}
			out.NewAchievements = append(out.NewAchievements, a)
			achievementsUnlocked.WithLabelValues(a.ID).Inc()
			log.Printf("Engine: user %s unlocked achievement %s", rec.UserID, a.ID)
		}
		rec.Refresh(e.rules())
	}
}

func (e *Engine) stats(ctx context.Context, tx store.Tx, rec *progression.Record) (achievement.Stats, error) {
	counts, err := tx.EventCounts(ctx)
	if err != nil {
		return nil, err
	}
	return achievement.Stats{
		achievement.CriteriaLevel:              int64(rec.Level),
		achievement.CriteriaXP:                 rec.XP,
		achievement.CriteriaTotalPoints:        rec.TotalPoints,
		achievement.CriteriaDailyStreak:        int64(rec.DailyStreak),
		achievement.CriteriaLongestDailyStreak: int64(rec.LongestDailyStreak),
		achievement.CriteriaGoalStreak:         int64(rec.GoalStreak),
		achievement.CriteriaLongestGoalStreak:  int64(rec.LongestGoalStreak),
		achievement.CriteriaLogins:             counts[store.EventLogin],
		achievement.CriteriaWaterGoals:         counts[store.EventWater],
		achievement.CriteriaStepGoals:          counts[store.EventSteps],
		achievement.CriteriaCalorieGoals:       counts[store.EventCalorie],
		achievement.CriteriaPhotosLogged:       counts[store.EventPhoto],
		achievement.CriteriaDietDays:           counts[store.EventDietDay],
		achievement.CriteriaProgramsCompleted:  counts[store.EventDietProgram],
	}, nil
}

// announce queues pushes for a committed outcome.
func (e *Engine) announce(userID string, out *Outcome) {
	if out == nil {
		return
	}
	if out.Rewards.LevelUp {
		e.notifier.Notify(notification.Message{
			UserID: userID,
			Type:   notification.MessageLevelUp,
			Title:  "Level up!",
			Body:   fmt.Sprintf("You reached level %d", *out.Rewards.NewLevel),
			Data:   map[string]string{"level": fmt.Sprint(*out.Rewards.NewLevel)},
		})
	}
	for _, a := range out.NewAchievements {
		e.notifier.Notify(notification.Message{
			UserID: userID,
			Type:   notification.MessageAchievement,
			Title:  "Achievement unlocked",
			Body:   a.Name,
			Data:   map[string]string{"achievement_id": a.ID},
		})
	}
}

func taskKey(task string, day time.Time) string {
	return "task:" + task + ":" + localday.Format(day)
}

func dietDayKey(programID string, day int) string {
	return fmt.Sprintf("diet:%s:day:%d", programID, day)
}

func dietProgramKey(programID string) string {
	return "diet:" + programID + ":complete"
}

func achievementKey(id string) string {
	return "achievement:" + id
}
