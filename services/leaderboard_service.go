package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"fitDietAPI/internal/cache"
	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
)

// LeaderboardService ranks users from a periodically refreshed snapshot.
// The caller's own entry is always read live.
type LeaderboardService struct {
	store store.Store
	cache cache.SnapshotCache
	rules progression.Rules
	now   func() time.Time
}

func NewLeaderboardService(s store.Store, c cache.SnapshotCache, rules progression.Rules) *LeaderboardService {
	return &LeaderboardService{
		store: s,
		cache: c,
		rules: rules,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// standings loads every user with level and league derived from the current
// rules. Stored values lag behind a threshold change until the user's next
// award.
func (s *LeaderboardService) standings(ctx context.Context) ([]*leaderboard.LeaderboardEntry, error) {
	entries, err := s.store.Standings(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		e.Level = s.rules.Levels.ForXP(e.XP).Level
		e.League = s.rules.Leagues.ForPoints(e.TotalPoints)
	}
	return entries, nil
}

// Refresh rebuilds the snapshot from the store.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	start := time.Now()
	entries, err := s.standings(ctx)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, &cache.Snapshot{Entries: entries, RefreshedAt: s.now()}); err != nil {
		return err
	}
	leaderboardRefresh.Observe(time.Since(start).Seconds())
	return nil
}

// Schedule registers the periodic refresh on sched. The first run happens
// immediately.
func (s *LeaderboardService) Schedule(sched gocron.Scheduler, interval time.Duration) error {
	_, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := s.Refresh(ctx); err != nil {
				log.Printf("[Scheduler] leaderboard refresh failed: %v", err)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (s *LeaderboardService) snapshot(ctx context.Context) ([]*leaderboard.LeaderboardEntry, error) {
	snap, err := s.cache.Get(ctx)
	if err == nil {
		return snap.Entries, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		log.Printf("LeaderboardService: snapshot cache unavailable: %v", err)
		return s.standings(ctx)
	}

	// nothing cached yet, load synchronously
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	snap, err = s.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entries, nil
}

func (s *LeaderboardService) callerEntry(ctx context.Context, userID string) (*leaderboard.LeaderboardEntry, error) {
	var entry *leaderboard.LeaderboardEntry
	err := s.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		rec, err := tx.Progression(ctx)
		if err != nil {
			return err
		}
		earned, err := tx.EarnedAchievements(ctx)
		if err != nil {
			return err
		}
		rec.Refresh(s.rules)
		entry = &leaderboard.LeaderboardEntry{
			UserID:            rec.UserID,
			Name:              rec.DisplayName,
			Level:             rec.Level,
			XP:                rec.XP,
			TotalPoints:       rec.TotalPoints,
			League:            rec.League,
			DailyStreak:       rec.DailyStreak,
			AchievementsCount: len(earned),
		}
		return nil
	})
	return entry, err
}

// GetLeaderboard returns one page ordered by points. league may be empty.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, userID, league string, limit int) (*leaderboard.Leaderboard, error) {
	var tier progression.Tier
	if league != "" {
		var err error
		if tier, err = progression.ParseTier(league); err != nil {
			return nil, err
		}
	}

	entries, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	caller, err := s.callerEntry(ctx, userID)
	if err != nil {
		return nil, err
	}

	// the caller's live standing replaces its snapshot row
	merged := make([]*leaderboard.LeaderboardEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.UserID != userID {
			merged = append(merged, e)
		}
	}
	merged = append(merged, caller)

	return leaderboard.Rank(merged, leaderboard.Options{
		League: tier,
		Limit:  limit,
		Caller: caller,
	}), nil
}
