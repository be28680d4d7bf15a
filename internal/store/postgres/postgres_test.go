package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/localday"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
	"fitDietAPI/internal/store/postgres"
)

// setupTestDB connects to TEST_DATABASE_URL (or DATABASE_URL) and applies the
// schema. Tests share the database, so every test works on its own user ids.
func setupTestDB(t *testing.T) *postgres.Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := postgres.Open(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

// testUser returns an id unique to this run and deletes its rows afterwards.
func testUser(t *testing.T, s *postgres.Store, name string) string {
	t.Helper()
	id := fmt.Sprintf("pgtest_%s_%d", name, time.Now().UnixNano())
	t.Cleanup(func() {
		if err := s.DeleteUser(context.Background(), id); err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", id, err)
		}
	})
	return id
}

func standingOf(t *testing.T, s *postgres.Store, userID string) *leaderboard.LeaderboardEntry {
	t.Helper()
	entries, err := s.Standings(context.Background())
	require.NoError(t, err)
	for _, e := range entries {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}

var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func TestMigrateIsRepeatable(t *testing.T) {
	s := setupTestDB(t)
	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestProgressionRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "progression")
	day, err := localday.Parse("2025-03-10")
	require.NoError(t, err)

	err = s.WithUserTx(ctx, user, func(tx store.Tx) error {
		r, err := tx.Progression(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Level)
		assert.Equal(t, progression.TierBronze, r.League)
		assert.Nil(t, r.LastLoginDate)

		r.XP, r.TotalPoints, r.Level, r.League = 450, 600, 4, progression.TierSilver
		r.DailyStreak, r.LongestDailyStreak = 3, 5
		r.LastLoginDate = &day
		r.UpdatedAt = now
		return tx.SaveProgression(ctx, r)
	})
	require.NoError(t, err)

	err = s.WithUserTx(ctx, user, func(tx store.Tx) error {
		r, err := tx.Progression(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(450), r.XP)
		assert.Equal(t, progression.TierSilver, r.League)
		require.NotNil(t, r.LastLoginDate)
		assert.Equal(t, "2025-03-10", localday.Format(*r.LastLoginDate))
		assert.True(t, now.Equal(r.UpdatedAt))
		return nil
	})
	require.NoError(t, err)

	e := standingOf(t, s, user)
	require.NotNil(t, e)
	assert.Equal(t, int64(450), e.XP)
	assert.Equal(t, progression.TierSilver, e.League)
}

func TestClaimEventIsIdempotent(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "claim")

	err := s.WithUserTx(ctx, user, func(tx store.Tx) error {
		e := store.Event{Key: "task:water:2025-03-10", Kind: store.EventWater, XP: 20, Points: 10, CreatedAt: now}
		first, err := tx.ClaimEvent(ctx, e)
		require.NoError(t, err)
		second, err := tx.ClaimEvent(ctx, e)
		require.NoError(t, err)
		assert.True(t, first)
		assert.False(t, second)

		has, err := tx.HasEvent(ctx, e.Key)
		require.NoError(t, err)
		assert.True(t, has)

		_, err = tx.ClaimEvent(ctx, store.Event{Key: "task:water:2025-03-11", Kind: store.EventWater, CreatedAt: now.Add(time.Hour)})
		require.NoError(t, err)

		counts, err := tx.EventCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[store.EventWater])

		recent, err := tx.RecentEvents(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "task:water:2025-03-11", recent[0].Key)
		assert.Equal(t, store.EventWater, recent[0].Kind)
		return nil
	})
	require.NoError(t, err)
}

func TestAchievementsInsertOnce(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "achievements")

	err := s.WithUserTx(ctx, user, func(tx store.Tx) error {
		ok, err := tx.InsertAchievement(ctx, "first_steps", now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.InsertAchievement(ctx, "first_steps", now.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, ok)

		earned, err := tx.EarnedAchievements(ctx)
		require.NoError(t, err)
		assert.True(t, now.Equal(earned["first_steps"]))
		return nil
	})
	require.NoError(t, err)

	e := standingOf(t, s, user)
	require.NotNil(t, e)
	assert.Equal(t, 1, e.AchievementsCount)
}

func TestProgramRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "program")
	programID := user + "_prog"

	p, err := dietprogram.Start(programID, user, "keto-30", 3, now)
	require.NoError(t, err)

	err = s.WithUserTx(ctx, user, func(tx store.Tx) error {
		require.NoError(t, tx.InsertProgram(ctx, p))
		_, err := p.CompleteDay(1, now.Add(time.Hour))
		require.NoError(t, err)
		return tx.SaveProgram(ctx, p)
	})
	require.NoError(t, err)

	err = s.WithUserTx(ctx, user, func(tx store.Tx) error {
		got, err := tx.ActiveProgram(ctx)
		require.NoError(t, err)
		assert.Equal(t, dietprogram.StatusActive, got.Status)
		assert.Equal(t, 2, got.CurrentDay)
		require.Len(t, got.Days, 3)
		assert.Equal(t, dietprogram.DayCompleted, got.Days[0].State)
		require.NotNil(t, got.Days[0].CompletedAt)
		assert.True(t, now.Add(time.Hour).Equal(*got.Days[0].CompletedAt))
		assert.Equal(t, dietprogram.DayUnlocked, got.Days[1].State)
		assert.Equal(t, dietprogram.DayLocked, got.Days[2].State)
		assert.NoError(t, got.Validate())

		_, err = tx.Program(ctx, "missing")
		assert.ErrorIs(t, err, dietprogram.ErrProgramNotFound)

		all, err := tx.Programs(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Len(t, all[0].Days, 3)
		return nil
	})
	require.NoError(t, err)
}

func TestSaveProgram_UnknownProgram(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "unknown_program")

	p, err := dietprogram.Start(user+"_never_inserted", user, "keto-30", 3, now)
	require.NoError(t, err)

	err = s.WithUserTx(ctx, user, func(tx store.Tx) error {
		return tx.SaveProgram(ctx, p)
	})
	assert.ErrorIs(t, err, dietprogram.ErrProgramNotFound)
}

func TestProgramsAreScopedToUser(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	owner := testUser(t, s, "owner")
	other := testUser(t, s, "other")
	programID := owner + "_prog"

	p, err := dietprogram.Start(programID, owner, "keto-30", 3, now)
	require.NoError(t, err)
	require.NoError(t, s.WithUserTx(ctx, owner, func(tx store.Tx) error {
		return tx.InsertProgram(ctx, p)
	}))

	err = s.WithUserTx(ctx, other, func(tx store.Tx) error {
		_, err := tx.Program(ctx, programID)
		assert.ErrorIs(t, err, dietprogram.ErrProgramNotFound)
		_, err = tx.ActiveProgram(ctx)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDailyMetricsUpsert(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "metrics")
	day, err := localday.Parse("2025-03-10")
	require.NoError(t, err)

	_, err = s.DailyMetrics(ctx, user, day)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpsertDailyMetrics(ctx, user, day, dailytask.Metrics{WaterML: 500, WaterGoalML: 2000, UpdatedAt: now}))
	require.NoError(t, s.UpsertDailyMetrics(ctx, user, day, dailytask.Metrics{WaterML: 2100, WaterGoalML: 2000, UpdatedAt: now}))

	m, err := s.DailyMetrics(ctx, user, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2100), m.WaterML)
}

func TestDeleteUserCascades(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "delete")
	day, err := localday.Parse("2025-03-10")
	require.NoError(t, err)

	require.NoError(t, s.SetDisplayName(ctx, user, "Ana"))
	p, err := dietprogram.Start(user+"_prog", user, "keto-30", 3, now)
	require.NoError(t, err)
	require.NoError(t, s.WithUserTx(ctx, user, func(tx store.Tx) error {
		if _, err := tx.InsertAchievement(ctx, "first_steps", now); err != nil {
			return err
		}
		if _, err := tx.ClaimEvent(ctx, store.Event{Key: "task:login:2025-03-10", Kind: store.EventLogin, CreatedAt: now}); err != nil {
			return err
		}
		return tx.InsertProgram(ctx, p)
	}))
	require.NoError(t, s.UpsertDailyMetrics(ctx, user, day, dailytask.Metrics{Steps: 100, UpdatedAt: now}))
	require.NoError(t, s.RegisterDevice(ctx, store.Device{UserID: user, Token: user + "_tok", Platform: "ios", UpdatedAt: now}))

	e := standingOf(t, s, user)
	require.NotNil(t, e)
	assert.Equal(t, "Ana", e.Name)

	require.NoError(t, s.DeleteUser(ctx, user))

	assert.Nil(t, standingOf(t, s, user))
	tokens, err := s.DeviceTokens(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, tokens)
	_, err = s.DailyMetrics(ctx, user, day)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// a fresh row starts over with no ledger, achievements or programs
	err = s.WithUserTx(ctx, user, func(tx store.Tx) error {
		has, err := tx.HasEvent(ctx, "task:login:2025-03-10")
		require.NoError(t, err)
		assert.False(t, has)
		earned, err := tx.EarnedAchievements(ctx)
		require.NoError(t, err)
		assert.Empty(t, earned)
		programs, err := tx.Programs(ctx)
		require.NoError(t, err)
		assert.Empty(t, programs)
		return nil
	})
	require.NoError(t, err)
}

func TestWithUserTx_ConcurrentClaimsAwardOnce(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	user := testUser(t, s, "concurrent")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithUserTx(ctx, user, func(tx store.Tx) error {
				claimed, err := tx.ClaimEvent(ctx, store.Event{
					Key: "task:login:2025-03-10", Kind: store.EventLogin, XP: 10, Points: 5, CreatedAt: now,
				})
				if err != nil || !claimed {
					return err
				}
				r, err := tx.Progression(ctx)
				if err != nil {
					return err
				}
				r.Grant(10, 5)
				r.UpdatedAt = now
				return tx.SaveProgression(ctx, r)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	e := standingOf(t, s, user)
	require.NotNil(t, e)
	assert.Equal(t, int64(10), e.XP)
	assert.Equal(t, int64(5), e.TotalPoints)
}
