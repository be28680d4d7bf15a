package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/internal/localday"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
	"fitDietAPI/internal/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "fit.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

var now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func TestMigrateIsRepeatable(t *testing.T) {
	s := openStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestWithUserTx_CreatesAndSavesProgression(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	day, err := localday.Parse("2025-03-10")
	require.NoError(t, err)

	err = s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		r, err := tx.Progression(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Level)
		assert.Equal(t, progression.TierBronze, r.League)
		assert.Nil(t, r.LastLoginDate)

		r.XP, r.TotalPoints, r.Level = 120, 60, 2
		r.DailyStreak, r.LongestDailyStreak = 3, 5
		r.LastLoginDate = &day
		r.DisplayName = "Ana"
		r.UpdatedAt = now
		return tx.SaveProgression(ctx, r)
	})
	require.NoError(t, err)

	err = s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		r, err := tx.Progression(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(120), r.XP)
		assert.Equal(t, 2, r.Level)
		assert.Equal(t, 5, r.LongestDailyStreak)
		require.NotNil(t, r.LastLoginDate)
		assert.True(t, day.Equal(*r.LastLoginDate))
		assert.True(t, now.Equal(r.UpdatedAt))
		return nil
	})
	require.NoError(t, err)
}

func TestWithUserTx_RollsBackOnError(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		ok, err := tx.ClaimEvent(ctx, store.Event{Key: "task:login:2025-03-10", Kind: store.EventLogin, XP: 10, CreatedAt: now})
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		has, err := tx.HasEvent(ctx, "task:login:2025-03-10")
		require.NoError(t, err)
		assert.False(t, has)
		return nil
	})
	require.NoError(t, err)
}

func TestClaimEventIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		e := store.Event{Key: "task:water:2025-03-10", Kind: store.EventWater, XP: 20, Points: 10, CreatedAt: now}
		first, err := tx.ClaimEvent(ctx, e)
		require.NoError(t, err)
		second, err := tx.ClaimEvent(ctx, e)
		require.NoError(t, err)

		assert.True(t, first)
		assert.False(t, second)

		_, err = tx.ClaimEvent(ctx, store.Event{Key: "task:water:2025-03-11", Kind: store.EventWater, CreatedAt: now.Add(time.Hour)})
		require.NoError(t, err)

		counts, err := tx.EventCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[store.EventWater])

		recent, err := tx.RecentEvents(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "task:water:2025-03-11", recent[0].Key)
		return nil
	})
	require.NoError(t, err)
}

func TestAchievementsInsertOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
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

	standings, err := s.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, 1, standings[0].AchievementsCount)
}

func TestProgramRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p, err := dietprogram.Start("prog_1", "user_1", "keto-30", 3, now)
	require.NoError(t, err)

	err = s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		require.NoError(t, tx.InsertProgram(ctx, p))
		_, err := p.CompleteDay(1, now.Add(time.Hour))
		require.NoError(t, err)
		return tx.SaveProgram(ctx, p)
	})
	require.NoError(t, err)

	err = s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		got, err := tx.ActiveProgram(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentDay)
		require.Len(t, got.Days, 3)
		assert.Equal(t, dietprogram.DayCompleted, got.Days[0].State)
		assert.Equal(t, dietprogram.DayUnlocked, got.Days[1].State)
		assert.Equal(t, dietprogram.DayLocked, got.Days[2].State)
		assert.NoError(t, got.Validate())

		_, err = tx.Program(ctx, "missing")
		assert.ErrorIs(t, err, dietprogram.ErrProgramNotFound)

		all, err := tx.Programs(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestProgramsAreScopedToUser(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	p, err := dietprogram.Start("prog_1", "user_1", "keto-30", 3, now)
	require.NoError(t, err)
	require.NoError(t, s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		return tx.InsertProgram(ctx, p)
	}))

	err = s.WithUserTx(ctx, "user_2", func(tx store.Tx) error {
		_, err := tx.Program(ctx, "prog_1")
		assert.ErrorIs(t, err, dietprogram.ErrProgramNotFound)
		_, err = tx.ActiveProgram(ctx)
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDailyMetricsUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	day, err := localday.Parse("2025-03-10")
	require.NoError(t, err)

	_, err = s.DailyMetrics(ctx, "user_1", day)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpsertDailyMetrics(ctx, "user_1", day, dailytask.Metrics{WaterML: 500, WaterGoalML: 2000, UpdatedAt: now}))
	require.NoError(t, s.UpsertDailyMetrics(ctx, "user_1", day, dailytask.Metrics{WaterML: 2100, WaterGoalML: 2000, UpdatedAt: now}))

	m, err := s.DailyMetrics(ctx, "user_1", day)
	require.NoError(t, err)
	assert.Equal(t, int64(2100), m.WaterML)
}

func TestDeviceTokens(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterDevice(ctx, store.Device{UserID: "user_1", Token: "tok_a", Platform: "ios", UpdatedAt: now}))
	require.NoError(t, s.RegisterDevice(ctx, store.Device{UserID: "user_1", Token: "tok_b", Platform: "android", UpdatedAt: now}))
	// A token that moves to another account follows it.
	require.NoError(t, s.RegisterDevice(ctx, store.Device{UserID: "user_2", Token: "tok_b", Platform: "android", UpdatedAt: now}))

	tokens, err := s.DeviceTokens(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok_a"}, tokens)
}

func TestDeleteUserCascades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetDisplayName(ctx, "user_1", "Ana"))
	require.NoError(t, s.WithUserTx(ctx, "user_1", func(tx store.Tx) error {
		_, err := tx.InsertAchievement(ctx, "first_steps", now)
		return err
	}))
	require.NoError(t, s.RegisterDevice(ctx, store.Device{UserID: "user_1", Token: "tok", UpdatedAt: now}))

	standings, err := s.Standings(ctx)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, "Ana", standings[0].Name)

	require.NoError(t, s.DeleteUser(ctx, "user_1"))

	standings, err = s.Standings(ctx)
	require.NoError(t, err)
	assert.Empty(t, standings)
	tokens, err := s.DeviceTokens(ctx, "user_1")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
