package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/cache"
	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/progression"
)

// seedStandings leaves user_b at 20 points, user_a at 15 and user_c at 0.
func seedStandings(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	_, err := f.game.DailyLogin(ctx, "user_a", time.UTC)
	require.NoError(t, err)
	_, err = f.game.DailyLogin(ctx, "user_b", time.UTC)
	require.NoError(t, err)
	_, err = f.game.LogPhoto(ctx, "user_b", time.UTC)
	require.NoError(t, err)
}

func userIDs(board []*leaderboard.LeaderboardEntry) []string {
	ids := make([]string, 0, len(board))
	for _, e := range board {
		ids = append(ids, e.UserID)
	}
	return ids
}

func TestGetLeaderboard_IncludesCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStandings(t, f)

	svc := NewLeaderboardService(f.store, cache.NewMemory(), f.engine.rules())
	require.NoError(t, svc.Refresh(ctx))

	board, err := svc.GetLeaderboard(ctx, "user_c", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_b", "user_a", "user_c"}, userIDs(board.Entries))
	assert.Equal(t, 3, board.TotalUsers)
	require.NotNil(t, board.CurrentUser)
	assert.Equal(t, 3, board.CurrentUser.Rank)
	assert.Equal(t, "Ana", board.Entries[1].Name)
	assert.Equal(t, 1, board.Entries[1].AchievementsCount)

	page, err := svc.GetLeaderboard(ctx, "user_c", "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_b"}, userIDs(page.Entries))
	assert.Equal(t, 3, page.CurrentUser.Rank)
}

func TestGetLeaderboard_CallerIsLiveOthersAreSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStandings(t, f)

	svc := NewLeaderboardService(f.store, cache.NewMemory(), f.engine.rules())
	require.NoError(t, svc.Refresh(ctx))

	_, err := f.game.LogPhoto(ctx, "user_a", time.UTC)
	require.NoError(t, err)

	// user_a now ties user_b and wins the tie on user id
	asA, err := svc.GetLeaderboard(ctx, "user_a", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, asA.CurrentUser.Rank)
	assert.Equal(t, int64(20), asA.CurrentUser.TotalPoints)

	asB, err := svc.GetLeaderboard(ctx, "user_b", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, asB.CurrentUser.Rank)

	require.NoError(t, svc.Refresh(ctx))
	asB, err = svc.GetLeaderboard(ctx, "user_b", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, asB.CurrentUser.Rank)
}

func TestGetLeaderboard_LeagueFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStandings(t, f)
	svc := NewLeaderboardService(f.store, cache.NewMemory(), f.engine.rules())

	silver, err := svc.GetLeaderboard(ctx, "user_a", "silver", 0)
	require.NoError(t, err)
	assert.Empty(t, silver.Entries)
	assert.Zero(t, silver.TotalUsers)
	require.NotNil(t, silver.CurrentUser)
	assert.Equal(t, progression.TierBronze, silver.CurrentUser.League)
	assert.Equal(t, 2, silver.CurrentUser.Rank)

	_, err = svc.GetLeaderboard(ctx, "user_a", "wood", 0)
	assert.ErrorIs(t, err, progression.ErrUnknownLeague)
}

func TestRefresh_DerivesLeagueAndLevelFromCurrentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStandings(t, f)

	// thresholds lowered after the rows were written
	levels, err := progression.NewLevelCalculator([]int64{0, 1})
	require.NoError(t, err)
	leagues, err := progression.NewLeagueAssigner([]int64{0, 10, 16, 100, 200, 300})
	require.NoError(t, err)
	svc := NewLeaderboardService(f.store, cache.NewMemory(), progression.Rules{Levels: levels, Leagues: leagues})
	require.NoError(t, svc.Refresh(ctx))

	gold, err := svc.GetLeaderboard(ctx, "user_a", "gold", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_b"}, userIDs(gold.Entries))
	assert.Equal(t, progression.TierGold, gold.Entries[0].League)
	assert.Equal(t, 2, gold.Entries[0].Level)
	assert.Equal(t, progression.TierSilver, gold.CurrentUser.League)
	assert.Equal(t, 2, gold.CurrentUser.Level)

	silver, err := svc.GetLeaderboard(ctx, "user_b", "silver", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_a"}, userIDs(silver.Entries))
}

func TestGetLeaderboard_EmptyBoardHasOnlyCaller(t *testing.T) {
	f := newFixture(t)
	svc := NewLeaderboardService(f.store, cache.NewMemory(), f.engine.rules())

	board, err := svc.GetLeaderboard(context.Background(), "user_a", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_a"}, userIDs(board.Entries))
	assert.Equal(t, 1, board.CurrentUser.Rank)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context) (*cache.Snapshot, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, *cache.Snapshot) error {
	return errors.New("connection refused")
}

func TestGetLeaderboard_FallsBackToStoreWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedStandings(t, f)
	svc := NewLeaderboardService(f.store, brokenCache{}, f.engine.rules())

	board, err := svc.GetLeaderboard(ctx, "user_a", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, board.TotalUsers)
	assert.Error(t, svc.Refresh(ctx))
}

func TestSchedule_RefreshesSnapshot(t *testing.T) {
	f := newFixture(t)
	seedStandings(t, f)
	memory := cache.NewMemory()
	svc := NewLeaderboardService(f.store, memory, f.engine.rules())

	sched, err := gocron.NewScheduler()
	require.NoError(t, err)
	require.NoError(t, svc.Schedule(sched, time.Hour))
	sched.Start()
	t.Cleanup(func() { _ = sched.Shutdown() })

	assert.Eventually(t, func() bool {
		snap, err := memory.Get(context.Background())
		return err == nil && len(snap.Entries) == 2
	}, 5*time.Second, 20*time.Millisecond)
}
