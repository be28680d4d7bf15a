package leaderboard_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/progression"
)

func entry(id string, points int64, league progression.Tier) *leaderboard.LeaderboardEntry {
	return &leaderboard.LeaderboardEntry{UserID: id, Name: id, TotalPoints: points, League: league}
}

func snapshot() []*leaderboard.LeaderboardEntry {
	return []*leaderboard.LeaderboardEntry{
		entry("u_c", 300, progression.TierBronze),
		entry("u_a", 900, progression.TierSilver),
		entry("u_b", 300, progression.TierBronze),
		entry("u_d", 1200, progression.TierSilver),
		entry("u_e", 10, progression.TierBronze),
	}
}

func ranks(board *leaderboard.Leaderboard) []string {
	out := make([]string, 0, len(board.Entries))
	for _, e := range board.Entries {
		out = append(out, fmt.Sprintf("%d:%s", e.Rank, e.UserID))
	}
	return out
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	board := leaderboard.Rank(snapshot(), leaderboard.Options{})

	assert.Equal(t, []string{"1:u_d", "2:u_a", "3:u_b", "4:u_c", "5:u_e"}, ranks(board))
	assert.Equal(t, 5, board.TotalUsers)
	assert.Nil(t, board.CurrentUser)
}

func TestRank_StableAcrossRuns(t *testing.T) {
	snap := snapshot()

	first := leaderboard.Rank(snap, leaderboard.Options{})
	second := leaderboard.Rank(snap, leaderboard.Options{})

	assert.Equal(t, ranks(first), ranks(second))
	// the input snapshot is left untouched
	assert.Equal(t, "u_c", snap[0].UserID)
	assert.Zero(t, snap[0].Rank)
}

func TestRank_CallerOutsidePage(t *testing.T) {
	snap := snapshot()
	caller := snap[4]

	board := leaderboard.Rank(snap, leaderboard.Options{Limit: 2, Caller: caller})

	assert.Equal(t, []string{"1:u_d", "2:u_a"}, ranks(board))
	require.NotNil(t, board.CurrentUser)
	assert.Equal(t, "u_e", board.CurrentUser.UserID)
	assert.Equal(t, 5, board.CurrentUser.Rank)
}

func TestRank_CallerMissingFromSnapshot(t *testing.T) {
	caller := entry("u_new", 500, progression.TierSilver)

	board := leaderboard.Rank(snapshot(), leaderboard.Options{Caller: caller})

	require.NotNil(t, board.CurrentUser)
	assert.Equal(t, 3, board.CurrentUser.Rank)
	assert.Equal(t, 6, board.TotalUsers)
}

func TestRank_LeagueFilter(t *testing.T) {
	snap := snapshot()

	board := leaderboard.Rank(snap, leaderboard.Options{League: progression.TierBronze, Caller: snap[2]})

	assert.Equal(t, []string{"1:u_b", "2:u_c", "3:u_e"}, ranks(board))
	require.NotNil(t, board.CurrentUser)
	assert.Equal(t, 1, board.CurrentUser.Rank)
}

func TestRank_LeagueFilterExcludingCaller(t *testing.T) {
	snap := snapshot()

	board := leaderboard.Rank(snap, leaderboard.Options{League: progression.TierSilver, Caller: snap[4]})

	assert.Equal(t, []string{"1:u_d", "2:u_a"}, ranks(board))
	require.NotNil(t, board.CurrentUser)
	assert.Equal(t, 5, board.CurrentUser.Rank, "ranked among all users")
}

func TestRank_EmptySnapshot(t *testing.T) {
	board := leaderboard.Rank(nil, leaderboard.Options{})

	assert.NotNil(t, board.Entries)
	assert.Empty(t, board.Entries)
	assert.Zero(t, board.TotalUsers)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, leaderboard.DefaultLimit, leaderboard.NormalizeLimit(0))
	assert.Equal(t, leaderboard.MaxLimit, leaderboard.NormalizeLimit(1000))
	assert.Equal(t, 7, leaderboard.NormalizeLimit(7))
}
