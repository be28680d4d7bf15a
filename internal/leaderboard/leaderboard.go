// Package leaderboard ranks progression snapshots by total points.
package leaderboard

import (
	"sort"

	"fitDietAPI/internal/progression"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type LeaderboardEntry struct {
	Rank              int              `json:"rank"`
	UserID            string           `json:"user_id" db:"user_id"`
	Name              string           `json:"name" db:"display_name"`
	Level             int              `json:"level" db:"level"`
	XP                int64            `json:"-" db:"xp"`
	TotalPoints       int64            `json:"total_points" db:"total_points"`
	League            progression.Tier `json:"league" db:"league"`
	DailyStreak       int              `json:"daily_streak" db:"daily_streak"`
	AchievementsCount int              `json:"achievements_count" db:"achievements_count"`
}

type Leaderboard struct {
	Entries     []*LeaderboardEntry `json:"leaderboard"`
	CurrentUser *LeaderboardEntry   `json:"current_user"`
	TotalUsers  int                 `json:"total_users"`
}

type Options struct {
	// League restricts the ranking to one tier; empty ranks everyone.
	League progression.Tier
	Limit  int
	// Caller is the requesting user's live entry. It is used when the caller
	// is missing from the snapshot.
	Caller *LeaderboardEntry
}

// NormalizeLimit clamps a requested page size into [1, MaxLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func less(a, b *LeaderboardEntry) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	return a.UserID < b.UserID
}

// order copies entries, sorts them by points desc then user id asc, and
// assigns 1-based ranks along that total order.
func order(entries []*LeaderboardEntry) []*LeaderboardEntry {
	out := make([]*LeaderboardEntry, len(entries))
	for i, e := range entries {
		c := *e
		out[i] = &c
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	for i, e := range out {
		e.Rank = i + 1
	}
	return out
}

// Rank builds one leaderboard page. The input slice is not modified. The
// caller's entry always carries its rank, even when it falls outside the page;
// when a league filter excludes the caller it is ranked among all users.
func Rank(entries []*LeaderboardEntry, opts Options) *Leaderboard {
	all := entries
	if opts.Caller != nil && !contains(entries, opts.Caller.UserID) {
		all = make([]*LeaderboardEntry, 0, len(entries)+1)
		all = append(all, entries...)
		all = append(all, opts.Caller)
	}

	pool := all
	if opts.League != "" {
		pool = make([]*LeaderboardEntry, 0, len(all))
		for _, e := range all {
			if e.League == opts.League {
				pool = append(pool, e)
			}
		}
	}

	ranked := order(pool)
	limit := NormalizeLimit(opts.Limit)
	page := ranked
	if len(page) > limit {
		page = page[:limit]
	}

	board := &Leaderboard{
		Entries:    page,
		TotalUsers: len(ranked),
	}
	if opts.Caller == nil {
		return board
	}

	board.CurrentUser = find(ranked, opts.Caller.UserID)
	if board.CurrentUser == nil {
		board.CurrentUser = find(order(all), opts.Caller.UserID)
	}
	return board
}

func contains(entries []*LeaderboardEntry, userID string) bool {
	for _, e := range entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

func find(entries []*LeaderboardEntry, userID string) *LeaderboardEntry {
	for _, e := range entries {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}
