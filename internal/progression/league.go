package progression

import (
	"fmt"

	"fitDietAPI/internal/apperr"
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
	TierLegend   Tier = "legend"
)

// Tiers lists the leagues from lowest to highest.
var Tiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum, TierDiamond, TierLegend}

var tierNames = map[Tier]string{
	TierBronze:   "Bronze League",
	TierSilver:   "Silver League",
	TierGold:     "Gold League",
	TierPlatinum: "Platinum League",
	TierDiamond:  "Diamond League",
	TierLegend:   "Legend League",
}

func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

var ErrUnknownLeague = apperr.New(apperr.KindValidation, "unknown_league", "unknown league")

func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownLeague, s)
	}
	return t, nil
}

// LeagueInfo describes the league a points total falls in.
type LeagueInfo struct {
	Tier         Tier   `json:"tier"`
	Name         string `json:"name"`
	MinPoints    int64  `json:"min_points"`
	MaxPoints    *int64 `json:"max_points"`
	NextTier     *Tier  `json:"next_tier"`
	PointsToNext int64  `json:"points_to_next"`
}

// LeagueAssigner maps total points to a tier. Ranges are contiguous:
// tier i covers [mins[i], mins[i+1]) and the last tier is open ended.
type LeagueAssigner struct {
	mins []int64
}

func NewLeagueAssigner(mins []int64) (*LeagueAssigner, error) {
	if len(mins) != len(Tiers) {
		return nil, fmt.Errorf("expected %d league thresholds, got %d", len(Tiers), len(mins))
	}
	if mins[0] != 0 {
		return nil, fmt.Errorf("%s must start at 0 points, got %d", Tiers[0], mins[0])
	}
	for i := 1; i < len(mins); i++ {
		if mins[i] <= mins[i-1] {
			return nil, fmt.Errorf("%s threshold %d is not above %s threshold %d",
				Tiers[i], mins[i], Tiers[i-1], mins[i-1])
		}
	}
	m := make([]int64, len(mins))
	copy(m, mins)
	return &LeagueAssigner{mins: m}, nil
}

func (a *LeagueAssigner) index(points int64) int {
	for i := len(a.mins) - 1; i > 0; i-- {
		if points >= a.mins[i] {
			return i
		}
	}
	return 0
}

func (a *LeagueAssigner) ForPoints(points int64) Tier {
	return Tiers[a.index(points)]
}

func (a *LeagueAssigner) Info(points int64) LeagueInfo {
	i := a.index(points)
	info := LeagueInfo{
		Tier:      Tiers[i],
		Name:      tierNames[Tiers[i]],
		MinPoints: a.mins[i],
	}
	if i+1 < len(Tiers) {
		upper := a.mins[i+1] - 1
		next := Tiers[i+1]
		info.MaxPoints = &upper
		info.NextTier = &next
		info.PointsToNext = a.mins[i+1] - points
	}
	return info
}
