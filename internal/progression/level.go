package progression

import (
	"fmt"
	"sort"
)

// LevelCalculator maps cumulative XP to a level using a fixed threshold
// table. thresholds[i] is the total XP needed to reach level i+1.
type LevelCalculator struct {
	thresholds []int64
}

// Level is the derived view of a user's XP.
type Level struct {
	Level          int   `json:"level"`
	XPIntoLevel    int64 `json:"xp_into_level"`
	XPForNextLevel int64 `json:"xp_for_next_level"`
	NextLevelXP    int64 `json:"next_level_xp"`
	Max            bool  `json:"max_level"`
}

func NewLevelCalculator(thresholds []int64) (*LevelCalculator, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("level table is empty")
	}
	if thresholds[0] != 0 {
		return nil, fmt.Errorf("level 1 must start at 0 xp, got %d", thresholds[0])
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, fmt.Errorf("level %d threshold %d is not above level %d threshold %d",
				i+1, thresholds[i], i, thresholds[i-1])
		}
	}
	t := make([]int64, len(thresholds))
	copy(t, thresholds)
	return &LevelCalculator{thresholds: t}, nil
}

func (c *LevelCalculator) MaxLevel() int {
	return len(c.thresholds)
}

// ForXP returns the level reached with xp. Negative xp counts as zero.
func (c *LevelCalculator) ForXP(xp int64) Level {
	if xp < 0 {
		xp = 0
	}
	// first threshold strictly above xp; the level is its index
	idx := sort.Search(len(c.thresholds), func(i int) bool { return c.thresholds[i] > xp })
	lvl := Level{
		Level:       idx,
		XPIntoLevel: xp - c.thresholds[idx-1],
	}
	if idx == len(c.thresholds) {
		lvl.Max = true
		return lvl
	}
	lvl.NextLevelXP = c.thresholds[idx]
	lvl.XPForNextLevel = c.thresholds[idx] - c.thresholds[idx-1]
	return lvl
}

// Progress is the percentage towards the next level, within [0, 100).
func (l Level) Progress() float64 {
	if l.Max || l.XPForNextLevel <= 0 {
		return 0
	}
	p := float64(l.XPIntoLevel) / float64(l.XPForNextLevel) * 100
	if p < 0 {
		return 0
	}
	if p >= 100 {
		// float rounding only; XPIntoLevel < XPForNextLevel always holds
		return 99.99
	}
	return p
}
