// Package catalog loads the static gamification tables (level curve, league
// thresholds, rewards, achievements, diets) from TOML. A loaded Catalog is
// never modified afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"fitDietAPI/internal/achievement"
	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/progression"
)

//go:embed default.toml
var defaultTOML []byte

type Reward struct {
	XP     int64 `toml:"xp" json:"xp"`
	Points int64 `toml:"points" json:"points"`
}

type Rewards struct {
	Tasks       map[string]Reward `toml:"tasks"`
	DietDay     Reward            `toml:"diet_day"`
	DietProgram Reward            `toml:"diet_program"`
}

// Diet is the opaque content entry a program references. Meals and texts
// live with the content service; only the length matters here.
type Diet struct {
	ID          string `toml:"id" json:"id"`
	Name        string `toml:"name" json:"name"`
	Description string `toml:"description" json:"description"`
	Days        int    `toml:"days" json:"days"`
}

type file struct {
	Levels struct {
		Thresholds []int64 `toml:"thresholds"`
	} `toml:"levels"`
	Leagues struct {
		MinPoints []int64 `toml:"min_points"`
	} `toml:"leagues"`
	Rewards      Rewards                   `toml:"rewards"`
	Achievements []achievement.Achievement `toml:"achievements"`
	Diets        []Diet                    `toml:"diets"`
}

type Catalog struct {
	rules        progression.Rules
	rewards      Rewards
	achievements []achievement.Achievement
	diets        []Diet
	dietByID     map[string]Diet
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultTOML)
}

// Load reads a catalog file; an empty path selects the built-in default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	levels, err := progression.NewLevelCalculator(f.Levels.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("levels: %w", err)
	}
	leagues, err := progression.NewLeagueAssigner(f.Leagues.MinPoints)
	if err != nil {
		return nil, fmt.Errorf("leagues: %w", err)
	}

	for _, id := range dailytask.Tasks {
		if _, ok := f.Rewards.Tasks[string(id)]; !ok {
			return nil, fmt.Errorf("rewards: missing task %q", id)
		}
	}

	seen := make(map[string]bool, len(f.Achievements))
	for _, a := range f.Achievements {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("achievement %s defined twice", a.ID)
		}
		seen[a.ID] = true
	}

	dietByID := make(map[string]Diet, len(f.Diets))
	for _, d := range f.Diets {
		if d.ID == "" || d.Days < 1 {
			return nil, fmt.Errorf("diet %q: id and a positive day count are required", d.ID)
		}
		if _, dup := dietByID[d.ID]; dup {
			return nil, fmt.Errorf("diet %s defined twice", d.ID)
		}
		dietByID[d.ID] = d
	}

	return &Catalog{
		rules:        progression.Rules{Levels: levels, Leagues: leagues},
		rewards:      f.Rewards,
		achievements: f.Achievements,
		diets:        f.Diets,
		dietByID:     dietByID,
	}, nil
}

func (c *Catalog) Rules() progression.Rules {
	return c.rules
}

func (c *Catalog) TaskReward(id dailytask.TaskID) Reward {
	return c.rewards.Tasks[string(id)]
}

// TaskXP is the per-task XP table shown next to daily tasks.
func (c *Catalog) TaskXP() map[dailytask.TaskID]int64 {
	out := make(map[dailytask.TaskID]int64, len(dailytask.Tasks))
	for _, id := range dailytask.Tasks {
		out[id] = c.rewards.Tasks[string(id)].XP
	}
	return out
}

func (c *Catalog) DietDayReward() Reward {
	return c.rewards.DietDay
}

func (c *Catalog) DietProgramReward() Reward {
	return c.rewards.DietProgram
}

// Achievements returns a copy of the achievement table.
func (c *Catalog) Achievements() []achievement.Achievement {
	out := make([]achievement.Achievement, len(c.achievements))
	copy(out, c.achievements)
	return out
}

func (c *Catalog) Diets() []Diet {
	out := make([]Diet, len(c.diets))
	copy(out, c.diets)
	return out
}

func (c *Catalog) Diet(id string) (Diet, bool) {
	d, ok := c.dietByID[id]
	return d, ok
}
