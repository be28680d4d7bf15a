// Package dailytask evaluates the five per-day tasks against a snapshot of
// the user's metrics for one local calendar day.
package dailytask

import (
	"time"

	"fitDietAPI/internal/apperr"
)

type TaskID string

const (
	TaskLogin   TaskID = "login"
	TaskWater   TaskID = "water"
	TaskSteps   TaskID = "steps"
	TaskCalorie TaskID = "calorie"
	TaskPhoto   TaskID = "photo"
)

// Tasks is the fixed evaluation order.
var Tasks = []TaskID{TaskLogin, TaskWater, TaskSteps, TaskCalorie, TaskPhoto}

var ErrUnknownGoal = apperr.New(apperr.KindValidation, "unknown_goal",
	"goal must be one of water, steps, calorie")

// ParseGoal accepts only the metric-backed tasks.
func ParseGoal(s string) (TaskID, error) {
	switch TaskID(s) {
	case TaskWater, TaskSteps, TaskCalorie:
		return TaskID(s), nil
	}
	return "", ErrUnknownGoal
}

func (id TaskID) IsGoal() bool {
	return id == TaskWater || id == TaskSteps || id == TaskCalorie
}

// Metrics are the day's running totals and targets reported by the tracking
// side of the app.
type Metrics struct {
	WaterML     int64     `json:"water_ml"`
	WaterGoalML int64     `json:"water_goal_ml"`
	Steps       int64     `json:"steps"`
	StepGoal    int64     `json:"step_goal"`
	Calories    int64     `json:"calories"`
	CalorieGoal int64     `json:"calorie_goal"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is everything the evaluation needs for one day. Metrics is nil
// when the metrics source could not be read.
type Snapshot struct {
	Day           time.Time
	Metrics       *Metrics
	LoginRecorded bool
	PhotoLogged   bool
}

type TaskState struct {
	ID        TaskID `json:"id"`
	Completed bool   `json:"completed"`
	Progress  *int64 `json:"progress,omitempty"`
	Total     *int64 `json:"total,omitempty"`
	XPReward  int64  `json:"xp_reward"`
}

// calorieNum/calorieDen is the share of the calorie goal that completes the
// calorie task (80%).
const (
	calorieNum = 4
	calorieDen = 5
)

// CalorieGoalMet uses integer arithmetic so the 80% boundary is exact.
func CalorieGoalMet(total, goal int64) bool {
	if goal <= 0 {
		return false
	}
	return total*calorieDen >= goal*calorieNum
}

func reached(total, goal int64) bool {
	return goal > 0 && total >= goal
}

// Completed evaluates a single task.
func Completed(id TaskID, s Snapshot) bool {
	switch id {
	case TaskLogin:
		return s.LoginRecorded
	case TaskPhoto:
		return s.PhotoLogged
	}
	if s.Metrics == nil {
		return false
	}
	m := s.Metrics
	switch id {
	case TaskWater:
		return reached(m.WaterML, m.WaterGoalML)
	case TaskSteps:
		return reached(m.Steps, m.StepGoal)
	case TaskCalorie:
		return CalorieGoalMet(m.Calories, m.CalorieGoal)
	}
	return false
}

// Evaluate returns the five task states in Tasks order. xpRewards may be nil.
func Evaluate(s Snapshot, xpRewards map[TaskID]int64) []TaskState {
	states := make([]TaskState, 0, len(Tasks))
	for _, id := range Tasks {
		st := TaskState{
			ID:        id,
			Completed: Completed(id, s),
			XPReward:  xpRewards[id],
		}
		if s.Metrics != nil {
			switch id {
			case TaskWater:
				st.Progress, st.Total = ptr(s.Metrics.WaterML), ptr(s.Metrics.WaterGoalML)
			case TaskSteps:
				st.Progress, st.Total = ptr(s.Metrics.Steps), ptr(s.Metrics.StepGoal)
			case TaskCalorie:
				st.Progress, st.Total = ptr(s.Metrics.Calories), ptr(s.Metrics.CalorieGoal)
			}
		}
		states = append(states, st)
	}
	return states
}

// Find returns the state of id from states.
func Find(states []TaskState, id TaskID) TaskState {
	for _, st := range states {
		if st.ID == id {
			return st
		}
	}
	return TaskState{ID: id}
}

func ptr(v int64) *int64 {
	return &v
}
