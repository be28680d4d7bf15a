package services

import (
	"context"
	"errors"
	"log"
	"time"

	"fitDietAPI/internal/achievement"
	"fitDietAPI/internal/apperr"
	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/localday"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
	"fitDietAPI/internal/streak"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type GamificationService struct {
	engine   *Engine
	profiles ProfileSource
}

func NewGamificationService(engine *Engine, profiles ProfileSource) *GamificationService {
	return &GamificationService{engine: engine, profiles: profiles}
}

type StatusResponse struct {
	Level              int                    `json:"level"`
	XP                 int64                  `json:"xp"`
	TotalPoints        int64                  `json:"total_points"`
	DailyStreak        int                    `json:"daily_streak"`
	GoalStreak         int                    `json:"goal_streak"`
	LongestDailyStreak int                    `json:"longest_daily_streak"`
	LongestGoalStreak  int                    `json:"longest_goal_streak"`
	League             progression.Tier       `json:"league"`
	LeagueInfo         progression.LeagueInfo `json:"league_info"`
	LevelProgress      float64                `json:"level_progress"`
	NextLevelXP        *int64                 `json:"next_level_xp"`
	XPIntoLevel        int64                  `json:"xp_into_level"`
	XPForNextLevel     int64                  `json:"xp_for_next_level"`
	MaxLevel           bool                   `json:"max_level"`
	LastLoginDate      *string                `json:"last_login_date"`
}

type DailyLoginResponse struct {
	DailyStreak        int                       `json:"daily_streak"`
	LongestDailyStreak int                       `json:"longest_daily_streak"`
	XPAwarded          int64                     `json:"xp_awarded"`
	PointsAwarded      int64                     `json:"points_awarded"`
	AlreadyClaimed     bool                      `json:"already_claimed"`
	Rewards            Rewards                   `json:"rewards"`
	NewAchievements    []achievement.Achievement `json:"new_achievements"`
}

type TaskCompletionResponse struct {
	Task            dailytask.TaskID          `json:"task"`
	Completed       bool                      `json:"completed"`
	XPAwarded       int64                     `json:"xp_awarded"`
	PointsAwarded   int64                     `json:"points_awarded"`
	GoalStreak      int                       `json:"goal_streak"`
	Rewards         Rewards                   `json:"rewards"`
	NewAchievements []achievement.Achievement `json:"new_achievements"`
}

type DailyTasksResponse struct {
	Date             string                `json:"date"`
	Tasks            []dailytask.TaskState `json:"tasks"`
	MetricsAvailable bool                  `json:"metrics_available"`
}

type AchievementsResponse struct {
	Earned         []achievement.AchievementWithStatus `json:"earned"`
	Unearned       []achievement.AchievementWithStatus `json:"unearned"`
	TotalEarned    int                                 `json:"total_earned"`
	TotalAvailable int                                 `json:"total_available"`
}

// MetricsInput is the day's totals as reported by the tracking screens.
type MetricsInput struct {
	WaterML     int64 `json:"water_ml"`
	WaterGoalML int64 `json:"water_goal_ml"`
	Steps       int64 `json:"steps"`
	StepGoal    int64 `json:"step_goal"`
	Calories    int64 `json:"calories"`
	CalorieGoal int64 `json:"calorie_goal"`
}

var ErrInvalidMetrics = apperr.New(apperr.KindValidation, "invalid_metrics", "metric values cannot be negative")

// Upper bounds well past any real day. They also keep the goal arithmetic in
// dailytask far from int64 overflow.
const (
	maxWaterML  = 50_000
	maxSteps    = 500_000
	maxCalories = 50_000
)

func (in MetricsInput) validate() error {
	fields := []struct {
		name  string
		value int64
		max   int64
	}{
		{"water_ml", in.WaterML, maxWaterML},
		{"water_goal_ml", in.WaterGoalML, maxWaterML},
		{"steps", in.Steps, maxSteps},
		{"step_goal", in.StepGoal, maxSteps},
		{"calories", in.Calories, maxCalories},
		{"calorie_goal", in.CalorieGoal, maxCalories},
	}
	for _, f := range fields {
		if f.value < 0 {
			return ErrInvalidMetrics
		}
		if f.value > f.max {
			return apperr.Validation("invalid_metrics", "%s cannot exceed %d", f.name, f.max)
		}
	}
	return nil
}

func (s *GamificationService) GetStatus(ctx context.Context, userID string) (*StatusResponse, error) {
	var rec *progression.Record
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		var err error
		rec, err = tx.Progression(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	rules := s.engine.rules()
	lvl := rules.Levels.ForXP(rec.XP)
	resp := &StatusResponse{
		Level:              lvl.Level,
		XP:                 rec.XP,
		TotalPoints:        rec.TotalPoints,
		DailyStreak:        rec.DailyStreak,
		GoalStreak:         rec.GoalStreak,
		LongestDailyStreak: rec.LongestDailyStreak,
		LongestGoalStreak:  rec.LongestGoalStreak,
		League:             rules.Leagues.ForPoints(rec.TotalPoints),
		LeagueInfo:         rules.Leagues.Info(rec.TotalPoints),
		LevelProgress:      lvl.Progress(),
		XPIntoLevel:        lvl.XPIntoLevel,
		XPForNextLevel:     lvl.XPForNextLevel,
		MaxLevel:           lvl.Max,
	}
	if !lvl.Max {
		next := lvl.NextLevelXP
		resp.NextLevelXP = &next
	}
	if rec.LastLoginDate != nil {
		d := localday.Format(*rec.LastLoginDate)
		resp.LastLoginDate = &d
	}
	return resp, nil
}

// DailyLogin records today's login. Repeating it the same day returns the
// current streak and awards nothing.
func (s *GamificationService) DailyLogin(ctx context.Context, userID string, loc *time.Location) (*DailyLoginResponse, error) {
	now := s.engine.now()
	day := localday.Of(now, loc)
	key := taskKey(string(dailytask.TaskLogin), day)
	reward := s.engine.catalog.TaskReward(dailytask.TaskLogin)

	var resp *DailyLoginResponse
	var out *Outcome
	var needsName bool
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		rec, err := tx.Progression(ctx)
		if err != nil {
			return err
		}
		if _, err := rec.RecordActivity(streak.KindLogin, day); err != nil {
			return err
		}

		out, err = s.engine.apply(ctx, tx, rec, []Award{{
			Key: key, Kind: store.EventLogin, XP: reward.XP, Points: reward.Points,
		}}, now)
		if err != nil {
			return err
		}

		needsName = rec.DisplayName == ""
		resp = &DailyLoginResponse{
			DailyStreak:        rec.DailyStreak,
			LongestDailyStreak: rec.LongestDailyStreak,
			XPAwarded:          out.XPAwarded,
			PointsAwarded:      out.PointsAwarded,
			AlreadyClaimed:     !out.Claimed[key],
			Rewards:            out.Rewards,
			NewAchievements:    out.NewAchievements,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.engine.announce(userID, out)
	if needsName {
		s.fillDisplayName(ctx, userID)
	}
	return resp, nil
}

func (s *GamificationService) fillDisplayName(ctx context.Context, userID string) {
	if s.profiles == nil {
		return
	}
	name, err := s.profiles.DisplayName(ctx, userID)
	if err != nil {
		log.Printf("GamificationService: display name lookup failed for %s: %v", userID, err)
		return
	}
	if name == "" {
		return
	}
	if err := s.engine.store.SetDisplayName(ctx, userID, name); err != nil {
		log.Printf("GamificationService: failed to store display name for %s: %v", userID, err)
	}
}

// todayMetrics reads the metrics of day. A read failure degrades to nil so
// callers treat every goal as not met.
func (s *GamificationService) todayMetrics(ctx context.Context, userID string, day time.Time) (*dailytask.Metrics, bool) {
	m, err := s.engine.store.DailyMetrics(ctx, userID, day)
	switch {
	case err == nil:
		return m, true
	case errors.Is(err, store.ErrNotFound):
		return &dailytask.Metrics{}, true
	default:
		log.Printf("GamificationService: metrics unavailable for %s on %s: %v", userID, localday.Format(day), err)
		return nil, false
	}
}

// CompleteGoal awards a metric-backed task when today's totals meet its goal.
// An unmet goal is not an error: the response reports completed=false.
func (s *GamificationService) CompleteGoal(ctx context.Context, userID, kind string, loc *time.Location) (*TaskCompletionResponse, error) {
	id, err := dailytask.ParseGoal(kind)
	if err != nil {
		return nil, err
	}
	now := s.engine.now()
	day := localday.Of(now, loc)
	key := taskKey(string(id), day)

	metrics, _ := s.todayMetrics(ctx, userID, day)
	met := dailytask.Completed(id, dailytask.Snapshot{Day: day, Metrics: metrics})

	resp := &TaskCompletionResponse{Task: id, NewAchievements: []achievement.Achievement{}}
	var out *Outcome
	err = s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		rec, err := tx.Progression(ctx)
		if err != nil {
			return err
		}

		if !met {
			// an earlier claim today still counts as done
			claimed, err := tx.HasEvent(ctx, key)
			if err != nil {
				return err
			}
			resp.Completed = claimed
			resp.GoalStreak = rec.GoalStreak
			return nil
		}

		if _, err := rec.RecordActivity(streak.KindGoal, day); err != nil {
			return err
		}
		reward := s.engine.catalog.TaskReward(id)
		out, err = s.engine.apply(ctx, tx, rec, []Award{{
			Key: key, Kind: goalEventKind(id), XP: reward.XP, Points: reward.Points,
		}}, now)
		if err != nil {
			return err
		}

		resp.Completed = true
		resp.GoalStreak = rec.GoalStreak
		resp.XPAwarded = out.XPAwarded
		resp.PointsAwarded = out.PointsAwarded
		resp.Rewards = out.Rewards
		resp.NewAchievements = out.NewAchievements
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.engine.announce(userID, out)
	return resp, nil
}

func goalEventKind(id dailytask.TaskID) store.EventKind {
	switch id {
	case dailytask.TaskWater:
		return store.EventWater
	case dailytask.TaskSteps:
		return store.EventSteps
	default:
		return store.EventCalorie
	}
}

// LogPhoto completes today's meal-photo task.
func (s *GamificationService) LogPhoto(ctx context.Context, userID string, loc *time.Location) (*TaskCompletionResponse, error) {
	now := s.engine.now()
	day := localday.Of(now, loc)
	reward := s.engine.catalog.TaskReward(dailytask.TaskPhoto)

	resp := &TaskCompletionResponse{Task: dailytask.TaskPhoto, Completed: true}
	var out *Outcome
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		rec, err := tx.Progression(ctx)
		if err != nil {
			return err
		}
		out, err = s.engine.apply(ctx, tx, rec, []Award{{
			Key: taskKey(string(dailytask.TaskPhoto), day), Kind: store.EventPhoto,
			XP: reward.XP, Points: reward.Points,
		}}, now)
		if err != nil {
			return err
		}
		resp.GoalStreak = rec.GoalStreak
		resp.XPAwarded = out.XPAwarded
		resp.PointsAwarded = out.PointsAwarded
		resp.Rewards = out.Rewards
		resp.NewAchievements = out.NewAchievements
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.engine.announce(userID, out)
	return resp, nil
}

// ReportMetrics replaces today's totals and goals.
func (s *GamificationService) ReportMetrics(ctx context.Context, userID string, loc *time.Location, in MetricsInput) (*dailytask.Metrics, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.engine.now()
	day := localday.Of(now, loc)
	m := dailytask.Metrics{
		WaterML:     in.WaterML,
		WaterGoalML: in.WaterGoalML,
		Steps:       in.Steps,
		StepGoal:    in.StepGoal,
		Calories:    in.Calories,
		CalorieGoal: in.CalorieGoal,
		UpdatedAt:   now,
	}
	if err := s.engine.store.UpsertDailyMetrics(ctx, userID, day, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetDailyTasks evaluates the five tasks for the caller's current day. It
// awards nothing.
func (s *GamificationService) GetDailyTasks(ctx context.Context, userID string, loc *time.Location) (*DailyTasksResponse, error) {
	day := localday.Of(s.engine.now(), loc)
	metrics, available := s.todayMetrics(ctx, userID, day)

	claimed := make(map[dailytask.TaskID]bool, len(dailytask.Tasks))
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		for _, id := range dailytask.Tasks {
			ok, err := tx.HasEvent(ctx, taskKey(string(id), day))
			if err != nil {
				return err
			}
			claimed[id] = ok
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	states := dailytask.Evaluate(dailytask.Snapshot{
		Day:           day,
		Metrics:       metrics,
		LoginRecorded: claimed[dailytask.TaskLogin],
		PhotoLogged:   claimed[dailytask.TaskPhoto],
	}, s.engine.catalog.TaskXP())
	for i := range states {
		if claimed[states[i].ID] {
			states[i].Completed = true
		}
	}

	return &DailyTasksResponse{
		Date:             localday.Format(day),
		Tasks:            states,
		MetricsAvailable: available,
	}, nil
}

func (s *GamificationService) GetAchievements(ctx context.Context, userID string) (*AchievementsResponse, error) {
	var earned map[string]time.Time
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		var err error
		earned, err = tx.EarnedAchievements(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	table := s.engine.catalog.Achievements()
	got, missing := achievement.Split(table, earned)
	return &AchievementsResponse{
		Earned:         got,
		Unearned:       missing,
		TotalEarned:    len(got),
		TotalAvailable: len(table),
	}, nil
}

// GetHistory returns the newest reward ledger entries.
func (s *GamificationService) GetHistory(ctx context.Context, userID string, limit int) ([]store.Event, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var events []store.Event
	err := s.engine.store.WithUserTx(ctx, userID, func(tx store.Tx) error {
		var err error
		events, err = tx.RecentEvents(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
