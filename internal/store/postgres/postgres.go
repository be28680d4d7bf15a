// Package postgres is the production store, backed by a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open parses dbURL, sizes the pool and pings the database.
func Open(ctx context.Context, dbURL string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: pool}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) WithUserTx(ctx context.Context, userID string, fn func(store.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_progression (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return fmt.Errorf("failed to create progression row: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT 1 FROM user_progression WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return fmt.Errorf("failed to lock progression row: %w", err)
	}

	if err := fn(&userTx{tx: tx, userID: userID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Standings(ctx context.Context) ([]*leaderboard.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.user_id, p.display_name, p.level, p.xp, p.total_points, p.league, p.daily_streak,
		       COUNT(a.achievement_id)
		FROM user_progression p
		LEFT JOIN user_achievements a ON a.user_id = p.user_id
		GROUP BY p.user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings: %w", err)
	}
	defer rows.Close()

	entries := []*leaderboard.LeaderboardEntry{}
	for rows.Next() {
		var e leaderboard.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Level, &e.XP, &e.TotalPoints, &e.League,
			&e.DailyStreak, &e.AchievementsCount); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *Store) DailyMetrics(ctx context.Context, userID string, day time.Time) (*dailytask.Metrics, error) {
	var m dailytask.Metrics
	err := s.db.QueryRow(ctx, `
		SELECT water_ml, water_goal_ml, steps, step_goal, calories, calorie_goal, updated_at
		FROM daily_metrics WHERE user_id = $1 AND day = $2`, userID, day).
		Scan(&m.WaterML, &m.WaterGoalML, &m.Steps, &m.StepGoal, &m.Calories, &m.CalorieGoal, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get daily metrics: %w", err)
	}
	return &m, nil
}

func (s *Store) UpsertDailyMetrics(ctx context.Context, userID string, day time.Time, m dailytask.Metrics) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO daily_metrics (user_id, day, water_ml, water_goal_ml, steps, step_goal, calories, calorie_goal, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, day) DO UPDATE SET
			water_ml = EXCLUDED.water_ml,
			water_goal_ml = EXCLUDED.water_goal_ml,
			steps = EXCLUDED.steps,
			step_goal = EXCLUDED.step_goal,
			calories = EXCLUDED.calories,
			calorie_goal = EXCLUDED.calorie_goal,
			updated_at = EXCLUDED.updated_at`,
		userID, day, m.WaterML, m.WaterGoalML, m.Steps, m.StepGoal, m.Calories, m.CalorieGoal, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert daily metrics: %w", err)
	}
	return nil
}

func (s *Store) SetDisplayName(ctx context.Context, userID, name string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_progression (user_id, display_name) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name`, userID, name)
	if err != nil {
		return fmt.Errorf("failed to set display name: %w", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM device_tokens WHERE user_id = $1`,
		`DELETE FROM daily_metrics WHERE user_id = $1`,
		`DELETE FROM user_progression WHERE user_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, userID); err != nil {
			return fmt.Errorf("failed to delete user data: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) RegisterDevice(ctx context.Context, d store.Device) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at`,
		d.Token, d.UserID, d.Platform, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *Store) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT token FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan device tokens: %w", err)
	}
	return tokens, nil
}

type userTx struct {
	tx     pgx.Tx
	userID string
}

func (t *userTx) Progression(ctx context.Context) (*progression.Record, error) {
	r := progression.Record{UserID: t.userID}
	err := t.tx.QueryRow(ctx, `
		SELECT display_name, xp, level, total_points, league,
		       daily_streak, longest_daily_streak, goal_streak, longest_goal_streak,
		       last_login_date, last_goal_date, created_at, updated_at
		FROM user_progression WHERE user_id = $1`, t.userID).
		Scan(&r.DisplayName, &r.XP, &r.Level, &r.TotalPoints, &r.League,
			&r.DailyStreak, &r.LongestDailyStreak, &r.GoalStreak, &r.LongestGoalStreak,
			&r.LastLoginDate, &r.LastGoalDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get progression: %w", err)
	}
	return &r, nil
}

func (t *userTx) SaveProgression(ctx context.Context, r *progression.Record) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE user_progression SET
			display_name = $2, xp = $3, level = $4, total_points = $5, league = $6,
			daily_streak = $7, longest_daily_streak = $8, goal_streak = $9, longest_goal_streak = $10,
			last_login_date = $11, last_goal_date = $12, updated_at = $13
		WHERE user_id = $1`,
		t.userID, r.DisplayName, r.XP, r.Level, r.TotalPoints, r.League,
		r.DailyStreak, r.LongestDailyStreak, r.GoalStreak, r.LongestGoalStreak,
		r.LastLoginDate, r.LastGoalDate, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save progression: %w", err)
	}
	return nil
}

func (t *userTx) ClaimEvent(ctx context.Context, e store.Event) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO progress_events (user_id, event_key, kind, xp, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, event_key) DO NOTHING`,
		t.userID, e.Key, e.Kind, e.XP, e.Points, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", e.Key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *userTx) HasEvent(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM progress_events WHERE user_id = $1 AND event_key = $2)`,
		t.userID, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", key, err)
	}
	return exists, nil
}

func (t *userTx) EventCounts(ctx context.Context) (map[store.EventKind]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT kind, COUNT(*) FROM progress_events WHERE user_id = $1 GROUP BY kind`, t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[store.EventKind]int64)
	for rows.Next() {
		var kind store.EventKind
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

func (t *userTx) RecentEvents(ctx context.Context, limit int) ([]store.Event, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT event_key, kind, xp, points, created_at
		FROM progress_events WHERE user_id = $1
		ORDER BY created_at DESC, event_key
		LIMIT $2`, t.userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []store.Event{}
	for rows.Next() {
		e := store.Event{UserID: t.userID}
		if err := rows.Scan(&e.Key, &e.Kind, &e.XP, &e.Points, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (t *userTx) EarnedAchievements(ctx context.Context) (map[string]time.Time, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT achievement_id, earned_at FROM user_achievements WHERE user_id = $1`, t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		earned[id] = at
	}
	return earned, rows.Err()
}

func (t *userTx) InsertAchievement(ctx context.Context, achievementID string, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`, t.userID, achievementID, at)
	if err != nil {
		return false, fmt.Errorf("failed to insert achievement %s: %w", achievementID, err)
	}
	return tag.RowsAffected() == 1, nil
}

const programColumns = `id, user_id, diet_id, total_days, current_day, status, started_at, updated_at, completed_at`

func scanProgram(row pgx.Row) (*dietprogram.Program, error) {
	var p dietprogram.Program
	if err := row.Scan(&p.ID, &p.UserID, &p.DietID, &p.TotalDays, &p.CurrentDay, &p.Status,
		&p.StartedAt, &p.UpdatedAt, &p.CompletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// loadDays fills Days for every program in one query.
func (t *userTx) loadDays(ctx context.Context, programs []*dietprogram.Program) error {
	if len(programs) == 0 {
		return nil
	}
	byID := make(map[string]*dietprogram.Program, len(programs))
	ids := make([]string, 0, len(programs))
	for _, p := range programs {
		byID[p.ID] = p
		ids = append(ids, p.ID)
		p.Days = make([]dietprogram.Day, 0, p.TotalDays)
	}

	rows, err := t.tx.Query(ctx, `
		SELECT program_id, day, state, completed_at
		FROM program_days WHERE program_id = ANY($1)
		ORDER BY program_id, day`, ids)
	if err != nil {
		return fmt.Errorf("failed to query program days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var programID string
		var d dietprogram.Day
		if err := rows.Scan(&programID, &d.Number, &d.State, &d.CompletedAt); err != nil {
			return fmt.Errorf("failed to scan program day: %w", err)
		}
		if p, ok := byID[programID]; ok {
			p.Days = append(p.Days, d)
		}
	}
	return rows.Err()
}

func (t *userTx) ActiveProgram(ctx context.Context) (*dietprogram.Program, error) {
	p, err := scanProgram(t.tx.QueryRow(ctx, `
		SELECT `+programColumns+` FROM diet_programs
		WHERE user_id = $1 AND status = 'active'`, t.userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active program: %w", err)
	}
	if err := t.loadDays(ctx, []*dietprogram.Program{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *userTx) Program(ctx context.Context, programID string) (*dietprogram.Program, error) {
	p, err := scanProgram(t.tx.QueryRow(ctx, `
		SELECT `+programColumns+` FROM diet_programs
		WHERE id = $1 AND user_id = $2`, programID, t.userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dietprogram.ErrProgramNotFound
		}
		return nil, fmt.Errorf("failed to get program: %w", err)
	}
	if err := t.loadDays(ctx, []*dietprogram.Program{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *userTx) Programs(ctx context.Context) ([]*dietprogram.Program, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+programColumns+` FROM diet_programs
		WHERE user_id = $1 ORDER BY started_at DESC, id`, t.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	programs := []*dietprogram.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := t.loadDays(ctx, programs); err != nil {
		return nil, err
	}
	return programs, nil
}

func (t *userTx) InsertProgram(ctx context.Context, p *dietprogram.Program) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO diet_programs (`+programColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, t.userID, p.DietID, p.TotalDays, p.CurrentDay, p.Status, p.StartedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert program: %w", err)
	}

	_, err = t.tx.CopyFrom(ctx,
		pgx.Identifier{"program_days"},
		[]string{"program_id", "day", "state", "completed_at"},
		pgx.CopyFromSlice(len(p.Days), func(i int) ([]any, error) {
			d := p.Days[i]
			return []any{p.ID, d.Number, string(d.State), d.CompletedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert program days: %w", err)
	}
	return nil
}

func (t *userTx) SaveProgram(ctx context.Context, p *dietprogram.Program) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE diet_programs SET current_day = $3, status = $4, updated_at = $5, completed_at = $6
		WHERE id = $1 AND user_id = $2`,
		p.ID, t.userID, p.CurrentDay, p.Status, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save program: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dietprogram.ErrProgramNotFound
	}

	batch := &pgx.Batch{}
	for _, d := range p.Days {
		batch.Queue(`
			UPDATE program_days SET state = $3, completed_at = $4
			WHERE program_id = $1 AND day = $2`, p.ID, d.Number, string(d.State), d.CompletedAt)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save program days: %w", err)
	}
	return nil
}
