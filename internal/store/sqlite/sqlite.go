// Package sqlite is the embedded store used for local runs and tests.
// Dates are stored as YYYY-MM-DD text and instants as unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fitDietAPI/internal/dailytask"
	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/internal/leaderboard"
	"fitDietAPI/internal/localday"
	"fitDietAPI/internal/progression"
	"fitDietAPI/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database file at path. Writers are serialised
// through a single connection and immediate transactions.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS user_progression (
		user_id              TEXT PRIMARY KEY,
		display_name         TEXT NOT NULL DEFAULT '',
		xp                   INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
		level                INTEGER NOT NULL DEFAULT 1,
		total_points         INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
		league               TEXT NOT NULL DEFAULT 'bronze',
		daily_streak         INTEGER NOT NULL DEFAULT 0,
		longest_daily_streak INTEGER NOT NULL DEFAULT 0,
		goal_streak          INTEGER NOT NULL DEFAULT 0,
		longest_goal_streak  INTEGER NOT NULL DEFAULT 0,
		last_login_date      TEXT,
		last_goal_date       TEXT,
		created_at           INTEGER NOT NULL,
		updated_at           INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_progression_points ON user_progression(total_points DESC, user_id)`,

	`CREATE TABLE IF NOT EXISTS progress_events (
		user_id    TEXT NOT NULL REFERENCES user_progression(user_id) ON DELETE CASCADE,
		event_key  TEXT NOT NULL,
		kind       TEXT NOT NULL,
		xp         INTEGER NOT NULL DEFAULT 0,
		points     INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, event_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_progress_events_recent ON progress_events(user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS user_achievements (
		user_id        TEXT NOT NULL REFERENCES user_progression(user_id) ON DELETE CASCADE,
		achievement_id TEXT NOT NULL,
		earned_at      INTEGER NOT NULL,
		PRIMARY KEY (user_id, achievement_id)
	)`,

	`CREATE TABLE IF NOT EXISTS diet_programs (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES user_progression(user_id) ON DELETE CASCADE,
		diet_id      TEXT NOT NULL,
		total_days   INTEGER NOT NULL CHECK (total_days > 0),
		current_day  INTEGER NOT NULL,
		status       TEXT NOT NULL,
		started_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		completed_at INTEGER
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_diet_programs_one_active ON diet_programs(user_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_diet_programs_user ON diet_programs(user_id, started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS program_days (
		program_id   TEXT NOT NULL REFERENCES diet_programs(id) ON DELETE CASCADE,
		day          INTEGER NOT NULL,
		state        TEXT NOT NULL,
		completed_at INTEGER,
		PRIMARY KEY (program_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS daily_metrics (
		user_id       TEXT NOT NULL,
		day           TEXT NOT NULL,
		water_ml      INTEGER NOT NULL DEFAULT 0,
		water_goal_ml INTEGER NOT NULL DEFAULT 0,
		steps         INTEGER NOT NULL DEFAULT 0,
		step_goal     INTEGER NOT NULL DEFAULT 0,
		calories      INTEGER NOT NULL DEFAULT 0,
		calorie_goal  INTEGER NOT NULL DEFAULT 0,
		updated_at    INTEGER NOT NULL,
		PRIMARY KEY (user_id, day)
	)`,

	`CREATE TABLE IF NOT EXISTS device_tokens (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		platform   TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_tokens_user ON device_tokens(user_id)`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: localday.Format(*t), Valid: true}
}

func fromNullDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := localday.Parse(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) WithUserTx(ctx context.Context, userID string, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := millis(time.Now())
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_progression (user_id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`, userID, now, now); err != nil {
		return fmt.Errorf("create progression row: %w", err)
	}

	if err := fn(&userTx{tx: tx, userID: userID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Standings(ctx context.Context) ([]*leaderboard.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.user_id, p.display_name, p.level, p.xp, p.total_points, p.league, p.daily_streak,
		       COUNT(a.achievement_id)
		FROM user_progression p
		LEFT JOIN user_achievements a ON a.user_id = p.user_id
		GROUP BY p.user_id`)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	entries := []*leaderboard.LeaderboardEntry{}
	for rows.Next() {
		var e leaderboard.LeaderboardEntry
		var league string
		if err := rows.Scan(&e.UserID, &e.Name, &e.Level, &e.XP, &e.TotalPoints, &league,
			&e.DailyStreak, &e.AchievementsCount); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		e.League = progression.Tier(league)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *Store) DailyMetrics(ctx context.Context, userID string, day time.Time) (*dailytask.Metrics, error) {
	var m dailytask.Metrics
	var updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT water_ml, water_goal_ml, steps, step_goal, calories, calorie_goal, updated_at
		FROM daily_metrics WHERE user_id = ? AND day = ?`, userID, localday.Format(day)).
		Scan(&m.WaterML, &m.WaterGoalML, &m.Steps, &m.StepGoal, &m.Calories, &m.CalorieGoal, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}
	m.UpdatedAt = fromMillis(updated)
	return &m, nil
}

func (s *Store) UpsertDailyMetrics(ctx context.Context, userID string, day time.Time, m dailytask.Metrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_metrics (user_id, day, water_ml, water_goal_ml, steps, step_goal, calories, calorie_goal, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET
			water_ml = excluded.water_ml,
			water_goal_ml = excluded.water_goal_ml,
			steps = excluded.steps,
			step_goal = excluded.step_goal,
			calories = excluded.calories,
			calorie_goal = excluded.calorie_goal,
			updated_at = excluded.updated_at`,
		userID, localday.Format(day), m.WaterML, m.WaterGoalML, m.Steps, m.StepGoal, m.Calories, m.CalorieGoal,
		millis(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert daily metrics: %w", err)
	}
	return nil
}

func (s *Store) SetDisplayName(ctx context.Context, userID, name string) error {
	now := millis(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_progression (user_id, display_name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET display_name = excluded.display_name`, userID, name, now, now)
	if err != nil {
		return fmt.Errorf("set display name: %w", err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM device_tokens WHERE user_id = ?`,
		`DELETE FROM daily_metrics WHERE user_id = ?`,
		`DELETE FROM user_progression WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) RegisterDevice(ctx context.Context, d store.Device) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_tokens (token, user_id, platform, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET
			user_id = excluded.user_id,
			platform = excluded.platform,
			updated_at = excluded.updated_at`,
		d.Token, d.UserID, d.Platform, millis(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	return nil
}

func (s *Store) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM device_tokens WHERE user_id = ? ORDER BY token`, userID)
	if err != nil {
		return nil, fmt.Errorf("query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("scan device token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

type userTx struct {
	tx     *sql.Tx
	userID string
}

func (t *userTx) Progression(ctx context.Context) (*progression.Record, error) {
	r := progression.Record{UserID: t.userID}
	var league string
	var lastLogin, lastGoal sql.NullString
	var created, updated int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT display_name, xp, level, total_points, league,
		       daily_streak, longest_daily_streak, goal_streak, longest_goal_streak,
		       last_login_date, last_goal_date, created_at, updated_at
		FROM user_progression WHERE user_id = ?`, t.userID).
		Scan(&r.DisplayName, &r.XP, &r.Level, &r.TotalPoints, &league,
			&r.DailyStreak, &r.LongestDailyStreak, &r.GoalStreak, &r.LongestGoalStreak,
			&lastLogin, &lastGoal, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get progression: %w", err)
	}

	r.League = progression.Tier(league)
	r.CreatedAt, r.UpdatedAt = fromMillis(created), fromMillis(updated)
	if r.LastLoginDate, err = fromNullDate(lastLogin); err != nil {
		return nil, fmt.Errorf("last_login_date: %w", err)
	}
	if r.LastGoalDate, err = fromNullDate(lastGoal); err != nil {
		return nil, fmt.Errorf("last_goal_date: %w", err)
	}
	return &r, nil
}

func (t *userTx) SaveProgression(ctx context.Context, r *progression.Record) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE user_progression SET
			display_name = ?, xp = ?, level = ?, total_points = ?, league = ?,
			daily_streak = ?, longest_daily_streak = ?, goal_streak = ?, longest_goal_streak = ?,
			last_login_date = ?, last_goal_date = ?, updated_at = ?
		WHERE user_id = ?`,
		r.DisplayName, r.XP, r.Level, r.TotalPoints, string(r.League),
		r.DailyStreak, r.LongestDailyStreak, r.GoalStreak, r.LongestGoalStreak,
		nullDate(r.LastLoginDate), nullDate(r.LastGoalDate), millis(r.UpdatedAt), t.userID)
	if err != nil {
		return fmt.Errorf("save progression: %w", err)
	}
	return nil
}

func (t *userTx) ClaimEvent(ctx context.Context, e store.Event) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO progress_events (user_id, event_key, kind, xp, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, event_key) DO NOTHING`,
		t.userID, e.Key, string(e.Kind), e.XP, e.Points, millis(e.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", e.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", e.Key, err)
	}
	return n == 1, nil
}

func (t *userTx) HasEvent(ctx context.Context, key string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM progress_events WHERE user_id = ? AND event_key = ?`, t.userID, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", key, err)
	}
	return n > 0, nil
}

func (t *userTx) EventCounts(ctx context.Context) (map[store.EventKind]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM progress_events WHERE user_id = ? GROUP BY kind`, t.userID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[store.EventKind]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[store.EventKind(kind)] = n
	}
	return counts, rows.Err()
}

func (t *userTx) RecentEvents(ctx context.Context, limit int) ([]store.Event, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT event_key, kind, xp, points, created_at
		FROM progress_events WHERE user_id = ?
		ORDER BY created_at DESC, event_key
		LIMIT ?`, t.userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []store.Event{}
	for rows.Next() {
		e := store.Event{UserID: t.userID}
		var kind string
		var created int64
		if err := rows.Scan(&e.Key, &kind, &e.XP, &e.Points, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = store.EventKind(kind)
		e.CreatedAt = fromMillis(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (t *userTx) EarnedAchievements(ctx context.Context) (map[string]time.Time, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT achievement_id, earned_at FROM user_achievements WHERE user_id = ?`, t.userID)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	earned := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at int64
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		earned[id] = fromMillis(at)
	}
	return earned, rows.Err()
}

func (t *userTx) InsertAchievement(ctx context.Context, achievementID string, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`, t.userID, achievementID, millis(at))
	if err != nil {
		return false, fmt.Errorf("insert achievement %s: %w", achievementID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert achievement %s: %w", achievementID, err)
	}
	return n == 1, nil
}

const programColumns = `id, user_id, diet_id, total_days, current_day, status, started_at, updated_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(s scanner) (*dietprogram.Program, error) {
	var p dietprogram.Program
	var status string
	var started, updated int64
	var completed sql.NullInt64
	if err := s.Scan(&p.ID, &p.UserID, &p.DietID, &p.TotalDays, &p.CurrentDay, &status,
		&started, &updated, &completed); err != nil {
		return nil, err
	}
	p.Status = dietprogram.Status(status)
	p.StartedAt, p.UpdatedAt = fromMillis(started), fromMillis(updated)
	p.CompletedAt = fromNullMillis(completed)
	return &p, nil
}

func (t *userTx) loadDays(ctx context.Context, programs []*dietprogram.Program) error {
	if len(programs) == 0 {
		return nil
	}
	byID := make(map[string]*dietprogram.Program, len(programs))
	args := make([]any, 0, len(programs))
	for _, p := range programs {
		byID[p.ID] = p
		args = append(args, p.ID)
		p.Days = make([]dietprogram.Day, 0, p.TotalDays)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	rows, err := t.tx.QueryContext(ctx, `
		SELECT program_id, day, state, completed_at
		FROM program_days WHERE program_id IN (`+placeholders+`)
		ORDER BY program_id, day`, args...)
	if err != nil {
		return fmt.Errorf("query program days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var programID, state string
		var completed sql.NullInt64
		var d dietprogram.Day
		if err := rows.Scan(&programID, &d.Number, &state, &completed); err != nil {
			return fmt.Errorf("scan program day: %w", err)
		}
		d.State = dietprogram.DayState(state)
		d.CompletedAt = fromNullMillis(completed)
		if p, ok := byID[programID]; ok {
			p.Days = append(p.Days, d)
		}
	}
	return rows.Err()
}

func (t *userTx) ActiveProgram(ctx context.Context) (*dietprogram.Program, error) {
	p, err := scanProgram(t.tx.QueryRowContext(ctx, `
		SELECT `+programColumns+` FROM diet_programs
		WHERE user_id = ? AND status = 'active'`, t.userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get active program: %w", err)
	}
	if err := t.loadDays(ctx, []*dietprogram.Program{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *userTx) Program(ctx context.Context, programID string) (*dietprogram.Program, error) {
	p, err := scanProgram(t.tx.QueryRowContext(ctx, `
		SELECT `+programColumns+` FROM diet_programs
		WHERE id = ? AND user_id = ?`, programID, t.userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dietprogram.ErrProgramNotFound
		}
		return nil, fmt.Errorf("get program: %w", err)
	}
	if err := t.loadDays(ctx, []*dietprogram.Program{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *userTx) Programs(ctx context.Context) ([]*dietprogram.Program, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+programColumns+` FROM diet_programs
		WHERE user_id = ? ORDER BY started_at DESC, id`, t.userID)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	programs := []*dietprogram.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := t.loadDays(ctx, programs); err != nil {
		return nil, err
	}
	return programs, nil
}

func (t *userTx) InsertProgram(ctx context.Context, p *dietprogram.Program) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO diet_programs (`+programColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, t.userID, p.DietID, p.TotalDays, p.CurrentDay, string(p.Status),
		millis(p.StartedAt), millis(p.UpdatedAt), nullMillis(p.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert program: %w", err)
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO program_days (program_id, day, state, completed_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare program days: %w", err)
	}
	defer stmt.Close()
	for _, d := range p.Days {
		if _, err := stmt.ExecContext(ctx, p.ID, d.Number, string(d.State), nullMillis(d.CompletedAt)); err != nil {
			return fmt.Errorf("insert program day %d: %w", d.Number, err)
		}
	}
	return nil
}

func (t *userTx) SaveProgram(ctx context.Context, p *dietprogram.Program) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE diet_programs SET current_day = ?, status = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND user_id = ?`,
		p.CurrentDay, string(p.Status), millis(p.UpdatedAt), nullMillis(p.CompletedAt), p.ID, t.userID)
	if err != nil {
		return fmt.Errorf("save program: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dietprogram.ErrProgramNotFound
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		UPDATE program_days SET state = ?, completed_at = ? WHERE program_id = ? AND day = ?`)
	if err != nil {
		return fmt.Errorf("prepare program days: %w", err)
	}
	defer stmt.Close()
	for _, d := range p.Days {
		if _, err := stmt.ExecContext(ctx, string(d.State), nullMillis(d.CompletedAt), p.ID, d.Number); err != nil {
			return fmt.Errorf("save program day %d: %w", d.Number, err)
		}
	}
	return nil
}
