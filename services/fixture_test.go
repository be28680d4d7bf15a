package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fitDietAPI/internal/catalog"
	"fitDietAPI/internal/notification"
	"fitDietAPI/internal/store"
	"fitDietAPI/internal/store/sqlite"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *recordingNotifier) Notify(msg notification.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) ofType(t notification.MessageType) []notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Message
	for _, m := range n.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type staticProfiles map[string]string

func (p staticProfiles) DisplayName(_ context.Context, userID string) (string, error) {
	return p[userID], nil
}

type fixture struct {
	store    store.Store
	clock    *fakeClock
	notifier *recordingNotifier
	engine   *Engine
	game     *GamificationService
	diet     *DietService
}

// 2025-03-10 09:30 UTC, a Monday.
var start = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func openSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "fit.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, openSQLite(t))
}

func newFixtureWithStore(t *testing.T, s store.Store) *fixture {
	t.Helper()
	f := &fixture{
		store:    s,
		clock:    &fakeClock{t: start},
		notifier: &recordingNotifier{},
	}
	c, err := catalog.Default()
	require.NoError(t, err)
	f.engine = NewEngine(s, c, f.notifier)
	f.engine.SetClock(f.clock.Now)
	f.game = NewGamificationService(f.engine, staticProfiles{"user_a": "Ana"})
	f.diet = NewDietService(f.engine, true)

	n := 0
	f.diet.newID = func() string {
		n++
		return fmt.Sprintf("prog_%d", n)
	}
	return f
}

func (f *fixture) nextDay() {
	f.clock.Advance(24 * time.Hour)
}
