// Package cache holds the most recent leaderboard snapshot so reads do not
// hit the database on every request.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"fitDietAPI/internal/leaderboard"
)

var ErrMiss = errors.New("cache miss")

// Snapshot is an unranked copy of every user's standing.
type Snapshot struct {
	Entries     []*leaderboard.LeaderboardEntry `json:"entries"`
	RefreshedAt time.Time                       `json:"refreshed_at"`
}

type SnapshotCache interface {
	// Get returns ErrMiss when no snapshot has been stored yet.
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, s *Snapshot) error
}

// Memory is a process-local SnapshotCache.
type Memory struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, ErrMiss
	}
	return m.snap, nil
}

func (m *Memory) Set(_ context.Context, s *Snapshot) error {
	m.mu.Lock()
	m.snap = s
	m.mu.Unlock()
	return nil
}
