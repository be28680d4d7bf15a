package services

import (
	"context"
	"fmt"
	"log"

	"fitDietAPI/internal/store"
)

// UserService keeps local account data in step with the identity provider.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService {
	return &UserService{store: s}
}

// SyncProfile stores the name shown on the leaderboard. The progression row
// is created when missing.
func (s *UserService) SyncProfile(ctx context.Context, userID, displayName string) error {
	if displayName == "" {
		return nil
	}
	if err := s.store.SetDisplayName(ctx, userID, displayName); err != nil {
		return fmt.Errorf("failed to sync profile: %w", err)
	}
	return nil
}

// DeleteAccount removes every trace of the user: progression, ledger,
// achievements, programs, metrics and devices.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	log.Printf("UserService: deleted all data of user %s", userID)
	return nil
}
