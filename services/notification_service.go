package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"fitDietAPI/internal/apperr"
	"fitDietAPI/internal/notification"
	"fitDietAPI/internal/store"
)

var ErrInvalidDevice = apperr.New(apperr.KindValidation, "invalid_device", "device token and a platform of ios, android or web are required")

type NotificationService struct {
	store store.Store
	now   func() time.Time
}

func NewNotificationService(s store.Store) *NotificationService {
	return &NotificationService{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RegisterDevice stores an FCM token for userID. A token already registered
// to another account moves to this one.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req notification.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	switch {
	case token == "":
		return ErrInvalidDevice
	case platform != "ios" && platform != "android" && platform != "web":
		return fmt.Errorf("%w: got platform %q", ErrInvalidDevice, req.Platform)
	}

	err := s.store.RegisterDevice(ctx, store.Device{
		UserID:    userID,
		Token:     token,
		Platform:  platform,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	log.Printf("NotificationService: registered %s device for user %s", platform, userID)
	return nil
}
