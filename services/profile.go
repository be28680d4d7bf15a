package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/user"
)

// ProfileSource looks up the public name shown on the leaderboard.
type ProfileSource interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// ClerkProfiles reads names from the Clerk user API. clerk.SetKey must have
// been called.
type ClerkProfiles struct{}

func (ClerkProfiles) DisplayName(ctx context.Context, userID string) (string, error) {
	u, err := user.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch clerk user %s: %w", userID, err)
	}
	return DisplayName(deref(u.Username), deref(u.FirstName), deref(u.LastName)), nil
}

// DisplayName prefers the username and falls back to the full name.
func DisplayName(username, firstName, lastName string) string {
	if username = strings.TrimSpace(username); username != "" {
		return username
	}
	return strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
