package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// multicastLimit is the largest token list FCM accepts in one call.
const multicastLimit = 500

type FCMService struct {
	client *messaging.Client
}

// NewFCMService initializes FCMService. encodedJSON is a base64 service
// account key (FCM_SERVICE_ACCOUNT_JSON); when empty the key is read from
// credentialsFile.
func NewFCMService(ctx context.Context, encodedJSON, credentialsFile string) (*FCMService, error) {
	var opt option.ClientOption

	if encodedJSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("FCM Service: Initializing from FCM_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		if credentialsFile == "" {
			return nil, fmt.Errorf("no firebase credentials configured")
		}
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found: %s", credentialsFile)
		}
		opt = option.WithCredentialsFile(credentialsFile)
		log.Printf("FCM Service: Initializing from local file: %s.", credentialsFile)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendPush delivers one notification to every token. It fails only when no
// message got through.
func (s *FCMService) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	successCount, failureCount := 0, 0
	for start := 0; start < len(tokens); start += multicastLimit {
		end := min(start+multicastLimit, len(tokens))

		resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: tokens[start:end],
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
			Android: &messaging.AndroidConfig{
				Priority: "high",
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default"},
				},
			},
		})
		if err != nil {
			log.Printf("FCM: multicast failed: %v", err)
			failureCount += end - start
			continue
		}
		successCount += resp.SuccessCount
		failureCount += resp.FailureCount
		for i, r := range resp.Responses {
			if !r.Success {
				log.Printf("FCM: Failed to send to token %s: %v", tokens[start+i], r.Error)
			}
		}
	}

	log.Printf("FCM: Sent %d messages, %d failed", successCount, failureCount)

	if successCount == 0 && failureCount > 0 {
		return fmt.Errorf("all push notifications failed")
	}
	return nil
}
