package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitDietAPI/services"
)

const (
	maxWebhookBody = int64(65536)
	// webhookTolerance bounds the age of a signed delivery.
	webhookTolerance = 5 * time.Minute
)

var (
	errMissingSignature = errors.New("missing webhook signature headers")
	errStaleSignature   = errors.New("webhook timestamp outside tolerance")
	errBadSignature     = errors.New("no matching webhook signature")
)

type clerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkUserData struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type WebhookHandler struct {
	userService *services.UserService
	// secret is the signing secret of the Clerk endpoint (whsec_...). Without
	// it every delivery is refused.
	secret string
	now    func() time.Time
}

func NewWebhookHandler(userService *services.UserService, secret string) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
		secret:      secret,
		now:         time.Now,
	}
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		log.Println("Rejecting webhook: CLERK_WEBHOOK_SECRET not set")
		http.Error(w, "Webhook verification not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if err := verifyWebhookSignature(h.secret, r.Header, body, h.now()); err != nil {
		log.Printf("Invalid webhook signature: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	switch event.Type {
	case "user.created", "user.updated":
		if err := h.handleUserUpserted(ctx, event.Data); err != nil {
			log.Printf("Error handling %s: %v", event.Type, err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}
	case "user.deleted":
		if err := h.handleUserDeleted(ctx, event.Data); err != nil {
			log.Printf("Error handling user.deleted: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserUpserted(ctx context.Context, data json.RawMessage) error {
	var userData clerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == "" {
		return errors.New("user data without id")
	}
	name := services.DisplayName(userData.Username, userData.FirstName, userData.LastName)
	return h.userService.SyncProfile(ctx, userData.ID, name)
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == "" {
		return errors.New("user data without id")
	}
	return h.userService.DeleteAccount(ctx, userData.ID)
}

// verifyWebhookSignature checks a Svix-signed delivery as sent by Clerk:
// base64(HMAC-SHA256(id.timestamp.body)) keyed with the decoded secret,
// matched against any "v1,<sig>" entry of the svix-signature header.
func verifyWebhookSignature(secret string, header http.Header, body []byte, now time.Time) error {
	svixID := header.Get("svix-id")
	svixTimestamp := header.Get("svix-timestamp")
	svixSignature := header.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		return errMissingSignature
	}

	ts, err := strconv.ParseInt(svixTimestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid svix-timestamp: %w", err)
	}
	sent := time.Unix(ts, 0)
	if now.Sub(sent) > webhookTolerance || sent.Sub(now) > webhookTolerance {
		return errStaleSignature
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return fmt.Errorf("invalid webhook secret: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(svixID + "." + svixTimestamp + "."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, entry := range strings.Fields(svixSignature) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errBadSignature
}
