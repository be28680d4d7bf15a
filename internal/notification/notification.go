package notification

import "time"

type MessageType string

const (
	MessageLevelUp          MessageType = "level_up"
	MessageAchievement      MessageType = "achievement"
	MessageProgramCompleted MessageType = "program_completed"
)

// Message is one push addressed to every registered device of a user.
type Message struct {
	UserID    string            `json:"user_id"`
	Type      MessageType       `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
