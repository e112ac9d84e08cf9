// Package store implements the conversation context store: bounded
// per-channel message buffers, a process-wide registry with idle eviction,
// and an optional SQLite-backed durable message log.
package store

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversational turn. Timestamp is real-valued Unix
// seconds and serves as the per-channel ordering and dedup key in the log.
type Message struct {
	Role      Role    `json:"role"`
	Content   string  `json:"content"`
	UserID    string  `json:"user_id,omitempty"`  // user messages only
	Username  string  `json:"username,omitempty"` // user messages only
	Timestamp float64 `json:"timestamp"`
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// NewUserMessage creates a user turn stamped with the current time.
func NewUserMessage(userID, username, content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		UserID:    userID,
		Username:  username,
		Timestamp: nowSeconds(),
	}
}

// NewAssistantMessage creates an assistant turn stamped with the current time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: nowSeconds()}
}

// NewSystemMessage creates a system turn stamped with the current time.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: nowSeconds()}
}
