package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brunovale/deputado-bot/internal/ai"
)

// Buffer is a fixed-capacity ordered sequence of messages for one
// conversation. Once capacity is exceeded the oldest message is dropped.
// When a log is attached, every append mirrors the newest message into it
// best-effort: log failures never fail the in-memory append.
type Buffer struct {
	mu        sync.Mutex
	channelID string
	capacity  int
	messages  []Message
	log       *MessageLog // nil for ephemeral buffers
	logger    *slog.Logger
}

// NewBuffer creates a buffer. A non-nil log with a non-empty channelID
// enables persistence; persisted history is loaded back on creation.
// Buffers with an empty channelID are ephemeral and never touch the log.
func NewBuffer(ctx context.Context, channelID string, capacity int, log *MessageLog, logger *slog.Logger) *Buffer {
	b := &Buffer{
		channelID: channelID,
		capacity:  capacity,
		messages:  make([]Message, 0, capacity),
		log:       log,
		logger:    logger,
	}

	if b.persisted() {
		messages, err := log.Load(ctx, channelID, capacity)
		if err != nil {
			logger.Error("failed to load persisted messages",
				"channel", channelID, "error", err)
		} else {
			b.messages = append(b.messages, messages...)
		}
	}

	return b
}

// AppendUser appends a user turn.
func (b *Buffer) AppendUser(ctx context.Context, userID, username, content string) {
	b.append(ctx, NewUserMessage(userID, username, content))
}

// AppendAssistant appends an assistant turn.
func (b *Buffer) AppendAssistant(ctx context.Context, content string) {
	b.append(ctx, NewAssistantMessage(content))
}

// AppendSystem appends a system turn.
func (b *Buffer) AppendSystem(ctx context.Context, content string) {
	b.append(ctx, NewSystemMessage(content))
}

func (b *Buffer) append(ctx context.Context, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append(b.messages, msg)
	if len(b.messages) > b.capacity {
		b.messages = b.messages[len(b.messages)-b.capacity:]
	}

	if b.persisted() {
		if err := b.log.Append(ctx, b.channelID, msg, b.capacity); err != nil {
			b.logger.Error("failed to persist message",
				"channel", b.channelID, "error", err)
		}
	}
}

// ExportForCompletion returns the provider-ready message sequence. User
// entries carry speaker attribution as "username: content" since providers
// accept only role and content; assistant and system entries pass through.
func (b *Buffer) ExportForCompletion() []ai.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	exported := make([]ai.ChatMessage, 0, len(b.messages))
	for _, msg := range b.messages {
		if msg.Role == RoleUser {
			username := msg.Username
			if username == "" {
				username = "Usuário"
			}
			exported = append(exported, ai.ChatMessage{
				Role:    string(msg.Role),
				Content: fmt.Sprintf("%s: %s", username, msg.Content),
			})
			continue
		}
		exported = append(exported, ai.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return exported
}

// Snapshot returns a copy of the raw message sequence including metadata.
func (b *Buffer) Snapshot() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Len returns the number of retained messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// LastTimestamp returns the newest message's timestamp, or 0 when empty.
func (b *Buffer) LastTimestamp() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.messages) == 0 {
		return 0
	}
	return b.messages[len(b.messages)-1].Timestamp
}

// Clear empties the buffer and, when persisted, removes the channel's rows
// from the log.
func (b *Buffer) Clear(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = b.messages[:0]

	if b.persisted() {
		if err := b.log.Clear(ctx, b.channelID); err != nil {
			b.logger.Error("failed to clear persisted messages",
				"channel", b.channelID, "error", err)
		}
	}
}

func (b *Buffer) persisted() bool {
	return b.log != nil && b.channelID != ""
}
