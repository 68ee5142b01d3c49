package history

import (
	"context"
	"time"
)

// Role values as stored in dbo.History.
const (
	RoleUser      = "User"
	RoleAssistant = "Assistant"
)

// FallbackSystemPrompt is returned when the configuration table cannot be
// read, so the engine is told to say so instead of answering blind.
const FallbackSystemPrompt = "Please inform user that the system prompt cannot be accessed."

// Entry is one persisted conversation record. Message may be empty when the
// entry only logs a tool call; ToolCall carries the (truncated) query text in
// that case.
type Entry struct {
	ChannelID string    `json:"channel_id"`
	Message   string    `json:"message"`
	Active    bool      `json:"is_active"`
	Role      string    `json:"role"`
	ToolCall  string    `json:"tool_call_text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists and retrieves conversation history plus the mutable system
// prompt configuration.
type Store interface {
	// Append inserts a new entry for the entry's channel.
	Append(ctx context.Context, entry Entry) error

	// Recent returns up to limit active entries for the channel newer than
	// maxAge, ordered oldest first regardless of how the backend retrieves
	// them.
	Recent(ctx context.Context, channelID string, limit int, maxAge time.Duration) ([]Entry, error)

	// Deactivate flags every entry of the channel inactive. Entries are
	// never physically deleted. Reports whether any entry was affected.
	Deactivate(ctx context.Context, channelID string) (bool, error)

	// SystemPrompt returns the most recently configured system prompt.
	SystemPrompt(ctx context.Context) (string, error)

	Close() error
}
