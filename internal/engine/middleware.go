package engine

import (
	"context"
	"encoding/json"
)

// TurnContext is the per-turn capability bundle handed to tool dispatch. It
// travels with the completion request rather than living in a shared slot, so
// concurrent turns cannot observe each other's context. Read-only during
// dispatch; its lifetime is bounded by the turn.
type TurnContext struct {
	ChannelID string
	UserText  string

	// Notify sends one out-of-band message through the turn's output
	// channel. Nil when the turn has no output channel attached.
	Notify func(ctx context.Context, text string) error
}

// Invocation describes one tool call as seen by middleware.
type Invocation struct {
	Name string
	Args json.RawMessage
	Turn *TurnContext
}

// Next runs the remainder of the dispatch chain, ending at the tool handler.
type Next func(ctx context.Context) (string, error)

// Middleware wraps tool dispatch. Implementations must call next exactly once
// and return its result; the engine does not guard against skipped handlers.
type Middleware func(ctx context.Context, inv *Invocation, next Next) (string, error)
