// Package httpapi exposes the agent on POST /api/messages. The inbound body
// is one activity (channel id plus text); the response is the ordered array
// of outbound activities produced by that turn, typing signals included.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"clientprofile/internal/agent"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	activityTypeMessage            = "message"
	activityTypeTyping             = "typing"
	activityTypeConversationUpdate = "conversationUpdate"
)

// InboundActivity is the request body. Conversation.ID is accepted as an
// alternative carrier of the channel identifier.
type InboundActivity struct {
	Type         string `json:"type"`
	ChannelID    string `json:"channelId"`
	Text         string `json:"text"`
	Conversation *struct {
		ID string `json:"id"`
	} `json:"conversation,omitempty"`
}

func (a InboundActivity) channel() string {
	if a.ChannelID != "" {
		return a.ChannelID
	}
	if a.Conversation != nil {
		return a.Conversation.ID
	}
	return ""
}

// OutboundActivity is one element of the response array.
type OutboundActivity struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Text     string         `json:"text,omitempty"`
	Entities []agent.Entity `json:"entities,omitempty"`
}

// Orchestrator is the slice of the agent the handler needs.
type Orchestrator interface {
	HandleTurn(ctx context.Context, conv agent.Conversation, channelID, userText string) (bool, error)
}

type Handler struct {
	orchestrator Orchestrator
	logger       *zap.Logger
}

func NewHandler(orchestrator Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logger: logger}
}

// Mux returns the route table for the transport.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages", h.handleMessages)
	return mux
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var inbound InboundActivity
	if err := json.NewDecoder(r.Body).Decode(&inbound); err != nil {
		http.Error(w, "invalid activity payload", http.StatusBadRequest)
		return
	}
	channelID := inbound.channel()
	if channelID == "" {
		http.Error(w, "missing channel identifier", http.StatusBadRequest)
		return
	}

	if inbound.Type == activityTypeConversationUpdate {
		writeActivities(w, []OutboundActivity{{
			Type: activityTypeMessage,
			ID:   uuid.New().String(),
			Text: agent.WelcomeText,
		}})
		return
	}

	conv := &collector{}
	if _, err := h.orchestrator.HandleTurn(r.Context(), conv, channelID, inbound.Text); err != nil {
		h.logger.Error("Turn failed",
			zap.Error(err),
			zap.String("channel_id", channelID))
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	writeActivities(w, conv.activities())
}

func writeActivities(w http.ResponseWriter, activities []OutboundActivity) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(activities)
}

// collector is a Conversation that buffers the turn's outbound activities so
// the whole sequence can be returned as the HTTP response.
type collector struct {
	mu   sync.Mutex
	sent []OutboundActivity
}

func (c *collector) SendMessage(ctx context.Context, env agent.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, OutboundActivity{
		Type:     activityTypeMessage,
		ID:       uuid.New().String(),
		Text:     env.Text,
		Entities: env.Entities,
	})
	return nil
}

func (c *collector) SendTyping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, OutboundActivity{
		Type: activityTypeTyping,
		ID:   uuid.New().String(),
	})
	return nil
}

func (c *collector) activities() []OutboundActivity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil {
		return []OutboundActivity{}
	}
	return append([]OutboundActivity(nil), c.sent...)
}
