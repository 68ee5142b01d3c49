package agent

import "context"

// Entity is the structured provenance tag attached to outbound messages.
type Entity struct {
	Type           string   `json:"type"`
	SchemaType     string   `json:"@type"`
	SchemaContext  string   `json:"@context"`
	AdditionalType []string `json:"additionalType"`
}

// AIGeneratedEntity tags a message as AI-generated content per schema.org.
func AIGeneratedEntity() Entity {
	return Entity{
		Type:           "https://schema.org/Message",
		SchemaType:     "Message",
		SchemaContext:  "https://schema.org",
		AdditionalType: []string{"AIGeneratedContent"},
	}
}

// Envelope is one outbound message: plain text plus provenance entities.
type Envelope struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Conversation is the turn's output channel. Transports implement it over
// HTTP activities or Telegram chats.
type Conversation interface {
	SendMessage(ctx context.Context, env Envelope) error
	SendTyping(ctx context.Context) error
}

// WelcomeText greets newly joined members; transports send it on their own
// join events.
const WelcomeText = "Hi, I'm the Agent Client Profile - I'm here to help bridge the gap between you and your client data by referencing databases to deliver the information you need."
