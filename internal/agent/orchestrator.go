package agent

import (
	"context"
	"fmt"
	"time"

	"clientprofile/internal/engine"
	"clientprofile/internal/history"
	"go.uber.org/zap"
)

// failedToRecordNotice is the soft warning shown when persistence fails.
const failedToRecordNotice = "Failed to record transaction"

const historyFetchApology = "An error occurred while retrieving chat history. Please inform the user."

// Options are the per-deployment knobs of the orchestrator.
type Options struct {
	HistoryLimit   int
	HistoryMaxAge  time.Duration
	TypingInterval time.Duration
}

// Orchestrator runs one inbound message through the full turn: typing
// indicator, history assembly, completion, delivery and persistence.
type Orchestrator struct {
	store   history.Store
	engine  engine.Completer
	options Options
	logger  *zap.Logger
}

func NewOrchestrator(store history.Store, completer engine.Completer, options Options, logger *zap.Logger) *Orchestrator {
	if options.HistoryLimit <= 0 {
		options.HistoryLimit = 10
	}
	if options.HistoryMaxAge <= 0 {
		options.HistoryMaxAge = 20 * time.Minute
	}
	if options.TypingInterval <= 0 {
		options.TypingInterval = time.Second
	}
	return &Orchestrator{
		store:   store,
		engine:  completer,
		options: options,
		logger:  logger,
	}
}

// HandleTurn processes one inbound message for a channel and reports whether
// a final response was delivered. Persistence failures degrade to a notice;
// a completion failure is the caller's to surface.
func (o *Orchestrator) HandleTurn(ctx context.Context, conv Conversation, channelID, userText string) (bool, error) {
	typingCtx, cancelTyping := context.WithCancel(ctx)
	typingDone := make(chan struct{})
	go o.typingLoop(typingCtx, conv, typingDone)
	// The loop must be fully stopped before the turn returns, whatever the
	// exit path.
	defer func() {
		cancelTyping()
		<-typingDone
	}()

	messages := o.loadHistory(ctx, channelID)
	messages = append(messages,
		engine.Message{Role: history.RoleAssistant, Content: "ChannelID: " + channelID},
		engine.Message{Role: history.RoleAssistant, Content: "Current Date: " + time.Now().Format("2006-01-02 15:04:05")},
		engine.Message{Role: history.RoleUser, Content: userText},
	)

	turn := &engine.TurnContext{
		ChannelID: channelID,
		UserText:  userText,
		Notify: func(ctx context.Context, text string) error {
			return conv.SendMessage(ctx, Envelope{
				Text:     text,
				Entities: []Entity{AIGeneratedEntity()},
			})
		},
	}

	o.persist(ctx, conv, history.Entry{
		ChannelID: channelID,
		Message:   userText,
		Active:    true,
		Role:      history.RoleUser,
		Timestamp: time.Now().UTC(),
	})

	response, err := o.engine.Complete(ctx, engine.Request{
		SystemPrompt: o.systemPrompt(ctx),
		History:      messages,
		ToolsEnabled: true,
		Turn:         turn,
	})
	if err != nil {
		return false, fmt.Errorf("failed to generate response: %w", err)
	}

	if err := conv.SendMessage(ctx, Envelope{
		Text:     response,
		Entities: []Entity{AIGeneratedEntity()},
	}); err != nil {
		return false, fmt.Errorf("failed to deliver response: %w", err)
	}

	// Delivery precedes assistant persistence; the indicator must be silent
	// before the turn log is considered complete.
	cancelTyping()
	<-typingDone

	o.persist(ctx, conv, history.Entry{
		ChannelID: channelID,
		Message:   response,
		Active:    true,
		Role:      history.RoleAssistant,
		Timestamp: time.Now().UTC(),
	})

	return true, nil
}

// typingLoop emits a typing signal immediately and then on every interval
// tick until cancelled. Cancellation is the normal exit, not a failure.
func (o *Orchestrator) typingLoop(ctx context.Context, conv Conversation, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.options.TypingInterval)
	defer ticker.Stop()

	o.sendTyping(ctx, conv)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sendTyping(ctx, conv)
		}
	}
}

func (o *Orchestrator) sendTyping(ctx context.Context, conv Conversation) {
	if err := conv.SendTyping(ctx); err != nil && ctx.Err() == nil {
		o.logger.Warn("Failed to send typing signal", zap.Error(err))
	}
}

// loadHistory returns the channel's window as replayable messages. A fetch
// failure degrades to a diagnostic history instead of aborting the turn.
func (o *Orchestrator) loadHistory(ctx context.Context, channelID string) []engine.Message {
	entries, err := o.store.Recent(ctx, channelID, o.options.HistoryLimit, o.options.HistoryMaxAge)
	if err != nil {
		o.logger.Error("Failed to load history window",
			zap.Error(err),
			zap.String("channel_id", channelID))
		return []engine.Message{
			{Role: history.RoleUser, Content: "Error retrieving chat history: " + err.Error()},
			{Role: history.RoleAssistant, Content: historyFetchApology},
		}
	}

	messages := make([]engine.Message, 0, len(entries)+3)
	for _, e := range entries {
		messages = append(messages, engine.Message{Role: e.Role, Content: e.Message})
	}
	return messages
}

func (o *Orchestrator) systemPrompt(ctx context.Context) string {
	prompt, err := o.store.SystemPrompt(ctx)
	if err != nil {
		o.logger.Error("Failed to fetch system prompt", zap.Error(err))
		if prompt == "" {
			prompt = history.FallbackSystemPrompt
		}
	}
	return prompt
}

// persist appends an entry; on failure the user gets a one-line notice and
// the turn continues.
func (o *Orchestrator) persist(ctx context.Context, conv Conversation, entry history.Entry) {
	if err := o.store.Append(ctx, entry); err != nil {
		o.logger.Error("Failed to persist history entry",
			zap.Error(err),
			zap.String("channel_id", entry.ChannelID),
			zap.String("role", entry.Role))
		if sendErr := conv.SendMessage(ctx, Envelope{Text: failedToRecordNotice}); sendErr != nil {
			o.logger.Error("Failed to send persistence notice", zap.Error(sendErr))
		}
	}
}
