// Package telegram serves the agent over a Telegram bot. The chat id is the
// channel identifier; the typing signal maps to the chat typing action.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"clientprofile/internal/agent"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	api          *tgbotapi.BotAPI
	orchestrator *agent.Orchestrator
	logger       *zap.Logger
}

func New(token string, orchestrator *agent.Orchestrator, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:          api,
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

// Start consumes updates until the context is cancelled. Each message runs
// its turn on its own goroutine so slow queries on one chat do not stall the
// others.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	conv := &conversation{api: b.api, chatID: message.Chat.ID, logger: b.logger}
	channelID := strconv.FormatInt(message.Chat.ID, 10)

	if _, err := b.orchestrator.HandleTurn(ctx, conv, channelID, message.Text); err != nil {
		b.logger.Error("Turn failed",
			zap.Error(err),
			zap.String("channel_id", channelID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't generate a response. Please try again.")
	}
}

func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.sendMessage(message.Chat.ID, agent.WelcomeText)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Just send me a question about your client data.")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.sendMessage(chatID, "⚠️ "+text)
}

// conversation adapts one chat to the agent's output channel. Telegram has
// no field for provenance entities; the tag stays inside the envelope for
// transports that serialize it.
type conversation struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func (c *conversation) SendMessage(ctx context.Context, env agent.Envelope) error {
	msg := tgbotapi.NewMessage(c.chatID, env.Text)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *conversation) SendTyping(ctx context.Context) error {
	action := tgbotapi.NewChatAction(c.chatID, tgbotapi.ChatTyping)
	if _, err := c.api.Request(action); err != nil {
		return fmt.Errorf("failed to send typing action: %w", err)
	}
	return nil
}
