package agent

import (
	"context"

	"clientprofile/internal/engine"
	"clientprofile/internal/history"
	"clientprofile/internal/tools"
	"go.uber.org/zap"
)

// fallbackInterimText is sent when interim-message generation fails.
const fallbackInterimText = "Database Initiated, Please wait..."

// Interceptor watches tool dispatch and, when the long-running query tool is
// about to run, sends one short interim message through the turn's output
// channel before the tool proceeds. Notification failures never block or
// fail the tool call.
type Interceptor struct {
	engine        engine.Completer
	waitingPrompt string
	logger        *zap.Logger
}

func NewInterceptor(completer engine.Completer, waitingPrompt string, logger *zap.Logger) *Interceptor {
	return &Interceptor{
		engine:        completer,
		waitingPrompt: waitingPrompt,
		logger:        logger,
	}
}

// Middleware returns the invocation middleware to install on the engine.
// next is always called exactly once and its result passes through untouched.
func (i *Interceptor) Middleware() engine.Middleware {
	return func(ctx context.Context, inv *engine.Invocation, next engine.Next) (string, error) {
		if inv.Name == tools.NameDatabaseConnection && inv.Turn != nil && inv.Turn.Notify != nil {
			text := i.interimText(ctx, inv.Turn.UserText)
			if err := inv.Turn.Notify(ctx, text); err != nil {
				i.logger.Error("Failed to send interim notification",
					zap.Error(err),
					zap.String("channel_id", inv.Turn.ChannelID))
			}
		}
		return next(ctx)
	}
}

// interimText asks the engine for a short, novel waiting message under the
// persona prompt. Tools stay disabled so the nested call cannot recurse into
// dispatch. Any failure falls back to the static text.
func (i *Interceptor) interimText(ctx context.Context, userText string) string {
	response, err := i.engine.Complete(ctx, engine.Request{
		SystemPrompt: i.waitingPrompt,
		History: []engine.Message{
			{Role: history.RoleUser, Content: "The user asked:" + userText},
		},
	})
	if err != nil || response == "" {
		if err != nil {
			i.logger.Warn("Interim message generation failed, using fallback", zap.Error(err))
		}
		return fallbackInterimText
	}
	return response
}
