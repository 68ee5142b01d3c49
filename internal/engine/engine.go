package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxToolRounds bounds the automatic tool-invocation loop. The model gets
// this many chances to call tools before the engine gives up on the turn.
const maxToolRounds = 8

// Message is one conversation line handed to the engine. Role uses the
// history store's values ("User"/"Assistant"); anything that is not
// recognisably assistant replays as a user line.
type Message struct {
	Role    string
	Content string
}

// Request describes one completion: the replayed history, a system prompt
// fetched fresh for this turn, whether tools may be invoked, and the turn
// context threaded through to tool dispatch.
type Request struct {
	SystemPrompt string
	History      []Message
	ToolsEnabled bool
	Turn         *TurnContext
}

// Completer produces a final assistant message for a request, invoking zero
// or more tools along the way.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ChatClient is the slice of the OpenAI client the engine needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Engine struct {
	client      ChatClient
	registry    *Registry
	middleware  []Middleware
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

func New(client ChatClient, registry *Registry, model string, maxTokens int, temperature float64, logger *zap.Logger) *Engine {
	return &Engine{
		client:      client,
		registry:    registry,
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		logger:      logger,
	}
}

// Use appends invocation middleware. Middleware runs in registration order
// around every tool dispatch.
func (e *Engine) Use(mw Middleware) {
	e.middleware = append(e.middleware, mw)
}

// Complete runs the chat completion loop. When the model requests tool
// calls, each is dispatched through the middleware chain to its registered
// handler and the result is fed back, until the model returns plain text.
func (e *Engine) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}

	var tools []openai.Tool
	if req.ToolsEnabled {
		tools = e.registry.Definitions()
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       e.model,
			Messages:    messages,
			Tools:       tools,
			MaxTokens:   e.maxTokens,
			Temperature: e.temperature,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}

		choice := resp.Choices[0].Message
		if len(choice.ToolCalls) == 0 {
			return strings.TrimSpace(choice.Content), nil
		}

		messages = append(messages, choice)
		for _, call := range choice.ToolCalls {
			content := e.dispatch(ctx, call, req.Turn)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    content,
			})
		}
	}

	return "", fmt.Errorf("tool invocation did not converge after %d rounds", maxToolRounds)
}

// dispatch runs one tool call through the middleware chain. Handler failures
// are reported back to the model as text so it can rephrase or retry; they
// never abort the completion.
func (e *Engine) dispatch(ctx context.Context, call openai.ToolCall, turn *TurnContext) string {
	inv := &Invocation{
		Name: call.Function.Name,
		Args: []byte(call.Function.Arguments),
		Turn: turn,
	}

	next := Next(func(ctx context.Context) (string, error) {
		handler, ok := e.registry.handler(inv.Name)
		if !ok {
			return "", fmt.Errorf("unknown tool %q", inv.Name)
		}
		return handler(ctx, inv.Args, inv.Turn)
	})
	for i := len(e.middleware) - 1; i >= 0; i-- {
		mw := e.middleware[i]
		inner := next
		next = func(ctx context.Context) (string, error) {
			return mw(ctx, inv, inner)
		}
	}

	result, err := next(ctx)
	if err != nil {
		e.logger.Error("Tool invocation failed",
			zap.Error(err),
			zap.String("tool", inv.Name))
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func chatRole(role string) string {
	if strings.EqualFold(role, "assistant") {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
