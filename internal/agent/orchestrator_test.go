package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"clientprofile/internal/engine"
	"clientprofile/internal/history"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedClient replays canned chat completion responses in order.
type scriptedClient struct {
	responses []openai.ChatCompletionResponse
}

func (c *scriptedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(c.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response left")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func assistantText(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func assistantToolCall(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call-1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: args},
				}},
			}},
		},
	}
}

// Full turn: the engine calls the query tool, the interceptor sends an
// interim message, the final answer is delivered tagged as AI-generated and
// both turn messages are persisted.
func TestHandleTurnEndToEnd(t *testing.T) {
	logger := zap.NewNop()
	store := history.NewMemoryStore()
	conv := &recordingConversation{}

	client := &scriptedClient{responses: []openai.ChatCompletionResponse{
		assistantToolCall("DatabaseConnection", `{"sqlQuery":"SELECT COUNT(*) AS count FROM clients WHERE active = 1"}`),
		assistantText("Working on your client count!"),
		assistantText("There are 42 active clients."),
	}}

	registry := engine.NewRegistry()
	require.NoError(t, registry.Register(openai.FunctionDefinition{Name: "DatabaseConnection"},
		func(ctx context.Context, args json.RawMessage, turn *engine.TurnContext) (string, error) {
			return "count\n42\n", nil
		}))

	eng := engine.New(client, registry, "gpt-4o", 1024, 0.7, logger)
	eng.Use(NewInterceptor(eng, "waiting persona", logger).Middleware())

	orch := NewOrchestrator(store, eng, Options{TypingInterval: 10 * time.Millisecond}, logger)
	delivered, err := orch.HandleTurn(context.Background(), conv, "C1", "How many active clients?")
	require.NoError(t, err)
	assert.True(t, delivered)

	sent := conv.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Working on your client count!", sent[0].Text)
	assert.Equal(t, "There are 42 active clients.", sent[1].Text)
	for _, env := range sent {
		require.Len(t, env.Entities, 1)
		assert.Equal(t, "https://schema.org/Message", env.Entities[0].Type)
		assert.Contains(t, env.Entities[0].AdditionalType, "AIGeneratedContent")
	}
	assert.GreaterOrEqual(t, conv.typingCount(), 1)

	entries, err := store.Recent(context.Background(), "C1", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, history.RoleUser, entries[0].Role)
	assert.Equal(t, "How many active clients?", entries[0].Message)
	assert.Equal(t, history.RoleAssistant, entries[1].Role)
	assert.Equal(t, "There are 42 active clients.", entries[1].Message)
}

// recordingCompleter captures the request and what the store held at call
// time, so ordering against persistence can be asserted.
type recordingCompleter struct {
	store          history.Store
	response       string
	err            error
	request        engine.Request
	storedAtInvoke []history.Entry
}

func (f *recordingCompleter) Complete(ctx context.Context, req engine.Request) (string, error) {
	f.request = req
	f.storedAtInvoke, _ = f.store.Recent(ctx, "C1", 10, time.Hour)
	return f.response, f.err
}

func TestHandleTurnPersistsUserBeforeCompletion(t *testing.T) {
	store := history.NewMemoryStore()
	store.SetSystemPrompt("answer with data")
	conv := &recordingConversation{}
	completer := &recordingCompleter{store: store, response: "fine"}

	orch := NewOrchestrator(store, completer, Options{TypingInterval: time.Hour}, zap.NewNop())
	delivered, err := orch.HandleTurn(context.Background(), conv, "C1", "hello")
	require.NoError(t, err)
	assert.True(t, delivered)

	require.Len(t, completer.storedAtInvoke, 1)
	assert.Equal(t, "hello", completer.storedAtInvoke[0].Message)
	assert.Equal(t, "answer with data", completer.request.SystemPrompt)
	assert.True(t, completer.request.ToolsEnabled)

	// The history handed to the engine ends with the synthetic context
	// lines and the new user message; synthetic lines are never persisted.
	msgs := completer.request.History
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "ChannelID: C1", msgs[len(msgs)-3].Content)
	assert.Contains(t, msgs[len(msgs)-2].Content, "Current Date: ")
	assert.Equal(t, "hello", msgs[len(msgs)-1].Content)

	entries, err := store.Recent(context.Background(), "C1", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotContains(t, e.Message, "ChannelID: ")
		assert.NotContains(t, e.Message, "Current Date: ")
	}

	require.NotNil(t, completer.request.Turn)
	assert.Equal(t, "C1", completer.request.Turn.ChannelID)
	assert.Equal(t, "hello", completer.request.Turn.UserText)
}

func TestHandleTurnCompletionFailurePropagates(t *testing.T) {
	store := history.NewMemoryStore()
	conv := &recordingConversation{}
	completer := &recordingCompleter{store: store, err: errors.New("model unavailable")}

	orch := NewOrchestrator(store, completer, Options{TypingInterval: time.Hour}, zap.NewNop())
	delivered, err := orch.HandleTurn(context.Background(), conv, "C1", "hello")
	require.Error(t, err)
	assert.False(t, delivered)
	assert.ErrorContains(t, err, "failed to generate response")

	// No final answer was sent, and only the user message persisted.
	assert.Empty(t, conv.sent())
	entries, storeErr := store.Recent(context.Background(), "C1", 10, time.Hour)
	require.NoError(t, storeErr)
	require.Len(t, entries, 1)
	assert.Equal(t, history.RoleUser, entries[0].Role)
}

// failingStore breaks selected operations to exercise the soft paths.
type failingStore struct {
	*history.MemoryStore
	appendErr error
	recentErr error
}

func (s *failingStore) Append(ctx context.Context, entry history.Entry) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.Append(ctx, entry)
}

func (s *failingStore) Recent(ctx context.Context, channelID string, limit int, maxAge time.Duration) ([]history.Entry, error) {
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	return s.MemoryStore.Recent(ctx, channelID, limit, maxAge)
}

func TestHandleTurnPersistenceFailureIsSoft(t *testing.T) {
	store := &failingStore{MemoryStore: history.NewMemoryStore(), appendErr: errors.New("disk full")}
	conv := &recordingConversation{}
	completer := &recordingCompleter{store: store, response: "answer"}

	orch := NewOrchestrator(store, completer, Options{TypingInterval: time.Hour}, zap.NewNop())
	delivered, err := orch.HandleTurn(context.Background(), conv, "C1", "hello")
	require.NoError(t, err)
	assert.True(t, delivered)

	// Two notices (user and assistant persistence) plus the answer.
	sent := conv.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, failedToRecordNotice, sent[0].Text)
	assert.Equal(t, "answer", sent[1].Text)
	assert.Equal(t, failedToRecordNotice, sent[2].Text)
}

func TestHandleTurnHistoryFetchFailureDegrades(t *testing.T) {
	store := &failingStore{MemoryStore: history.NewMemoryStore(), recentErr: errors.New("timeout")}
	conv := &recordingConversation{}
	completer := &recordingCompleter{store: store, response: "answer"}

	orch := NewOrchestrator(store, completer, Options{TypingInterval: time.Hour}, zap.NewNop())
	delivered, err := orch.HandleTurn(context.Background(), conv, "C1", "hello")
	require.NoError(t, err)
	assert.True(t, delivered)

	msgs := completer.request.History
	require.GreaterOrEqual(t, len(msgs), 5)
	assert.Contains(t, msgs[0].Content, "Error retrieving chat history")
	assert.Equal(t, historyFetchApology, msgs[1].Content)
}

func TestTypingLoopEmitsUntilCancelled(t *testing.T) {
	conv := &recordingConversation{}
	orch := NewOrchestrator(history.NewMemoryStore(), &recordingCompleter{}, Options{TypingInterval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go orch.typingLoop(ctx, conv, done)

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("typing loop did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, conv.typingCount(), 2)
}
