// Package tools wires the query, schema and forget capabilities into the
// completion engine's tool registry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"clientprofile/internal/engine"
	"clientprofile/internal/history"
	"clientprofile/internal/query"
	"clientprofile/internal/tabular"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Tool names as the model sees them.
const (
	NameDatabaseConnection   = "DatabaseConnection"
	NameGetDatabaseStructure = "GetDatabaseStructure"
	NameClearContext         = "clearcontext"
)

type databaseConnectionArgs struct {
	SQLQuery  string `json:"sqlQuery"`
	ChannelID string `json:"channelId"`
}

type clearContextArgs struct {
	ChannelID string `json:"channelId"`
}

// RegisterAll declares the three tools on the registry. Called once at
// startup; a registration error means the tool set itself is broken.
func RegisterAll(registry *engine.Registry, executor *query.Executor, describer *query.Describer, store history.Store, logger *zap.Logger) error {
	err := registry.Register(openai.FunctionDefinition{
		Name:        NameDatabaseConnection,
		Description: "Executes a SQL query against the lakehouse. Call GetDatabaseStructure first if schema info is needed.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sqlQuery":  map[string]any{"type": "string", "description": "The SQL query to execute verbatim."},
				"channelId": map[string]any{"type": "string", "description": "The conversation channel identifier."},
			},
			"required": []string{"sqlQuery"},
		},
	}, databaseConnectionHandler(executor))
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", NameDatabaseConnection, err)
	}

	err = registry.Register(openai.FunctionDefinition{
		Name:        NameGetDatabaseStructure,
		Description: "Returns schema.table column types as a single string with literal \\r\\n separators.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, schemaHandler(describer))
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", NameGetDatabaseStructure, err)
	}

	err = registry.Register(openai.FunctionDefinition{
		Name:        NameClearContext,
		Description: "Forget / clear the chat history for the channel.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channelId": map[string]any{"type": "string", "description": "The conversation channel identifier."},
			},
			"required": []string{"channelId"},
		},
	}, clearContextHandler(store, logger))
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", NameClearContext, err)
	}

	return nil
}

// databaseConnectionHandler runs the query and returns CSV text, or the
// two-line error payload. Both shapes are plain text for the model.
func databaseConnectionHandler(executor *query.Executor) engine.Handler {
	return func(ctx context.Context, args json.RawMessage, turn *engine.TurnContext) (string, error) {
		var parsed databaseConnectionArgs
		if err := json.Unmarshal(args, &parsed); err != nil {
			return query.RenderError(fmt.Errorf("invalid arguments: %w", err)), nil
		}

		channelID := parsed.ChannelID
		if channelID == "" && turn != nil {
			channelID = turn.ChannelID
		}

		result, err := executor.Execute(ctx, parsed.SQLQuery, channelID)
		if err != nil {
			return query.RenderError(err), nil
		}
		return tabular.EncodeCSV(result), nil
	}
}

func schemaHandler(describer *query.Describer) engine.Handler {
	return func(ctx context.Context, args json.RawMessage, turn *engine.TurnContext) (string, error) {
		description, err := describer.Describe(ctx)
		if err != nil {
			return query.RenderError(err), nil
		}
		return description, nil
	}
}

func clearContextHandler(store history.Store, logger *zap.Logger) engine.Handler {
	return func(ctx context.Context, args json.RawMessage, turn *engine.TurnContext) (string, error) {
		var parsed clearContextArgs
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "false", nil
		}

		channelID := parsed.ChannelID
		if channelID == "" && turn != nil {
			channelID = turn.ChannelID
		}

		affected, err := store.Deactivate(ctx, channelID)
		if err != nil {
			logger.Error("Failed to clear history",
				zap.Error(err),
				zap.String("channel_id", channelID))
			return "false", nil
		}
		if affected {
			return "true", nil
		}
		return "false", nil
	}
}
