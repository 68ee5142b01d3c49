package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clientprofile/internal/fabric"
	"go.uber.org/zap"
)

// SQLStore keeps history in the dbo.History table of the runtime Fabric
// database and reads the system prompt from dbo.Configuration. Every
// operation opens its own connection and releases it before returning.
type SQLStore struct {
	connector *fabric.Connector
	logger    *zap.Logger
}

func NewSQLStore(connector *fabric.Connector, logger *zap.Logger) *SQLStore {
	return &SQLStore{connector: connector, logger: logger}
}

func (s *SQLStore) Append(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO dbo.History (ChannelID, Message, IsActive, Role, ToolCall)
		VALUES (@p1, @p2, @p3, @p4, @p5)`

	db, err := s.connector.Open(ctx)
	if err != nil {
		return fmt.Errorf("error opening history connection: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, query,
		entry.ChannelID, entry.Message, entry.Active, entry.Role, entry.ToolCall); err != nil {
		return fmt.Errorf("error inserting history entry: %w", err)
	}
	return nil
}

func (s *SQLStore) Recent(ctx context.Context, channelID string, limit int, maxAge time.Duration) ([]Entry, error) {
	const query = `
		SELECT TOP (@p1) ChannelID, Message, IsActive, Role, ToolCall, Timestamp
		FROM dbo.History
		WHERE ChannelID = @p2
		  AND Timestamp >= @p3
		  AND IsActive = 1
		ORDER BY Timestamp DESC`

	db, err := s.connector.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("error opening history connection: %w", err)
	}
	defer db.Close()

	threshold := time.Now().UTC().Add(-maxAge)
	rows, err := db.QueryContext(ctx, query, limit, channelID, threshold)
	if err != nil {
		return nil, fmt.Errorf("error querying history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var role, toolCall sql.NullString
		if err := rows.Scan(&e.ChannelID, &e.Message, &e.Active, &role, &toolCall, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning history entry: %w", err)
		}
		e.Role = role.String
		e.ToolCall = toolCall.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading history rows: %w", err)
	}

	// Retrieval is newest first; replay wants chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *SQLStore) Deactivate(ctx context.Context, channelID string) (bool, error) {
	const query = `
		UPDATE dbo.History
		   SET IsActive = 0
		 WHERE ChannelID = @p1`

	db, err := s.connector.Open(ctx)
	if err != nil {
		return false, fmt.Errorf("error opening history connection: %w", err)
	}
	defer db.Close()

	result, err := db.ExecContext(ctx, query, channelID)
	if err != nil {
		return false, fmt.Errorf("error deactivating history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLStore) SystemPrompt(ctx context.Context) (string, error) {
	const query = `SELECT TOP 1 [System prompt] FROM dbo.Configuration ORDER BY Id DESC`

	db, err := s.connector.Open(ctx)
	if err != nil {
		s.logger.Error("Failed to open connection for system prompt", zap.Error(err))
		return FallbackSystemPrompt, err
	}
	defer db.Close()

	var prompt sql.NullString
	if err := db.QueryRowContext(ctx, query).Scan(&prompt); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		s.logger.Error("Failed to read system prompt", zap.Error(err))
		return FallbackSystemPrompt, err
	}
	return prompt.String, nil
}

func (s *SQLStore) Close() error {
	// Connections are per-operation, nothing is held open.
	return nil
}
