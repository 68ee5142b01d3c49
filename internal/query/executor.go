package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clientprofile/internal/fabric"
	"clientprofile/internal/history"
	"clientprofile/internal/tabular"
	"go.uber.org/zap"
)

// maxQueryLogLength bounds the audit copy of executed query text.
const maxQueryLogLength = 2000

// Executor runs model-generated query text against the lakehouse endpoint.
// The text is trusted as-is: no rewriting, no validation. Every executed
// query is logged to history for audit, success or failure.
type Executor struct {
	connector *fabric.Connector
	store     history.Store
	timeout   time.Duration
	logger    *zap.Logger
}

func NewExecutor(connector *fabric.Connector, store history.Store, timeout time.Duration, logger *zap.Logger) *Executor {
	return &Executor{
		connector: connector,
		store:     store,
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute runs queryText verbatim and materializes the result in server
// cursor order. Failures come back as *ExecError; the audit entry is written
// whenever the query was actually submitted, even if it then failed.
func (e *Executor) Execute(ctx context.Context, queryText, channelID string) (*tabular.Result, error) {
	db, err := e.connector.Open(ctx)
	if err != nil {
		if errors.Is(err, fabric.ErrMissingConfig) {
			return nil, &ExecError{
				Kind:    KindConfiguration,
				Message: fmt.Sprintf("Configuration Error: %v", err),
				Err:     err,
			}
		}
		return nil, &ExecError{
			Kind:    KindConnection,
			Message: "Failed to establish database connection",
			Err:     err,
		}
	}
	defer db.Close()

	// Analytical scans over the lakehouse can be slow; the budget here is
	// deliberately much longer than the interactive turn's.
	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, queryText)
	e.logQuery(ctx, channelID, queryText)
	if err != nil {
		return nil, &ExecError{
			Kind:    KindQuery,
			Message: fmt.Sprintf("SQL Error: %s", err.Error()),
			Err:     err,
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{
			Kind:    KindUnexpected,
			Message: fmt.Sprintf("Unexpected Error: %s", err.Error()),
			Err:     err,
		}
	}

	result := &tabular.Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, &ExecError{
				Kind:    KindUnexpected,
				Message: fmt.Sprintf("Unexpected Error: %s", err.Error()),
				Err:     err,
			}
		}

		row := make([]tabular.Cell, len(columns))
		for i, v := range values {
			row[i] = tabular.CellFromValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{
			Kind:    KindQuery,
			Message: fmt.Sprintf("SQL Error: %s", err.Error()),
			Err:     err,
		}
	}

	tabular.LogRowCount(e.logger, result)
	return result, nil
}

// logQuery writes the truncated query text as a history entry for the
// channel. Audit failures are logged and swallowed; they never affect the
// query outcome.
func (e *Executor) logQuery(ctx context.Context, channelID, queryText string) {
	truncated := queryText
	if runes := []rune(queryText); len(runes) > maxQueryLogLength {
		truncated = string(runes[:maxQueryLogLength])
	}

	entry := history.Entry{
		ChannelID: channelID,
		Active:    true,
		Role:      history.RoleAssistant,
		ToolCall:  truncated,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.Append(ctx, entry); err != nil {
		e.logger.Error("Failed to log executed query",
			zap.Error(err),
			zap.String("channel_id", channelID))
	}
}
