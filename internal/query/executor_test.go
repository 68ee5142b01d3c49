package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clientprofile/internal/fabric"
	"clientprofile/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "connection error",
			err:      &ExecError{Kind: KindConnection, Message: "Failed to establish database connection"},
			expected: "\"Error\"\n\"Failed to establish database connection\"",
		},
		{
			name:     "query error message quotes are doubled",
			err:      &ExecError{Kind: KindQuery, Message: `SQL Error: invalid column "Name"`},
			expected: "\"Error\"\n\"SQL Error: invalid column \"\"Name\"\"\"",
		},
		{
			name:     "wrapped exec error",
			err:      errors.Join(errors.New("outer"), &ExecError{Kind: KindUnexpected, Message: "Unexpected Error: x"}),
			expected: "\"Error\"\n\"Unexpected Error: x\"",
		},
		{
			name:     "plain error falls back to unexpected",
			err:      errors.New("boom"),
			expected: "\"Error\"\n\"Unexpected Error: boom\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := RenderError(tt.err)
			assert.Equal(t, tt.expected, payload)
			assert.Len(t, strings.Split(payload, "\n"), 2)
		})
	}
}

func TestExecuteMissingConfiguration(t *testing.T) {
	logger := zap.NewNop()
	store := history.NewMemoryStore()
	connector := fabric.NewConnector(fabric.Config{}, logger)
	executor := NewExecutor(connector, store, time.Minute, logger)

	result, err := executor.Execute(context.Background(), "SELECT 1", "C1")
	require.Nil(t, result)
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, KindConfiguration, execErr.Kind)
	assert.ErrorIs(t, err, fabric.ErrMissingConfig)

	payload := RenderError(err)
	lines := strings.Split(payload, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"Error"`, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `"`) && strings.HasSuffix(lines[1], `"`))

	// The query never ran, so no audit entry may exist.
	entries, err := store.Recent(context.Background(), "C1", 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogQueryTruncates(t *testing.T) {
	store := history.NewMemoryStore()
	executor := NewExecutor(nil, store, time.Minute, zap.NewNop())

	long := strings.Repeat("SELECT * FROM clients; ", 200)
	executor.logQuery(context.Background(), "C1", long)

	entries, err := store.Recent(context.Background(), "C1", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Empty(t, entry.Message)
	assert.Equal(t, history.RoleAssistant, entry.Role)
	assert.True(t, entry.Active)
	assert.Len(t, []rune(entry.ToolCall), maxQueryLogLength)
	assert.Equal(t, long[:maxQueryLogLength], entry.ToolCall)
}

func TestTypeSuffix(t *testing.T) {
	tests := []struct {
		name      string
		typeName  string
		maxLength int64
		precision int64
		scale     int64
		expected  string
	}{
		{"varchar sized", "varchar", 50, 0, 0, "(50)"},
		{"varchar max", "varchar", -1, 0, 0, "(MAX)"},
		{"nvarchar halves byte length", "nvarchar", 100, 0, 0, "(50)"},
		{"nvarchar max", "nvarchar", -1, 0, 0, "(MAX)"},
		{"decimal", "decimal", 9, 18, 2, "(18,2)"},
		{"numeric", "numeric", 9, 10, 0, "(10,0)"},
		{"int has no suffix", "int", 4, 10, 0, ""},
		{"datetime has no suffix", "datetime2", 8, 27, 7, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, typeSuffix(tt.typeName, tt.maxLength, tt.precision, tt.scale))
		})
	}
}
