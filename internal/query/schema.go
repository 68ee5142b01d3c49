package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"clientprofile/internal/fabric"
	"go.uber.org/zap"
)

// The schema description uses the literal two-character escapes as line
// separators, not real line breaks; that is the delimited format the system
// prompt describes to the model.
const schemaSeparator = `\r\n`

const schemaQuery = `
	SELECT
		DB_NAME(),
		sch.name,
		t.name,
		c.name,
		typ.name,
		c.max_length,
		c.precision,
		c.scale
	FROM sys.schemas sch
	JOIN sys.tables t ON t.schema_id = sch.schema_id
	JOIN sys.columns c ON c.object_id = t.object_id
	JOIN sys.types typ ON typ.user_type_id = c.user_type_id
	ORDER BY sch.name, t.name, c.column_id`

// Describer renders the runtime database structure as delimited text for the
// schema tool.
type Describer struct {
	connector *fabric.Connector
	logger    *zap.Logger
}

func NewDescriber(connector *fabric.Connector, logger *zap.Logger) *Describer {
	return &Describer{connector: connector, logger: logger}
}

// Describe returns the database name, its schemas and one line per column:
//
//	Database Name: <name>
//	Database Schema: <csv of schema names>
//	Database Structure: Name of table Name Of column Type
//	<schema>.<table> <column> <type>[(size|precision,scale)]
//
// joined by literal \r\n separators.
func (d *Describer) Describe(ctx context.Context) (string, error) {
	db, err := d.connector.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open connection for schema description: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, schemaQuery)
	if err != nil {
		return "", fmt.Errorf("failed to read database structure: %w", err)
	}
	defer rows.Close()

	var (
		dbName      string
		schemaSeen  = make(map[string]bool)
		schemaNames []string
		columns     []string
	)
	for rows.Next() {
		var schema, table, column, typeName string
		var maxLength, precision, scale sql.NullInt64
		if err := rows.Scan(&dbName, &schema, &table, &column, &typeName, &maxLength, &precision, &scale); err != nil {
			return "", fmt.Errorf("failed to scan schema row: %w", err)
		}

		if !schemaSeen[schema] {
			schemaSeen[schema] = true
			schemaNames = append(schemaNames, schema)
		}
		columns = append(columns, fmt.Sprintf("%s.%s %s %s%s",
			schema, table, column, typeName,
			typeSuffix(typeName, maxLength.Int64, precision.Int64, scale.Int64)))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read schema rows: %w", err)
	}

	var b strings.Builder
	b.WriteString("Database Name: " + dbName + schemaSeparator)
	b.WriteString("Database Schema: " + strings.Join(schemaNames, ", ") + schemaSeparator)
	b.WriteString("Database Structure: Name of table Name Of column Type" + schemaSeparator)
	b.WriteString(strings.Join(columns, schemaSeparator))

	d.logger.Info("Described database structure",
		zap.String("database", dbName),
		zap.Int("column_count", len(columns)))
	return b.String(), nil
}

// typeSuffix renders the size or precision decoration for types that carry
// one, following SQL Server conventions (nchar lengths are byte counts, so
// halved; -1 max_length means MAX).
func typeSuffix(typeName string, maxLength, precision, scale int64) string {
	switch typeName {
	case "varchar", "char", "varbinary", "binary":
		if maxLength == -1 {
			return "(MAX)"
		}
		return fmt.Sprintf("(%d)", maxLength)
	case "nvarchar", "nchar":
		if maxLength == -1 {
			return "(MAX)"
		}
		return fmt.Sprintf("(%d)", maxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("(%d,%d)", precision, scale)
	default:
		return ""
	}
}
