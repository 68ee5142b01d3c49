package tabular

import (
	"strings"

	"go.uber.org/zap"
)

// EncodeCSV renders a result as CSV text for the completion engine.
//
// The header line is the column names joined by commas, unquoted. Each row
// follows on its own line; every line including the last is terminated by a
// newline. A value is quoted only when it contains a comma, a double quote or
// a line break, with embedded double quotes doubled. Null and empty string
// both encode as an empty field.
func EncodeCSV(r *Result) string {
	var b strings.Builder

	for i, col := range r.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(col)
	}
	b.WriteByte('\n')

	for _, row := range r.Rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeValue(cell.String()))
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func encodeValue(v string) string {
	escaped := strings.ReplaceAll(v, `"`, `""`)
	if strings.ContainsAny(escaped, ",\"\n\r") {
		return `"` + escaped + `"`
	}
	return escaped
}

// LogRowCount records how many rows a result carried. Informational only,
// it never changes the encoded output.
func LogRowCount(logger *zap.Logger, r *Result) {
	if len(r.Rows) == 0 {
		logger.Info("Query executed successfully but returned no rows")
		return
	}
	logger.Info("Query returned rows", zap.Int("row_count", len(r.Rows)))
}
