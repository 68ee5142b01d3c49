package tabular

import (
	"fmt"
	"strconv"
	"time"
)

// CellKind discriminates the value held by a Cell.
type CellKind int

const (
	KindNull CellKind = iota
	KindText
	KindNumber
	KindBool
)

// Cell is one value inside a result row. The store returns heterogeneous
// values per column, so the concrete type is carried alongside the data and
// only flattened to text at the encoding boundary.
type Cell struct {
	Kind CellKind
	Text string
	Num  float64
	Bool bool
}

func Null() Cell            { return Cell{Kind: KindNull} }
func Text(s string) Cell    { return Cell{Kind: KindText, Text: s} }
func Number(f float64) Cell { return Cell{Kind: KindNumber, Num: f} }
func Bool(b bool) Cell      { return Cell{Kind: KindBool, Bool: b} }

// CellFromValue converts a database/sql scan value into a Cell.
func CellFromValue(v any) Cell {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case bool:
		return Bool(x)
	case int64:
		return Number(float64(x))
	case float64:
		return Number(x)
	case time.Time:
		return Text(x.Format(time.RFC3339))
	default:
		return Text(fmt.Sprintf("%v", x))
	}
}

// String flattens the cell to its text form. Null becomes the empty string,
// which makes it indistinguishable from an empty text value in encoded
// output; that loss is accepted, the encoded payload is for an LLM to read.
func (c Cell) String() string {
	switch c.Kind {
	case KindNull:
		return ""
	case KindText:
		return c.Text
	case KindNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case KindBool:
		if c.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Result is the ordered output of one query: fixed column names and rows in
// server cursor order. Rows are never reordered or filtered after the scan.
type Result struct {
	Columns []string
	Rows    [][]Cell
}
