package query

import (
	"errors"
	"strings"
)

// Kind classifies an execution failure.
type Kind int

const (
	// KindConfiguration: connection settings are missing, nothing was attempted.
	KindConfiguration Kind = iota
	// KindConnection: authentication or connection open failed.
	KindConnection
	// KindQuery: the store reported an execution failure.
	KindQuery
	// KindUnexpected: anything else.
	KindUnexpected
)

// ExecError is a classified query-path failure.
type ExecError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ExecError) Error() string { return e.Message }

func (e *ExecError) Unwrap() error { return e.Err }

// RenderError formats a failure as the two-line payload returned on the tool
// channel: a literal quoted Error line followed by the quoted message. The
// shape is CSV-compatible so the error channel is consumable exactly like the
// success channel.
func RenderError(err error) string {
	message := "Unexpected Error"
	var execErr *ExecError
	if errors.As(err, &execErr) {
		message = execErr.Message
	} else if err != nil {
		message = "Unexpected Error: " + err.Error()
	}
	return "\"Error\"\n\"" + strings.ReplaceAll(message, `"`, `""`) + "\""
}
