package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Handler executes one tool call. Args is the raw JSON argument object from
// the model; turn may be nil when no turn context was attached.
type Handler func(ctx context.Context, args json.RawMessage, turn *TurnContext) (string, error)

// Registry is the closed set of tools exposed to the completion engine. The
// name-to-handler mapping is validated when tools are registered, at startup,
// so dispatch never has to guess about unknown names at runtime.
type Registry struct {
	tools map[string]registeredTool
	order []string
}

type registeredTool struct {
	definition openai.FunctionDefinition
	handler    Handler
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

func (r *Registry) Register(definition openai.FunctionDefinition, handler Handler) error {
	if definition.Name == "" {
		return fmt.Errorf("tool registration requires a name")
	}
	if handler == nil {
		return fmt.Errorf("tool %q registered without a handler", definition.Name)
	}
	if _, exists := r.tools[definition.Name]; exists {
		return fmt.Errorf("tool %q registered twice", definition.Name)
	}
	r.tools[definition.Name] = registeredTool{definition: definition, handler: handler}
	r.order = append(r.order, definition.Name)
	return nil
}

// Definitions returns the tool declarations in registration order, in the
// shape the chat completion API expects.
func (r *Registry) Definitions() []openai.Tool {
	defs := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &t.definition,
		})
	}
	return defs
}

func (r *Registry) handler(name string) (Handler, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t.handler, true
}
