package actions

import (
	"context"
	"fmt"
	"strings"
)

// UnknownProvider is the sentinel provider for actions whose name carries no
// prefix delimiter.
const UnknownProvider = "Unknown"

// HandlerFunc executes an action with validated parameters and returns an
// opaque result payload (typically JSON or a base64-encoded transaction).
type HandlerFunc func(ctx context.Context, params map[string]any) (string, error)

// Action is one invocable, schema-described operation contributed by a
// provider. The name encodes the provider as a prefix before the first
// underscore, e.g. "Jupiter_swap".
type Action struct {
	Name        string
	Description string
	Schema      *Schema
	Handler     HandlerFunc
}

// Definition is the plain registration descriptor for building an Action.
// Registration is an explicit call rather than annotation-driven metadata.
type Definition struct {
	Name        string
	Description string
	Schema      *Schema
	Handler     HandlerFunc
}

// New builds a registered action value from a definition.
func New(def Definition) (Action, error) {
	if strings.TrimSpace(def.Name) == "" {
		return Action{}, fmt.Errorf("action name must not be empty")
	}
	if def.Handler == nil {
		return Action{}, fmt.Errorf("action %q has no handler", def.Name)
	}
	return Action{
		Name:        def.Name,
		Description: def.Description,
		Schema:      def.Schema,
		Handler:     def.Handler,
	}, nil
}

// Provider returns the prefix before the first underscore, or
// UnknownProvider when the name has no delimiter.
func (a Action) Provider() string {
	if i := strings.Index(a.Name, "_"); i > 0 {
		return a.Name[:i]
	}
	return UnknownProvider
}

// LocalName returns the provider-stripped action name.
func (a Action) LocalName() string {
	if i := strings.Index(a.Name, "_"); i > 0 && i < len(a.Name)-1 {
		return a.Name[i+1:]
	}
	return a.Name
}
