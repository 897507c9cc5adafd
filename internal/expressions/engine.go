// Package expressions provides the evaluation engines the builtin nodes use:
// CEL for condition routing, Expr for custom functions, jq for data
// transforms. Compiled programs are cached per engine instance.
package expressions

import "context"

// Engine evaluates an expression against a data scope.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Scope variable names exposed to every engine. They mirror the data a node
// sees at run time.
var scopeKeys = []string{"input", "state", "form", "vars", "flow"}
