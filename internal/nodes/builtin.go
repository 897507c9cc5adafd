package nodes

import "github.com/023a424/agentflow/internal/expressions"

// Builtin returns a registry preloaded with the builtin node set.
// External pools register additional implementations on top.
func Builtin() (Registry, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	builtins := []Node{
		&StartNode{},
		&ConditionNode{Engine: celEngine},
		&HumanInputNode{},
		&LoopNode{},
		&DirectReplyNode{},
		&CustomFunctionNode{Engine: expressions.NewExprEngine()},
		&TransformNode{Engine: expressions.NewGoJQEngine()},
		&HTTPNode{},
	}
	for _, n := range builtins {
		if err := r.Register(n); err != nil {
			return nil, err
		}
	}
	return r, nil
}
