package engine

import "github.com/023a424/agentflow/pkg/schema"

// runtimeState is the mutable per-execution scratch shared by all nodes of
// one run: last-writer-wins state, the starting form values, and the
// accumulated chat history.
type runtimeState struct {
	state       map[string]any
	form        map[string]any
	chatHistory []schema.ChatTurn
}

func newRuntimeState(form map[string]any) *runtimeState {
	return &runtimeState{
		state: make(map[string]any),
		form:  form,
	}
}

// apply folds a node output into the runtime state: a returned state
// overwrites, chat history appends, output.form overwrites the form.
func (r *runtimeState) apply(out schema.NodeOutput) {
	if out == nil {
		return
	}
	if out.HasState() {
		r.state = out.State()
		if r.state == nil {
			r.state = make(map[string]any)
		}
	}
	if turns := out.ChatHistory(); len(turns) > 0 {
		r.chatHistory = append(r.chatHistory, turns...)
	}
	if form := out.Form(); form != nil {
		r.form = form
	}
}

// snapshotState returns a copy of the current state map for handing to
// nodes and to the $flow namespace.
func (r *runtimeState) snapshotState() map[string]any {
	cp := make(map[string]any, len(r.state))
	for k, v := range r.state {
		cp[k] = v
	}
	return cp
}
