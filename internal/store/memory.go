package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/023a424/agentflow/pkg/schema"
)

// MemoryStore is an in-memory Store implementation for tests and ephemeral
// runs. Checkpoints are deep-copied on the way in and out so callers cannot
// alias persisted state.
type MemoryStore struct {
	mu         sync.RWMutex
	seq        int64
	executions map[string]*memExecution
	messages   []*ChatMessage
	variables  map[string]*Variable
}

type memExecution struct {
	Execution
	order int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*memExecution),
		variables:  make(map[string]*Variable),
	}
}

func (s *MemoryStore) CreateExecution(_ context.Context, exec *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[exec.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "execution %s already exists", exec.ID)
	}
	now := time.Now().UTC()
	if exec.CreatedDate.IsZero() {
		exec.CreatedDate = now
	}
	exec.UpdatedDate = exec.CreatedDate
	s.seq++
	cp := *exec
	cp.ExecutionData = copyCheckpoint(exec.ExecutionData)
	s.executions[exec.ID] = &memExecution{Execution: cp, order: s.seq}
	return nil
}

func (s *MemoryStore) GetExecution(_ context.Context, id string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	me, ok := s.executions[id]
	if !ok {
		return nil, storeNotFound("execution", id)
	}
	return me.snapshot(), nil
}

func (s *MemoryStore) UpdateExecution(_ context.Context, id string, update ExecutionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	me, ok := s.executions[id]
	if !ok {
		return storeNotFound("execution", id)
	}
	if update.Status != nil {
		me.Status = *update.Status
	}
	if update.ExecutionData != nil {
		me.ExecutionData = copyCheckpoint(update.ExecutionData)
	}
	if update.StoppedDate != nil {
		t := *update.StoppedDate
		me.StoppedDate = &t
	}
	me.UpdatedDate = time.Now().UTC()
	return nil
}

func (s *MemoryStore) LatestExecution(_ context.Context, agentflowID, sessionID string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *memExecution
	for _, me := range s.executions {
		if me.AgentflowID != agentflowID || me.SessionID != sessionID {
			continue
		}
		if latest == nil || me.order > latest.order {
			latest = me
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest.snapshot(), nil
}

func (s *MemoryStore) ListExecutions(_ context.Context, filter ExecutionFilter) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*memExecution
	for _, me := range s.executions {
		if filter.AgentflowID != "" && me.AgentflowID != filter.AgentflowID {
			continue
		}
		if filter.SessionID != "" && me.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != nil && me.Status != *filter.Status {
			continue
		}
		if filter.Before != nil && !me.UpdatedDate.Before(*filter.Before) {
			continue
		}
		matched = append(matched, me)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].order > matched[j].order })
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]*Execution, len(matched))
	for i, me := range matched {
		out[i] = me.snapshot()
	}
	return out, nil
}

func (s *MemoryStore) DeleteExecution(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[id]; !ok {
		return storeNotFound("execution", id)
	}
	delete(s.executions, id)
	return nil
}

func (s *MemoryStore) CreateChatMessage(_ context.Context, msg *ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.CreatedDate.IsZero() {
		msg.CreatedDate = time.Now().UTC()
	}
	cp := *msg
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *MemoryStore) ListChatMessages(_ context.Context, agentflowID, sessionID string) ([]*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ChatMessage
	for _, m := range s.messages {
		if m.AgentflowID == agentflowID && m.SessionID == sessionID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClearLatestMessageAction(_ context.Context, agentflowID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.AgentflowID == agentflowID && m.SessionID == sessionID && len(m.Action) > 0 {
			m.Action = nil
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) UpsertVariable(_ context.Context, v *Variable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.variables[v.Name]; ok {
		existing.Value = v.Value
		existing.Type = v.Type
		existing.UpdatedDate = now
		return nil
	}
	cp := *v
	if cp.CreatedDate.IsZero() {
		cp.CreatedDate = now
	}
	cp.UpdatedDate = now
	s.variables[v.Name] = &cp
	return nil
}

func (s *MemoryStore) ListVariables(_ context.Context) ([]*Variable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.variables))
	for name := range s.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Variable, len(names))
	for i, name := range names {
		cp := *s.variables[name]
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStore) DeleteVariable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.variables[name]; !ok {
		return storeNotFound("variable", name)
	}
	delete(s.variables, name)
	return nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Vacuum(context.Context) error  { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (me *memExecution) snapshot() *Execution {
	cp := me.Execution
	cp.ExecutionData = copyCheckpoint(me.ExecutionData)
	if me.StoppedDate != nil {
		t := *me.StoppedDate
		cp.StoppedDate = &t
	}
	return &cp
}

func copyCheckpoint(data []schema.ExecutedData) []schema.ExecutedData {
	if data == nil {
		return nil
	}
	out := make([]schema.ExecutedData, len(data))
	for i, entry := range data {
		out[i] = entry
		out[i].Data = entry.Data.Clone()
		if entry.PreviousNodeIDs != nil {
			out[i].PreviousNodeIDs = append([]string(nil), entry.PreviousNodeIDs...)
		}
	}
	return out
}
