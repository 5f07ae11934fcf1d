package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation, grounded on the
// teacher's jobs.MemoryStore (mutex-guarded map + insertion-order slice +
// defensive cloning on every read/write).
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string

	subsMu sync.RWMutex
	subs   []Subscriber
}

// NewMemoryStore returns a new in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

// Subscribe registers a Subscriber for task events.
func (s *MemoryStore) Subscribe(fn Subscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *MemoryStore) publish(ev Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, fn := range s.subs {
		fn(ev)
	}
}

func (s *MemoryStore) depsOfLocked(id string) []string {
	if t, ok := s.tasks[id]; ok {
		return t.Dependencies
	}
	return nil
}

func (s *MemoryStore) CreateTask(ctx context.Context, t *Task) error {
	if t == nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ParentID != "" {
		if _, ok := s.tasks[t.ParentID]; !ok {
			return ErrMissingParent
		}
	}
	for _, dep := range t.Dependencies {
		if _, ok := s.tasks[dep]; !ok {
			return ErrMissingDep
		}
		if wouldCycle(t.ID, dep, s.depsOfLocked) {
			return ErrCycle
		}
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if _, exists := s.tasks[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	s.publish(Event{Kind: EventCreated, Task: t.Clone(), To: t.Status})
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) ListTasks(ctx context.Context, filter ListFilter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Task
	for _, id := range s.order {
		t := s.tasks[id]
		if !matchFilter(t, filter) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else if filter.Offset >= len(out) {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchFilter(t *Task, f ListFilter) bool {
	if len(f.Status) > 0 {
		match := false
		for _, st := range f.Status {
			if t.Status == st {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.ParentID != "" && t.ParentID != f.ParentID {
		return false
	}
	if f.WorkflowID != "" && t.WorkflowID != f.WorkflowID {
		return false
	}
	if f.Principal != "" && t.Principal != f.Principal {
		return false
	}
	if f.MinPriority != nil && t.Priority < *f.MinPriority {
		return false
	}
	if f.MaxPriority != nil && t.Priority > *f.MaxPriority {
		return false
	}
	if f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && t.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

func (s *MemoryStore) UpdateTask(ctx context.Context, id string, patch Patch) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status.IsTerminal() {
		return nil, ErrTerminalUpdate
	}
	if patch.Dependencies != nil {
		for _, dep := range *patch.Dependencies {
			if _, ok := s.tasks[dep]; !ok {
				return nil, ErrMissingDep
			}
			if wouldCycle(id, dep, s.depsOfLocked) {
				return nil, ErrCycle
			}
		}
	}
	applyPatch(t, patch)
	s.tasks[id] = t
	return t.Clone(), nil
}

func applyPatch(t *Task, p Patch) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Output != nil {
		t.Output = *p.Output
	}
	if p.Error != nil {
		t.Error = *p.Error
	}
	if p.WaitingInput != nil {
		t.WaitingInput = *p.WaitingInput
	}
	if p.InputPrompt != nil {
		t.InputPrompt = *p.InputPrompt
	}
	if p.RetryCount != nil {
		t.RetryCount = *p.RetryCount
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Dependencies != nil {
		t.Dependencies = *p.Dependencies
	}
	if p.StartedAt != nil {
		t.StartedAt = *p.StartedAt
	}
	if p.CompletedAt != nil {
		t.CompletedAt = *p.CompletedAt
	}
}

// Transition is the only path that mutates Status (§4.1, §8.1). It is
// atomic under the store's mutex and emits an Event to subscribers on
// success.
func (s *MemoryStore) Transition(ctx context.Context, id string, to Status, fields Patch) (*Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if t.Status.IsTerminal() {
		s.mu.Unlock()
		return nil, ErrTerminalUpdate
	}
	from := t.Status
	if !validTransition(from, to) {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	switch to {
	case StatusRunning:
		t.StartedAt = &now
		t.CompletedAt = nil
	case StatusWaitingInput:
		t.WaitingInput = true
	case StatusCompleted, StatusFailed, StatusCancelled:
		t.CompletedAt = &now
		if t.StartedAt != nil {
			t.ActualDuration = now.Sub(*t.StartedAt)
		}
	case StatusPending:
		t.WaitingInput = false
	}
	t.Status = to
	applyPatch(t, fields)
	s.tasks[id] = t
	clone := t.Clone()
	s.mu.Unlock()

	s.publish(Event{Kind: EventTransition, Task: clone, From: from, To: to})
	return clone, nil
}

// validTransition enforces the lifecycle graph from §3: pending ->
// running -> {completed, failed, waiting_input}; waiting_input ->
// {pending, running, cancelled}; pending -> cancelled; running ->
// cancelled. A transition to the current status is also accepted.
func validTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled || to == StatusWaitingInput
	case StatusWaitingInput:
		return to == StatusPending || to == StatusRunning || to == StatusCancelled
	default:
		return false
	}
}

func (s *MemoryStore) AddDependency(ctx context.Context, id, dep string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.tasks[dep]; !ok {
		return ErrMissingDep
	}
	if wouldCycle(id, dep, s.depsOfLocked) {
		return ErrCycle
	}
	for _, existing := range t.Dependencies {
		if existing == dep {
			return nil
		}
	}
	t.Dependencies = append(t.Dependencies, dep)
	return nil
}

func (s *MemoryStore) SpawnSubtasks(ctx context.Context, parentID string, specs []*Task, mode ExecutionMode) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.tasks[parentID]
	if !ok {
		return nil, ErrMissingParent
	}
	out := make([]*Task, 0, len(specs))
	for _, spec := range specs {
		spec.ParentID = parentID
		spec.Principal = parent.Principal
		spec.ConversationID = parent.ConversationID
		if spec.Status == "" {
			spec.Status = StatusPending
		}
		if spec.CreatedAt.IsZero() {
			spec.CreatedAt = time.Now()
		}
		if spec.ExecutionMode == "" {
			spec.ExecutionMode = mode
		}
		for _, dep := range spec.Dependencies {
			if _, ok := s.tasks[dep]; !ok {
				return nil, ErrMissingDep
			}
		}
		if _, exists := s.tasks[spec.ID]; !exists {
			s.order = append(s.order, spec.ID)
		}
		s.tasks[spec.ID] = spec.Clone()
		out = append(out, spec.Clone())
	}
	parent.ExecutionMode = mode
	s.tasks[parentID] = parent
	for _, t := range out {
		s.publish(Event{Kind: EventCreated, Task: t, To: t.Status})
	}
	return out, nil
}

func (s *MemoryStore) Children(ctx context.Context, parentID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, id := range s.order {
		t := s.tasks[id]
		if t.ParentID == parentID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}
