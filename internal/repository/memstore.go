package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/collabflow/collabflow/pkg/models"
)

// MemStore is an in-memory implementation of Store with the same semantics
// as PostgresStore. It backs unit tests and local development without a
// database.
type MemStore struct {
	mu sync.Mutex

	workflows     map[string]*models.Workflow
	participants  map[string][]*models.Participant // keyed by workflow ID
	messages      map[string][]*models.Message     // keyed by workflow ID
	seq           map[string]int64                 // next message seq per workflow
	history       []*models.HistoryEvent
	notifications map[string][]*models.Notification // keyed by user ID
	tenants       map[string]*models.Tenant         // keyed by domain
	users         map[string]*models.User           // keyed by email
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		workflows:     make(map[string]*models.Workflow),
		participants:  make(map[string][]*models.Participant),
		messages:      make(map[string][]*models.Message),
		seq:           make(map[string]int64),
		notifications: make(map[string][]*models.Notification),
		tenants:       make(map[string]*models.Tenant),
		users:         make(map[string]*models.User),
	}
}

func (s *MemStore) CreateWorkflow(_ context.Context, wf *models.Workflow, event *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *wf
	s.workflows[wf.ID] = &clone
	s.participants[wf.ID] = []*models.Participant{{
		WorkflowID: wf.ID,
		UserID:     wf.InitiatorID,
		Role:       models.ParticipantRoleInitiator,
		JoinedAt:   wf.CreatedAt,
	}}
	s.history = append(s.history, event)
	return nil
}

func (s *MemStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *wf
	return &clone, nil
}

func (s *MemStore) ListWorkflows(_ context.Context, tenantID string) ([]*models.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var workflows []*models.Workflow
	for _, wf := range s.workflows {
		if wf.TenantID != tenantID {
			continue
		}
		clone := *wf
		workflows = append(workflows, &clone)
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})
	return workflows, nil
}

func (s *MemStore) ApplyTransition(_ context.Context, id string, res models.Resolution, event *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	if !wf.Status.CanTransitionTo(res.Kind) {
		return ErrInvalidTransition
	}
	wf.Status = res.Kind
	wf.Resolution = &res
	wf.UpdatedAt = res.At
	s.history = append(s.history, event)
	return nil
}

func (s *MemStore) PurgeWorkflow(_ context.Context, id string, event *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return ErrNotFound
	}
	if wf.Status != models.WorkflowStatusDeleted {
		return ErrInvalidTransition
	}
	delete(s.workflows, id)
	delete(s.participants, id)
	delete(s.messages, id)
	delete(s.seq, id)
	s.history = append(s.history, event)
	return nil
}

func (s *MemStore) AddParticipant(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.participants[p.WorkflowID] {
		if existing.UserID == p.UserID {
			return nil
		}
	}
	clone := *p
	s.participants[p.WorkflowID] = append(s.participants[p.WorkflowID], &clone)
	return nil
}

func (s *MemStore) RemoveParticipant(_ context.Context, workflowID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := s.participants[workflowID]
	for i, p := range participants {
		if p.UserID == userID {
			s.participants[workflowID] = append(participants[:i], participants[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) GetParticipant(_ context.Context, workflowID, userID string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants[workflowID] {
		if p.UserID == userID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListParticipants(_ context.Context, workflowID string) ([]*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	participants := make([]*models.Participant, 0, len(s.participants[workflowID]))
	for _, p := range s.participants[workflowID] {
		clone := *p
		participants = append(participants, &clone)
	}
	return participants, nil
}

func (s *MemStore) AppendMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[msg.WorkflowID]
	if !ok {
		return ErrNotFound
	}
	if wf.Status != models.WorkflowStatusActive {
		return ErrWorkflowClosed
	}
	s.seq[msg.WorkflowID]++
	msg.Seq = s.seq[msg.WorkflowID]
	clone := *msg
	s.messages[msg.WorkflowID] = append(s.messages[msg.WorkflowID], &clone)
	return nil
}

func (s *MemStore) ListMessages(_ context.Context, workflowID string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[workflowID]; !ok {
		return nil, ErrNotFound
	}
	messages := make([]*models.Message, 0, len(s.messages[workflowID]))
	for _, msg := range s.messages[workflowID] {
		clone := *msg
		messages = append(messages, &clone)
	}
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].Seq < messages[j].Seq
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (s *MemStore) AppendEvent(_ context.Context, event *models.HistoryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, event)
	return nil
}

func (s *MemStore) QueryEvents(_ context.Context, filter HistoryFilter) ([]*models.HistoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*models.HistoryEvent
	for _, ev := range s.history {
		if filter.TenantID != "" && ev.Snapshot.TenantID != filter.TenantID {
			continue
		}
		if filter.WorkflowID != "" && ev.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.EventType != "" && ev.Type != filter.EventType {
			continue
		}
		if filter.InitiatorID != "" && ev.Snapshot.InitiatorID != filter.InitiatorID {
			continue
		}
		if !filter.From.IsZero() && ev.OccurredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && ev.OccurredAt.After(filter.To) {
			continue
		}
		clone := *ev
		events = append(events, &clone)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			return []*models.HistoryEvent{}, nil
		}
		events = events[filter.Offset:]
	}
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

func (s *MemStore) AppendNotification(_ context.Context, n *models.Notification, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *n
	pending := append(s.notifications[n.UserID], &clone)
	if len(pending) > max {
		pending = pending[len(pending)-max:]
	}
	s.notifications[n.UserID] = pending
	return nil
}

func (s *MemStore) ListNotifications(_ context.Context, userID string) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*models.Notification, 0, len(s.notifications[userID]))
	for _, n := range s.notifications[userID] {
		clone := *n
		pending = append(pending, &clone)
	}
	return pending, nil
}

func (s *MemStore) RemoveNotification(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.notifications[userID]
	for i, n := range pending {
		if n.ID == id {
			s.notifications[userID] = append(pending[:i], pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemStore) ClearNotifications(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.notifications, userID)
	return nil
}

func (s *MemStore) CreateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	clone := *t
	s.tenants[t.Domain] = &clone
	return nil
}

func (s *MemStore) GetTenantByDomain(_ context.Context, domain string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[domain]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *MemStore) EnsureUser(_ context.Context, tenantID, email, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[email]; ok {
		clone := *u
		return &clone, nil
	}
	u := &models.User{ID: uuid.New().String(), TenantID: tenantID, Email: email, Name: name}
	s.users[email] = u
	clone := *u
	return &clone, nil
}
