// Package directory stores registered agents.
package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/agentkit/internal/domain"
)

// Directory maps agent ids to their records.
type Directory interface {
	// Register assigns a fresh id to rec and stores it. A second agent with
	// the same name is rejected with domain.ErrDuplicateAgent.
	Register(ctx context.Context, rec *domain.AgentRecord) (string, error)
	Lookup(ctx context.Context, id string) (*domain.AgentRecord, error)
	List(ctx context.Context) ([]*domain.AgentRecord, error)
	Deregister(ctx context.Context, id string) (*domain.AgentRecord, error)
}

// MemoryDirectory keeps agents in process memory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	agents map[string]*domain.AgentRecord
	byName map[string]string
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		agents: make(map[string]*domain.AgentRecord),
		byName: make(map[string]string),
	}
}

func (m *MemoryDirectory) Register(_ context.Context, rec *domain.AgentRecord) (string, error) {
	stored := prepare(rec)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[stored.Name]; exists {
		return "", domain.ErrDuplicateAgent
	}
	m.agents[stored.ID] = stored
	m.byName[stored.Name] = stored.ID
	return stored.ID, nil
}

func (m *MemoryDirectory) Lookup(_ context.Context, id string) (*domain.AgentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryDirectory) List(_ context.Context) ([]*domain.AgentRecord, error) {
	m.mu.RLock()
	out := make([]*domain.AgentRecord, 0, len(m.agents))
	for _, rec := range m.agents {
		out = append(out, rec.Clone())
	}
	m.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

func (m *MemoryDirectory) Deregister(_ context.Context, id string) (*domain.AgentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	delete(m.agents, id)
	delete(m.byName, rec.Name)
	return rec, nil
}

// prepare copies rec and fills in the generated id and registration time.
func prepare(rec *domain.AgentRecord) *domain.AgentRecord {
	stored := rec.Clone()
	stored.ID = uuid.New().String()
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = time.Now().UTC()
	}
	if stored.Capabilities == nil {
		stored.Capabilities = []string{}
	}
	rec.ID = stored.ID
	rec.RegisteredAt = stored.RegisteredAt
	return stored
}

func sortRecords(recs []*domain.AgentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].RegisteredAt.Equal(recs[j].RegisteredAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].RegisteredAt.Before(recs[j].RegisteredAt)
	})
}
