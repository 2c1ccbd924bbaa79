package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
)

// Memory implements Store with mutex-guarded maps. Used in tests and when no
// database path is configured.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*project.Project
	users    map[string]user.User
	order    []string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]*project.Project),
		users:    make(map[string]user.User),
	}
}

// SeedUsers inserts the given users, skipping IDs that already exist.
func (m *Memory) SeedUsers(_ context.Context, users []user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		if _, ok := m.users[u.ID]; ok {
			continue
		}
		m.users[u.ID] = u
		m.order = append(m.order, u.ID)
	}
	return nil
}

func (m *Memory) CreateProject(_ context.Context, name string, creator user.User) (*project.Project, error) {
	name = strings.TrimSpace(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.projects {
		if p.Name == name {
			return nil, ErrDuplicateName
		}
	}

	now := time.Now().UTC()
	proj := &project.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   []user.User{creator},
		Tree:      project.FileTree{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.projects[proj.ID] = proj
	return snapshot(proj), nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*project.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proj, ok := m.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return snapshot(proj), nil
}

func (m *Memory) DeleteProject(_ context.Context, id, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, ok := m.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if !proj.HasMember(requesterID) {
		return ErrNotMember
	}
	delete(m.projects, id)
	return nil
}

func (m *Memory) AddUsers(_ context.Context, id string, userIDs []string) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, ok := m.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}

	for _, uid := range userIDs {
		u, ok := m.users[uid]
		if !ok {
			return nil, ErrUserNotFound
		}
		if !proj.HasMember(uid) {
			proj.Members = append(proj.Members, u)
		}
	}
	proj.UpdatedAt = time.Now().UTC()
	return snapshot(proj), nil
}

func (m *Memory) UpdateFileTree(_ context.Context, id string, tree project.FileTree) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	proj, ok := m.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	proj.Tree = tree.Clone()
	proj.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.order = append(m.order, u.ID)
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return user.User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]user.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]user.User, 0, len(m.order))
	for _, id := range m.order {
		users = append(users, m.users[id])
	}
	return users, nil
}

func snapshot(p *project.Project) *project.Project {
	out := *p
	out.Members = append([]user.User(nil), p.Members...)
	out.Tree = p.Tree.Clone()
	return &out
}
