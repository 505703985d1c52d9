// Package store provides an in-memory leave.Store implementation
// for testing and development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	users      map[int]leave.User
	categories map[int]leave.Category
	requests   map[int]leave.Request

	nextUserID    int
	nextRequestID int
}

var _ leave.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:         make(map[int]leave.User),
		categories:    make(map[int]leave.Category),
		requests:      make(map[int]leave.Request),
		nextUserID:    1,
		nextRequestID: 1,
	}
}

// =============================================================================
// USER STORE
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u leave.User) (leave.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return leave.User{}, leave.ErrDuplicateEmail
		}
	}

	u.ID = m.nextUserID
	m.nextUserID++
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUser(_ context.Context, id int) (*leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]leave.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// =============================================================================
// CATEGORY STORE
// =============================================================================

func (m *Memory) SaveCategory(_ context.Context, c leave.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.categories[c.ID]; exists {
		return leave.ErrDuplicateCategory
	}
	m.categories[c.ID] = c
	return nil
}

func (m *Memory) UpdateCategory(_ context.Context, id int, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return &leave.NotFoundError{Kind: "category", ID: id}
	}
	c.Description = description
	m.categories[id] = c
	return nil
}

// DeleteCategory performs the in-use check and the delete under the same
// lock, so a concurrent SaveRequest cannot slip in between.
func (m *Memory) DeleteCategory(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return &leave.NotFoundError{Kind: "category", ID: id}
	}
	for _, r := range m.requests {
		if r.CategoryID == id {
			return leave.ErrCategoryInUse
		}
	}
	delete(m.categories, id)
	return nil
}

func (m *Memory) GetCategory(_ context.Context, id int) (*leave.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]leave.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := make([]leave.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, r leave.Request) (leave.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Category existence check in the same critical section as the insert.
	if _, ok := m.categories[r.CategoryID]; !ok {
		return leave.Request{}, &leave.NotFoundError{Kind: "category", ID: r.CategoryID}
	}

	r.ID = m.nextRequestID
	m.nextRequestID++
	m.requests[r.ID] = r
	return r, nil
}

func (m *Memory) GetRequest(_ context.Context, id int) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var requests []leave.Request
	for _, r := range m.requests {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.CategoryID != nil && r.CategoryID != *f.CategoryID {
			continue
		}
		requests = append(requests, r)
	}
	// Insertion order: ids are assigned sequentially.
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests, nil
}

// TransitionRequest is compare-and-set on status: only a pending request
// can move, and at most once.
func (m *Memory) TransitionRequest(_ context.Context, id int, to leave.Status, evaluatorID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return &leave.NotFoundError{Kind: "request", ID: id}
	}
	if r.Status != leave.StatusPending {
		return leave.ErrInvalidTransition
	}

	r.Status = to
	r.EvaluatorID = &evaluatorID
	r.EvaluatedAt = &at
	m.requests[id] = r
	return nil
}

func (m *Memory) UpdateRequest(_ context.Context, id int, categoryID int, start, end time.Time, motivation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return &leave.NotFoundError{Kind: "request", ID: id}
	}
	if r.Status != leave.StatusPending {
		return leave.ErrInvalidTransition
	}
	if _, ok := m.categories[categoryID]; !ok {
		return &leave.NotFoundError{Kind: "category", ID: categoryID}
	}

	r.CategoryID = categoryID
	r.StartDate = start
	r.EndDate = end
	r.Motivation = motivation
	m.requests[id] = r
	return nil
}

func (m *Memory) DeleteRequest(_ context.Context, id int, onlyPending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return &leave.NotFoundError{Kind: "request", ID: id}
	}
	if onlyPending && r.Status != leave.StatusPending {
		return leave.ErrInvalidTransition
	}
	delete(m.requests, id)
	return nil
}
