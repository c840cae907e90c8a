package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"project-tracker-api/internal/models"
)

// Memory is a process-local Store used for development and tests.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]models.Project
	users    map[string]models.User
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]models.Project),
		users:    make(map[string]models.User),
	}
}

func (m *Memory) Create(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return models.ErrConflict
	}
	m.projects[p.ID] = cloneProject(*p)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := cloneProject(p)
	return &out, nil
}

func (m *Memory) Find(_ context.Context, q models.ProjectQuery) ([]models.Project, error) {
	m.mu.RLock()
	out := make([]models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if q.Search != "" && !matchesSearch(p, q.Search) {
			continue
		}
		out = append(out, cloneProject(p))
	}
	m.mu.RUnlock()

	keys := effectiveSort(q)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			c := compareField(out[i], out[j], k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].ID < out[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []models.Project{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, p *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[p.ID]
	if !ok {
		return models.ErrNotFound
	}
	next := cloneProject(*p)
	next.CreatedBy = existing.CreatedBy
	next.CreatedAt = existing.CreatedAt
	m.projects[p.ID] = next
	return nil
}

func (m *Memory) StatusesOf(_ context.Context, ids []string) (map[string]models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.Status, len(ids))
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out[id] = p.Status
		}
	}
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, c StatusChange) (StatusResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	modified := []string{}
	for _, id := range dedupe(c.IDs) {
		p, ok := m.projects[id]
		if !ok || p.Status == c.To {
			continue
		}
		if c.From != nil && !containsStatus(c.From, p.Status) {
			continue
		}
		p.Status = c.To
		p.UpdatedAt = c.At
		m.projects[id] = p
		modified = append(modified, id)
	}
	return idResult(modified), nil
}

func (m *Memory) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64)
	for _, p := range m.projects {
		out[string(p.Status)]++
	}
	return out, nil
}

func (m *Memory) SumHours(_ context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, p := range m.projects {
		if p.HoursWorked != nil {
			total += *p.HoursWorked
		}
	}
	return total, nil
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range m.users {
		if strings.ToLower(existing.Email) == email {
			return models.ErrConflict
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if strings.ToLower(u.Email) == email {
			out := u
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func matchesSearch(p models.Project, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(p.ProjectName), term) ||
		strings.Contains(strings.ToLower(p.EndClientName), term) ||
		strings.Contains(strings.ToLower(p.ContactPerson), term)
}

func compareField(a, b models.Project, field string) int {
	switch field {
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "dateReceived":
		return a.DateReceived.Compare(b.DateReceived.Time)
	case "projectName":
		return strings.Compare(strings.ToLower(a.ProjectName), strings.ToLower(b.ProjectName))
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	}
	return 0
}

func containsStatus(list []models.Status, s models.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneProject(p models.Project) models.Project {
	if p.Category != nil {
		c := *p.Category
		p.Category = &c
	}
	if p.HoursWorked != nil {
		h := *p.HoursWorked
		p.HoursWorked = &h
	}
	if p.DateDelivered != nil {
		d := *p.DateDelivered
		p.DateDelivered = &d
	}
	if p.Notes != nil {
		n := *p.Notes
		p.Notes = &n
	}
	return p
}
