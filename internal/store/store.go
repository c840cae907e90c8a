// Package store persists projects and users. Each backend implements the
// same document-store contract: create, find by id, find by filter with
// sort, update by id, update-many by id set, and group counts.
package store

import (
	"context"
	"time"

	"project-tracker-api/internal/models"
)

// StatusChange describes one set-based status write.
type StatusChange struct {
	IDs []string
	To  models.Status
	// From restricts the write to records currently in one of these
	// statuses. Nil means any status.
	From []models.Status
	At   time.Time
}

// StatusResult reports one set-based status write. Modified is the count
// the backend applied. IDs names the modified records as far as the
// backend can tell; under concurrent writes it may be shorter than
// Modified, never longer.
type StatusResult struct {
	Modified int
	IDs      []string
}

func idResult(ids []string) StatusResult {
	return StatusResult{Modified: len(ids), IDs: ids}
}

// ProjectStore is the persistence contract for projects.
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) error
	// Get returns models.ErrNotFound when id matches nothing.
	Get(ctx context.Context, id string) (*models.Project, error)
	Find(ctx context.Context, q models.ProjectQuery) ([]models.Project, error)
	// Update replaces every mutable field of the record with p.ID.
	Update(ctx context.Context, p *models.Project) error
	// StatusesOf returns the current status of each id that exists.
	StatusesOf(ctx context.Context, ids []string) (map[string]models.Status, error)
	// UpdateStatus writes c.To to every listed record whose status differs
	// from it and reports what it actually modified.
	UpdateStatus(ctx context.Context, c StatusChange) (StatusResult, error)
	// CountByStatus groups all projects by their stored status value.
	CountByStatus(ctx context.Context) (map[string]int64, error)
	// SumHours totals hoursWorked over projects that have it set.
	SumHours(ctx context.Context) (float64, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// UserStore is the persistence contract for accounts. Email is unique;
// a duplicate returns models.ErrConflict.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// Store bundles both contracts for a single backend.
type Store interface {
	ProjectStore
	UserStore
}

// sortColumns whitelists the canonical sort keys accepted by every backend.
var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"dateReceived": "date_received",
	"projectName":  "project_name",
	"status":       "status",
}

// SortKeys lists the accepted sort field names.
func SortKeys() []string {
	return []string{"createdAt", "updatedAt", "dateReceived", "projectName", "status"}
}

// DefaultSort is newest-created first.
var DefaultSort = []models.SortField{{Field: "createdAt", Desc: true}}

func effectiveSort(q models.ProjectQuery) []models.SortField {
	out := make([]models.SortField, 0, len(q.Sort))
	for _, f := range q.Sort {
		if _, ok := sortColumns[f.Field]; ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return DefaultSort
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
