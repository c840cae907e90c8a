package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/models"
	"project-tracker-api/internal/store"
)

// Notifier receives newly created projects. Implementations must not block.
type Notifier interface {
	Notify(p models.Project)
}

// Recorder receives workflow counters. A nil Recorder is ignored.
type Recorder interface {
	ProjectCreated(t models.ProjectType)
	StatusUpdated(mode string, modified int)
}

// Service applies the project rules on top of a ProjectStore.
type Service struct {
	store    store.ProjectStore
	policy   TransitionPolicy
	notifier Notifier
	recorder Recorder
	log      logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

func WithPolicy(p TransitionPolicy) Option { return func(s *Service) { s.policy = p } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a project workflow service.
func NewService(st store.ProjectStore, opts ...Option) *Service {
	s := &Service{
		store:  st,
		policy: PolicyPermissive,
		log:    logrus.StandardLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the transition policy in force.
func (s *Service) Policy() TransitionPolicy { return s.policy }

// Create validates and stores a new project owned by createdBy. The status
// is always New regardless of the input.
func (s *Service) Create(ctx context.Context, createdBy string, in models.ProjectInput) (*models.Project, error) {
	if strings.TrimSpace(createdBy) == "" {
		return nil, models.ErrUnauthorized
	}

	p, err := draft(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p.ID = s.newID()
	p.CreatedBy = createdBy
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	if s.recorder != nil {
		s.recorder.ProjectCreated(p.ProjectType)
	}
	if s.notifier != nil {
		s.notifier.Notify(*p)
	}
	s.log.WithFields(logrus.Fields{
		"project_id": p.ID,
		"type":       p.ProjectType,
		"created_by": createdBy,
	}).Info("project created")
	return p, nil
}

// Check reports whether in would be accepted by Create, without storing
// anything.
func (s *Service) Check(in models.ProjectInput) error {
	_, err := draft(in)
	return err
}

// draft builds and validates the record Create would store.
func draft(in models.ProjectInput) (*models.Project, error) {
	p := &models.Project{}
	in.ApplyTo(p)
	p.Status = models.StatusNew
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the project with id or models.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// List returns the projects matching q; no match yields an empty slice.
func (s *Service) List(ctx context.Context, q models.ProjectQuery) ([]models.Project, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, models.FieldError("status", "is not a known status")
	}
	out, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if out == nil {
		out = []models.Project{}
	}
	return out, nil
}

// Update merges in onto the stored project and saves it. The identifier and
// creator cannot change; the merged record must pass Validate.
func (s *Service) Update(ctx context.Context, id string, in models.ProjectInput) (*models.Project, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	in.ApplyTo(&next)
	next.ID = current.ID
	next.CreatedBy = current.CreatedBy
	next.CreatedAt = current.CreatedAt

	if !s.policy.Allows(current.Status, next.Status) && next.Status.Valid() {
		return nil, fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, current.Status, next.Status)
	}
	if err := Validate(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("update project %s: %w", id, err)
	}
	return &next, nil
}

// Transition performs a named pipeline step on one project. The project must
// currently sit at the step's origin status.
func (s *Service) Transition(ctx context.Context, id string, action string) (*models.Project, error) {
	t, ok := LookupAction(action)
	if !ok {
		return nil, models.FieldError("action", "must be one of submit, approve, invoice")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != t.From {
		return nil, fmt.Errorf("%w: %s requires %s, project is %s", models.ErrInvalidTransition, t.Action, t.From, current.Status)
	}

	next := *current
	next.Status = t.To
	next.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("transition project %s: %w", id, err)
	}
	if s.recorder != nil {
		s.recorder.StatusUpdated("single", 1)
	}
	return &next, nil
}

// BulkUpdateStatus moves every listed project to req.Status in one
// set-based write. Unknown ids are skipped and reported as not_found;
// projects already at the target are unchanged, so a repeat modifies none.
func (s *Service) BulkUpdateStatus(ctx context.Context, req models.BulkStatusRequest) (*models.BulkStatusResult, error) {
	to, ids, err := parseBulk(req)
	if err != nil {
		return nil, err
	}

	current, err := s.store.StatusesOf(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk status lookup: %w", err)
	}

	change := store.StatusChange{IDs: ids, To: to, At: s.now().UTC()}
	write := true
	if s.policy == PolicyStrict {
		if prev, ok := Previous(to); ok {
			change.From = []models.Status{prev}
		} else {
			write = false
		}
	}

	var written store.StatusResult
	if write {
		written, err = s.store.UpdateStatus(ctx, change)
		if err != nil {
			return nil, fmt.Errorf("bulk status update: %w", err)
		}
	}

	res := &models.BulkStatusResult{
		Message:       "Project statuses updated successfully",
		Status:        to,
		Requested:     len(ids),
		ModifiedCount: written.Modified,
		Results:       outcomes(ids, current, presumeModified(ids, current, change, written), to),
	}

	if s.recorder != nil {
		s.recorder.StatusUpdated("bulk", res.ModifiedCount)
	}
	s.log.WithFields(logrus.Fields{
		"status":    to,
		"requested": res.Requested,
		"modified":  res.ModifiedCount,
		"policy":    s.policy,
	}).Info("bulk status update")
	return res, nil
}

func parseBulk(req models.BulkStatusRequest) (models.Status, []string, error) {
	if len(req.ProjectIDs) == 0 {
		return "", nil, models.ErrInvalidInput
	}
	to, ok := models.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return "", nil, models.ErrInvalidInput
	}

	seen := make(map[string]struct{}, len(req.ProjectIDs))
	ids := make([]string, 0, len(req.ProjectIDs))
	for _, raw := range req.ProjectIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return "", nil, models.ErrInvalidInput
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return to, ids, nil
}

// presumeModified returns the ids the store named as modified. When the
// store counted more writes than it could name, the shortfall is filled with
// ids the write could have matched, in request order.
func presumeModified(ids []string, current map[string]models.Status, c store.StatusChange, written store.StatusResult) []string {
	missing := written.Modified - len(written.IDs)
	if missing <= 0 {
		return written.IDs
	}
	listed := make(map[string]struct{}, len(written.IDs))
	for _, id := range written.IDs {
		listed[id] = struct{}{}
	}
	out := append([]string(nil), written.IDs...)
	for _, id := range ids {
		if missing == 0 {
			break
		}
		status, ok := current[id]
		if _, seen := listed[id]; seen || !ok || status == c.To {
			continue
		}
		if c.From != nil && !slices.Contains(c.From, status) {
			continue
		}
		out = append(out, id)
		missing--
	}
	return out
}

func outcomes(ids []string, current map[string]models.Status, modified []string, to models.Status) []models.BulkItemResult {
	changed := make(map[string]struct{}, len(modified))
	for _, id := range modified {
		changed[id] = struct{}{}
	}

	out := make([]models.BulkItemResult, 0, len(ids))
	for _, id := range ids {
		r := models.BulkItemResult{ID: id}
		status, exists := current[id]
		_, wasChanged := changed[id]
		switch {
		case wasChanged:
			r.Outcome = models.OutcomeUpdated
		case !exists:
			r.Outcome = models.OutcomeNotFound
		case status == to:
			r.Outcome = models.OutcomeUnchanged
		default:
			r.Outcome = models.OutcomeRejected
		}
		out = append(out, r)
	}
	return out
}
