package workflow

import (
	"fmt"
	"strings"

	"project-tracker-api/internal/models"
)

// Action names a pipeline step a user can take on a project.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionInvoice Action = "invoice"
)

// Transition is a single forward step of the pipeline.
type Transition struct {
	Action Action
	From   models.Status
	To     models.Status
}

var transitions = map[Action]Transition{
	ActionSubmit:  {Action: ActionSubmit, From: models.StatusNew, To: models.StatusSentToCEO},
	ActionApprove: {Action: ActionApprove, From: models.StatusSentToCEO, To: models.StatusApprovedByClient},
	ActionInvoice: {Action: ActionInvoice, From: models.StatusApprovedByClient, To: models.StatusInvoiceRaised},
}

// LookupAction resolves a transition by its action name.
func LookupAction(name string) (Transition, bool) {
	t, ok := transitions[Action(strings.ToLower(strings.TrimSpace(name)))]
	return t, ok
}

// Next returns the status that follows s, if any.
func Next(s models.Status) (models.Status, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(models.Statuses) {
		return "", false
	}
	return models.Statuses[i+1], true
}

// Previous returns the status that precedes s, if any.
func Previous(s models.Status) (models.Status, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return models.Statuses[i-1], true
}

// TransitionPolicy decides whether direct status writes are checked.
type TransitionPolicy string

const (
	// PolicyPermissive accepts any status on update and bulk update.
	PolicyPermissive TransitionPolicy = "permissive"
	// PolicyStrict accepts only the next pipeline step, or the current status.
	PolicyStrict TransitionPolicy = "strict"
)

// ParsePolicy reads a policy name; empty means permissive.
func ParsePolicy(s string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyPermissive:
		return PolicyPermissive, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown transition policy %q", s)
}

// Allows reports whether a project may move from one status to another.
func (p TransitionPolicy) Allows(from, to models.Status) bool {
	if p != PolicyStrict || from == to {
		return true
	}
	next, ok := Next(from)
	return ok && next == to
}
