package workflow

import (
	"math"
	"strings"

	"project-tracker-api/internal/models"
)

// Validate checks p against the required-field and conditional-field rules
// and normalizes it in place: text is trimmed, a category on a type that
// does not take one is dropped, and empty notes are cleared.
// The returned error is a *models.ValidationError listing every problem.
func Validate(p *models.Project) error {
	verr := &models.ValidationError{}

	p.ProjectName = strings.TrimSpace(p.ProjectName)
	p.ContactPerson = strings.TrimSpace(p.ContactPerson)
	p.EndClientName = strings.TrimSpace(p.EndClientName)
	if p.Notes != nil {
		n := strings.TrimSpace(*p.Notes)
		if n == "" {
			p.Notes = nil
		} else {
			p.Notes = &n
		}
	}

	if p.ProjectName == "" {
		verr.Add("projectName", "is required")
	}
	if p.ContactPerson == "" {
		verr.Add("contactPerson", "is required")
	}
	if p.EndClientName == "" {
		verr.Add("endClientName", "is required")
	}
	if p.DateReceived.IsZero() {
		verr.Add("dateReceived", "is required")
	}
	if p.DateDelivered != nil {
		if p.DateDelivered.IsZero() {
			p.DateDelivered = nil
		} else if !p.DateReceived.IsZero() && p.DateDelivered.Before(p.DateReceived.Time) {
			verr.Add("dateDelivered", "cannot be before dateReceived")
		}
	}

	switch {
	case p.ProjectType == "":
		verr.Add("projectType", "is required")
	case !p.ProjectType.Valid():
		verr.Add("projectType", "is not a known project type")
	default:
		validateConditional(p, verr)
	}

	if !p.Status.Valid() {
		verr.Add("status", "is not a known status")
	}

	return verr.Err()
}

func validateConditional(p *models.Project, verr *models.ValidationError) {
	if RequiresCategory(p.ProjectType) {
		switch {
		case p.Category == nil || *p.Category == "":
			verr.Add("category", "is required for "+string(p.ProjectType))
		case !p.Category.Valid():
			verr.Add("category", "must be one of Simple, Medium, Complex")
		}
	} else {
		p.Category = nil
	}

	if p.HoursWorked != nil {
		if msg := checkHours(*p.HoursWorked); msg != "" {
			verr.Add("hoursWorked", msg)
		}
	} else if RequiresHours(p.ProjectType) {
		verr.Add("hoursWorked", "is required for "+string(p.ProjectType))
	}
}

func checkHours(h float64) string {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return "must be a number"
	}
	if h < MinHours {
		return "must be at least 0.5"
	}
	if math.Mod(h, MinHours) != 0 {
		return "must be in steps of 0.5"
	}
	return ""
}
