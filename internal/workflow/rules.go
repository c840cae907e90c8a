// Package workflow holds the project pipeline: field rules per project type,
// the status state machine, bulk transitions and the dashboard aggregate.
package workflow

import "project-tracker-api/internal/models"

// requirement describes which conditional fields a project type demands.
type requirement struct {
	category bool
	hours    bool
}

// fieldRules maps every project type to its conditional requirement.
// Document-style work is graded by category; time-billed work logs hours.
var fieldRules = map[models.ProjectType]requirement{
	models.TypeMockups:       {category: true},
	models.TypeProposals:     {category: true},
	models.TypePresentations: {category: true},
	models.TypeCredentials:   {category: true},
	models.TypeRFP:           {category: true},
	models.TypeAIWork:        {hours: true},
	models.TypeCreativeWork:  {hours: true},
}

// RequiresCategory reports whether projects of type t must carry a category.
func RequiresCategory(t models.ProjectType) bool {
	return fieldRules[t].category
}

// RequiresHours reports whether projects of type t must log hours worked.
func RequiresHours(t models.ProjectType) bool {
	return fieldRules[t].hours
}

// MinHours is the smallest loggable amount and also the step size.
const MinHours = 0.5
