package workflow

import (
	"context"
	"fmt"

	"project-tracker-api/internal/models"
)

// Stats computes the dashboard overview from the whole collection.
// Only the four pipeline statuses are counted and TotalProjects is their sum.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count projects by status: %w", err)
	}
	hours, err := s.store.SumHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum project hours: %w", err)
	}
	return summarize(counts, hours), nil
}

func summarize(counts map[string]int64, hours float64) *models.Stats {
	st := &models.Stats{TotalHours: hours}
	for raw, n := range counts {
		switch models.Status(raw) {
		case models.StatusNew:
			st.NewProjects = n
		case models.StatusSentToCEO:
			st.SentToCEO = n
		case models.StatusApprovedByClient:
			st.ApprovedByClient = n
		case models.StatusInvoiceRaised:
			st.InvoiceRaised = n
		default:
			continue
		}
		st.TotalProjects += n
	}
	return st
}
