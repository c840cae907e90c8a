package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-tracker-api/internal/models"
)

func TestNextAndPrevious(t *testing.T) {
	next, ok := Next(models.StatusNew)
	require.True(t, ok)
	assert.Equal(t, models.StatusSentToCEO, next)

	_, ok = Next(models.StatusInvoiceRaised)
	assert.False(t, ok)

	prev, ok := Previous(models.StatusInvoiceRaised)
	require.True(t, ok)
	assert.Equal(t, models.StatusApprovedByClient, prev)

	_, ok = Previous(models.StatusNew)
	assert.False(t, ok)

	_, ok = Next("Archived")
	assert.False(t, ok)
}

func TestLookupAction(t *testing.T) {
	tr, ok := LookupAction(" Approve ")
	require.True(t, ok)
	assert.Equal(t, models.StatusSentToCEO, tr.From)
	assert.Equal(t, models.StatusApprovedByClient, tr.To)

	_, ok = LookupAction("archive")
	assert.False(t, ok)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]TransitionPolicy{
		"":           PolicyPermissive,
		"permissive": PolicyPermissive,
		"STRICT":     PolicyStrict,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParsePolicy("lenient")
	assert.Error(t, err)
}

func TestPolicyAllows(t *testing.T) {
	tests := []struct {
		policy   TransitionPolicy
		from, to models.Status
		want     bool
	}{
		{PolicyPermissive, models.StatusInvoiceRaised, models.StatusNew, true},
		{PolicyPermissive, models.StatusNew, models.StatusInvoiceRaised, true},
		{PolicyStrict, models.StatusNew, models.StatusSentToCEO, true},
		{PolicyStrict, models.StatusNew, models.StatusNew, true},
		{PolicyStrict, models.StatusNew, models.StatusApprovedByClient, false},
		{PolicyStrict, models.StatusApprovedByClient, models.StatusSentToCEO, false},
		{PolicyStrict, models.StatusInvoiceRaised, models.StatusNew, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy)+" "+string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Allows(tt.from, tt.to))
		})
	}
}
