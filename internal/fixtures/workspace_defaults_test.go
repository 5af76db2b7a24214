package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaultCategories(t *testing.T) {
	categories := GetDefaultCategories("ws-1")

	assert.Len(t, categories, 10)
	assert.Equal(t, "Travel", categories[0].Name)
	assert.Equal(t, 0, categories[0].SortOrder)

	other := categories[len(categories)-1]
	assert.Equal(t, "Other", other.Name)
	assert.False(t, other.IsTaxDeductible)

	for _, c := range categories {
		assert.Equal(t, "ws-1", c.WorkspaceID)
		assert.True(t, c.IsActive)
	}
}

func TestGetDefaultReminderRules(t *testing.T) {
	rules := GetDefaultReminderRules("ws-1")

	assert.Len(t, rules, 3)
	for _, r := range rules {
		assert.True(t, r.Trigger.IsValid())
		assert.Contains(t, r.EmailBody, "{payment_link}")
	}
}
