package cli

import (
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskFromForm(t *testing.T) {
	task, err := taskFromForm(taskFormValues{
		Title:      "  Write report ",
		Priority:   "high",
		Estimate:   "120",
		CanSplit:   true,
		MinSession: "45",
		Deadline:   "2025-06-20T17:00",
		TimeOfDay:  "morning",
		DeepFocus:  true,
		Tags:       "writing, ,q2",
	}, "u1", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "u1", task.UserID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.Equal(t, 120, task.EstimatedMin)
	assert.True(t, task.CanSplit)
	assert.Equal(t, 45, task.MinSessionMin)
	require.NotNil(t, task.Deadline)
	assert.Equal(t, time.Date(2025, 6, 20, 17, 0, 0, 0, time.UTC), *task.Deadline)
	assert.Equal(t, domain.TimeOfDayMorning, task.PreferredTimeOfDay)
	assert.True(t, task.RequiresDeepFocus)
	assert.Equal(t, []string{"writing", "q2"}, task.Tags)
	assert.NoError(t, task.Validate())
}

func TestTaskFromForm_SplitWithoutSessionUsesEstimate(t *testing.T) {
	task, err := taskFromForm(taskFormValues{Title: "Read", Priority: "low", Estimate: "60", CanSplit: true, TimeOfDay: "none"}, "u1", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 60, task.MinSessionMin)
	assert.Nil(t, task.Deadline)
}

func TestTaskFromForm_Errors(t *testing.T) {
	_, err := taskFromForm(taskFormValues{Title: "Read", Estimate: "soon"}, "u1", time.UTC)
	assert.Error(t, err)

	_, err = taskFromForm(taskFormValues{Title: "Read", Estimate: "30", Deadline: "friday"}, "u1", time.UTC)
	assert.Error(t, err)
}

func TestFormValidators(t *testing.T) {
	assert.NoError(t, validatePositiveInt(""))
	assert.NoError(t, validatePositiveInt("15"))
	assert.Error(t, validatePositiveInt("0"))
	assert.Error(t, validateRequiredPositiveInt(""))
	assert.NoError(t, validateOptionalWhen(""))
	assert.NoError(t, validateOptionalWhen("2025-06-20"))
	assert.Error(t, validateOptionalWhen("soon"))
}

func TestTaskForm_DefaultsSelections(t *testing.T) {
	var v taskFormValues
	form := taskForm(&v)
	require.NotNil(t, form)
	assert.Equal(t, string(domain.PriorityMedium), v.Priority)
	assert.Equal(t, string(domain.TimeOfDayNone), v.TimeOfDay)
}
