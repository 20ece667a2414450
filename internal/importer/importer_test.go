package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var importNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const sampleYAML = `
timezone: UTC
defaults:
  priority: medium
  min_session: 30m
  tags: [work]
tasks:
  - ref: research
    title: Research competitors
    estimate: 2h
    can_split: true
    deep_focus: true
  - ref: report
    title: Write report
    priority: high
    estimated_min: 90
    deadline: 2025-06-20
    preferred_time: morning
    tags: [writing]
    depends_on: [research, 7f1c-existing]
busy:
  - start: 2025-06-16T09:00
    end: 2025-06-16T10:00
    label: standup
  - start: 2025-06-21
    end: 2025-06-22
    label: trip
    all_day: true
`

func TestParseAndConvert(t *testing.T) {
	schema, err := ParseImportSchema([]byte(sampleYAML))
	require.NoError(t, err)
	require.Empty(t, ValidateImportSchema(schema))

	batch, err := Convert(schema, "u1", time.UTC, importNow)
	require.NoError(t, err)
	require.Len(t, batch.Tasks, 2)

	research, report := batch.Tasks[0], batch.Tasks[1]
	assert.NotEmpty(t, research.ID)
	assert.Equal(t, "u1", research.UserID)
	assert.Equal(t, 120, research.EstimatedMin)
	assert.True(t, research.CanSplit)
	assert.Equal(t, 30, research.MinSessionMin, "min session cascades from defaults")
	assert.True(t, research.RequiresDeepFocus)
	assert.Equal(t, domain.PriorityMedium, research.Priority)
	assert.Equal(t, []string{"work"}, research.Tags)
	assert.Equal(t, domain.TaskPending, research.Status)

	assert.Equal(t, domain.PriorityHigh, report.Priority)
	assert.Equal(t, 90, report.EstimatedMin)
	assert.False(t, report.CanSplit)
	assert.Zero(t, report.MinSessionMin)
	assert.Equal(t, domain.TimeOfDayMorning, report.PreferredTimeOfDay)
	require.NotNil(t, report.Deadline)
	assert.Equal(t, time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), *report.Deadline, "a bare date deadline means end of day")
	assert.Equal(t, []string{research.ID, "7f1c-existing"}, report.Dependencies)
	assert.Equal(t, []string{"7f1c-existing"}, batch.External)
	assert.Equal(t, []string{"writing"}, report.Tags)

	week := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	require.Len(t, batch.Busy, 1)
	busy := batch.Busy[week]
	require.Len(t, busy, 2)
	assert.Equal(t, "standup", busy[0].Label)
	assert.Equal(t, domain.IntervalBusy, busy[0].Kind)
	assert.Equal(t, time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC), busy[1].Start)
	assert.Equal(t, time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC), busy[1].End)
	assert.True(t, busy[1].AllDay)
}

func TestConvert_SplitsBusyAcrossWeeks(t *testing.T) {
	schema := &ImportSchema{Busy: []BusyImport{
		{Start: "2025-06-22T20:00", End: "2025-06-23T09:00", Label: "travel"},
	}}
	require.Empty(t, ValidateImportSchema(schema))

	batch, err := Convert(schema, "u1", time.UTC, importNow)
	require.NoError(t, err)
	require.Len(t, batch.Busy, 2)
	first := batch.Busy[time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)]
	second := batch.Busy[time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC)]
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC), first[0].End)
	assert.Equal(t, time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC), second[0].Start)
}

func TestConvert_UsesSchemaTimezone(t *testing.T) {
	schema := &ImportSchema{
		Timezone: "Europe/Berlin",
		Tasks:    []TaskImport{{Ref: "a", Title: "A", Estimate: "45m", Deadline: "2025-06-20T17:00"}},
	}
	require.Empty(t, ValidateImportSchema(schema))

	batch, err := Convert(schema, "u1", time.UTC, importNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC), batch.Tasks[0].Deadline.UTC())
}

func TestValidateImportSchema_CollectsAllErrors(t *testing.T) {
	schema := &ImportSchema{
		Defaults: &DefaultsImport{Priority: "critical"},
		Tasks: []TaskImport{
			{Ref: "a", Title: "", Estimate: "soon"},
			{Ref: "a", Title: "Dup", EstimatedMin: ptrInt(30), Estimate: "30m"},
			{Ref: "b", Title: "B", PreferredAt: "night"},
			{Ref: "c", Title: "C", Estimate: "1h", DependsOn: []string{"c", "a", "a"}, Deadline: "friday"},
		},
		Busy: []BusyImport{{Start: "2025-06-16T10:00", End: "2025-06-16T09:00"}},
	}

	errs := ValidateImportSchema(schema)
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	joined := strings.Join(msgs, "\n")

	for _, want := range []string{
		"defaults.priority",
		"tasks[0].title is required",
		"tasks[0].estimate: invalid duration",
		"tasks[1].ref: duplicate ref",
		"tasks[1]: set estimate or estimated_min, not both",
		"tasks[2].preferred_time",
		"tasks[2].estimate is required",
		"tasks[3].depends_on: task depends on itself",
		`tasks[3].depends_on: duplicate "a"`,
		"tasks[3].deadline",
		"busy[0]: end",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestValidateImportSchema_EmptyFile(t *testing.T) {
	errs := ValidateImportSchema(&ImportSchema{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no tasks")
}

func TestParseImportSchema_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseImportSchema([]byte("tasks:\n  - ref: a\n    title: A\n    estimat: 1h\n"))
	assert.Error(t, err)
}

func TestLoadImportSchema_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	schema, err := LoadImportSchema(path)
	require.NoError(t, err)
	assert.Len(t, schema.Tasks, 2)

	_, err = LoadImportSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseMinutes(t *testing.T) {
	cases := map[string]int{"90": 90, "90m": 90, "1.5h": 90, "1h30m": 90, "20s": 0}
	for in, want := range cases {
		got, err := parseMinutes(in)
		if want == 0 {
			assert.Error(t, err, in)
			continue
		}
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func ptrInt(v int) *int { return &v }
