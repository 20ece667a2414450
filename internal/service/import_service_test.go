package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/importer"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const importYAML = `
tasks:
  - ref: write
    title: Write chapter
    estimate: 90m
    depends_on: [outline]
  - ref: outline
    title: Outline chapter
    estimated_min: 30
busy:
  - start: 2025-06-16T09:00
    end: 2025-06-16T10:00
    label: lecture
`

func (f *fixture) importService() ImportService {
	return NewImportService(f.profiles, f.uow, f.opts...)
}

func writeImportFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestImport_CreatesTasksAndMergesBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.scheduleService(nil).SetBusy(ctx, user, testutil.Monday, []domain.Interval{
		testutil.Busy(0, 14, 0, 15, 0, "existing"),
	})
	require.NoError(t, err)

	res, err := f.importService().Import(ctx, user, writeImportFile(t, importYAML))
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, 1, res.Dependencies)
	assert.Equal(t, 1, res.BusyWeeks)

	write, outline := res.Tasks[0], res.Tasks[1]
	stored, err := f.tasks.Get(ctx, user, write.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{outline.ID}, stored.Dependencies)
	assert.Equal(t, 90, stored.EstimatedMin)
	assert.Equal(t, domain.TaskPending, stored.Status)

	view, err := f.scheduleService(nil).Week(ctx, user, testutil.Monday)
	require.NoError(t, err)
	require.Len(t, view.Busy, 2)
	assert.Equal(t, "lecture", view.Busy[0].Label)
	assert.Equal(t, "existing", view.Busy[1].Label)
}

func TestImport_LinksExistingTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.addTask(t, "Research", 60)

	schema := &importer.ImportSchema{Tasks: []importer.TaskImport{{
		Ref: "draft", Title: "Draft", EstimatedMin: ptr(45), DependsOn: []string{existing.ID},
	}}}
	res, err := f.importService().ImportSchema(ctx, user, schema)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, []string{existing.ID}, res.Tasks[0].Dependencies)
	assert.Equal(t, 0, res.BusyWeeks)
}

func TestImport_UnknownDependencyWritesNothing(t *testing.T) {
	f := newFixture(t)
	schema := &importer.ImportSchema{
		Tasks: []importer.TaskImport{
			{Ref: "a", Title: "A", EstimatedMin: ptr(30)},
			{Ref: "b", Title: "B", EstimatedMin: ptr(30), DependsOn: []string{"no-such-task"}},
		},
		Busy: []importer.BusyImport{{Start: "2025-06-16T09:00", End: "2025-06-16T10:00"}},
	}

	_, err := f.importService().ImportSchema(context.Background(), user, schema)
	assert.ErrorIs(t, err, domain.ErrUnknownDependency)
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "tasks", ""))
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "intervals", ""))
}

func TestImport_InvalidFileWritesNothing(t *testing.T) {
	f := newFixture(t)
	schema := &importer.ImportSchema{Tasks: []importer.TaskImport{
		{Ref: "a", Title: "", EstimatedMin: ptr(30)},
		{Ref: "a", Title: "Dup", EstimatedMin: ptr(30)},
	}}

	_, err := f.importService().ImportSchema(context.Background(), user, schema)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "tasks", ""))
}

func TestCreationOrder(t *testing.T) {
	c := &domain.Task{ID: "c", Dependencies: []string{"b"}}
	b := &domain.Task{ID: "b", Dependencies: []string{"a", "external"}}
	a := &domain.Task{ID: "a"}

	got := creationOrder([]*domain.Task{c, b, a})
	ids := make([]string, len(got))
	for i, task := range got {
		ids[i] = task.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
