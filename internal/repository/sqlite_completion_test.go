package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionRepo_CreateAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteCompletionRepo(db)
	ctx := context.Background()

	schedStart, schedEnd := testutil.At(0, 9, 0), testutil.At(0, 10, 0)
	first := &domain.CompletionRecord{
		ID: "r1", UserID: "u1", TaskID: "t1", Title: "Write",
		EstimatedMin: 60, ActualMin: 75,
		ScheduledStart: &schedStart, ScheduledEnd: &schedEnd,
		ActualStart: testutil.At(0, 9, 0), ActualEnd: testutil.At(0, 10, 15),
		Outcome: domain.OutcomeOnTime, DelayMin: 15, DeepFocus: true,
		Tags: []string{"writing"}, CreatedAt: testutil.At(0, 10, 15),
	}
	second := &domain.CompletionRecord{
		ID: "r2", UserID: "u1", TaskID: "t2", Title: "Email",
		EstimatedMin: 30, ActualMin: 20,
		ActualStart: testutil.At(1, 9, 0), ActualEnd: testutil.At(1, 9, 20),
		Outcome: domain.OutcomeEarly, CreatedAt: testutil.At(1, 9, 20),
	}
	other := &domain.CompletionRecord{
		ID: "r3", UserID: "u2", TaskID: "t9", Title: "Not mine",
		EstimatedMin: 30, ActualMin: 30,
		ActualStart: testutil.At(1, 9, 0), ActualEnd: testutil.At(1, 9, 30),
		Outcome: domain.OutcomeOnTime, CreatedAt: testutil.At(1, 9, 30),
	}
	for _, r := range []*domain.CompletionRecord{first, second, other} {
		require.NoError(t, repo.Create(ctx, r))
	}

	got, err := repo.ListRecent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID, "newest first")
	assert.Nil(t, got[0].ScheduledStart)
	assert.Equal(t, "r1", got[1].ID)
	assert.True(t, got[1].ScheduledEnd.Equal(schedEnd))
	assert.Equal(t, []string{"writing"}, got[1].Tags)
	assert.True(t, got[1].DeepFocus)
	assert.Equal(t, 15, got[1].DelayMin)
}
