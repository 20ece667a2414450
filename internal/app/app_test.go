package app

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/clock"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/llm"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type cannedLLM struct{ text string }

func (c cannedLLM) Generate(context.Context, llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Text: c.text, Model: "canned"}, nil
}

func (cannedLLM) Available(context.Context) bool { return true }

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.DBPath = ":memory:"
	cfg.UserID = "u1"
	return cfg
}

func newApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithClock(clock.Fake(testutil.At(0, 8, 0)))}, opts...)
	a, err := New(context.Background(), memoryConfig(), zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_WiresPlanning(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	task := testutil.NewTestTask("u1", "Write report", 90)
	require.NoError(t, a.Tasks.Add(ctx, task))

	plan, err := a.Plans.Generate(ctx, "u1", horizonDays(a, 2))
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, task.ID, plan.Entries[0].TaskID)

	res, err := a.Plans.Execute(ctx, "u1", plan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, res.Scheduled)
	assert.Zero(t, res.Exported)

	report, err := a.Monitor.Tick(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, report.Flags)
}

func TestNew_WithoutModel(t *testing.T) {
	a := newApp(t)
	_, err := a.Schedule.SetBusyFromText(context.Background(), "u1", testutil.Monday, "dentist tuesday 10-11")
	assert.ErrorIs(t, err, intelligence.ErrUpstreamUnavailable)
}

func TestNew_WithModel(t *testing.T) {
	a := newApp(t, WithLLMClient(cannedLLM{
		text: `{"blocks":[{"start":"2025-06-17T10:00","end":"2025-06-17T11:00","label":"dentist"}]}`,
	}))
	res, err := a.Schedule.SetBusyFromText(context.Background(), "u1", testutil.Monday, "dentist tuesday 10-11")
	require.NoError(t, err)
	require.Len(t, res.Busy, 1)
	assert.Equal(t, "dentist", res.Busy[0].Label)
}

func TestNew_CalendarFailureIsNotFatal(t *testing.T) {
	cfg := memoryConfig()
	cfg.Calendar.Enabled = true
	cfg.Calendar.CredentialsPath = t.TempDir() + "/missing.json"
	core, logs := observer.New(zap.WarnLevel)

	a, err := New(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Equal(t, 1, logs.FilterMessage("calendar export disabled").Len())
}

func horizonDays(a *App, days int) service.GenerateRequest {
	now := a.Clock.Now()
	return service.GenerateRequest{Horizon: domain.Horizon{Start: now, End: now.Add(time.Duration(days) * 24 * time.Hour)}}
}
