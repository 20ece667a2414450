package cli

import (
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhen(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-06-17", time.Date(2025, 6, 17, 0, 0, 0, 0, berlin)},
		{"2025-06-17T10:30", time.Date(2025, 6, 17, 10, 30, 0, 0, berlin)},
		{"2025-06-17 10:30", time.Date(2025, 6, 17, 10, 30, 0, 0, berlin)},
		{"2025-06-17T10:30:00Z", time.Date(2025, 6, 17, 10, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhen(tt.in, berlin)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err = parseWhen("next tuesday", berlin)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	m, err := parseClock("08:45")
	require.NoError(t, err)
	assert.Equal(t, 8*60+45, m)

	_, err = parseClock("25:00")
	assert.Error(t, err)
}

func TestWeekOf(t *testing.T) {
	now := time.Date(2025, 6, 19, 15, 0, 0, 0, time.UTC) // Thursday
	ws, err := weekOf("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), ws)

	ws, err = weekOf("2025-06-22", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), ws, "Sunday belongs to the week before")

	_, err = weekOf("16/06/2025", now, time.UTC)
	assert.Error(t, err)
}

func TestParseBusy(t *testing.T) {
	iv, err := parseBusy("2025-06-17T10:00/2025-06-17T11:00/dentist / checkup", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC), iv.Start)
	assert.Equal(t, time.Date(2025, 6, 17, 11, 0, 0, 0, time.UTC), iv.End)
	assert.Equal(t, "dentist / checkup", iv.Label)
	assert.Equal(t, domain.IntervalBusy, iv.Kind)

	iv, err = parseBusy("2025-06-17T10:00/2025-06-17T11:00", time.UTC)
	require.NoError(t, err)
	assert.Empty(t, iv.Label)

	_, err = parseBusy("2025-06-17T10:00", time.UTC)
	assert.Error(t, err)
}

func TestParseDelta(t *testing.T) {
	d, err := parseDelta("2025-06-17, report, 60, 90", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "report", d.Event)
	assert.Equal(t, 60, d.PlannedMin)
	assert.Equal(t, 90, d.ActualMin)
	assert.Equal(t, domain.DeltaOverrun, d.Kind)

	d, err = parseDelta("2025-06-18,gym,45,45,skipped", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, domain.DeltaSkipped, d.Kind, "an explicit kind wins")

	for _, bad := range []string{"2025-06-17,report,60", "17.06.2025,report,60,90", "2025-06-17,report,an hour,90"} {
		_, err := parseDelta(bad, time.UTC)
		assert.Error(t, err, bad)
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := parseWeekdays("mon, Tuesday,fri")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Friday}, days)

	_, err = parseWeekdays("mon,funday")
	assert.Error(t, err)
}
