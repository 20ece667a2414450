package domain

import (
	"sort"
	"time"
)

type UserProfile struct {
	UserID   string
	Timezone string

	// Working hours, minutes since local midnight.
	WorkStartMin  int
	WorkEndMin    int
	WorkDays      []time.Weekday
	AllowWeekends bool

	// Daily break inside working hours, minutes since local midnight.
	// BreakMin 0 means no break.
	BreakStartMin int
	BreakMin      int

	MaxDailyWorkMin int
	MinBufferMin    int

	// Learned parameters
	PeakHours           []int
	PeakSamples         map[int]float64
	AverageFocusSpanMin float64
	AdherenceRate       float64
	DurationBias        float64
	TagBias             map[string]float64
	LearningCycle       string

	// Set from plan feedback. PreferredSessionMin 0 means no preference.
	PreferredSessionMin   int
	PreferMorningDeepWork bool

	// Statistics
	TasksTracked       int
	OnTimeCount        int
	EarlyCount         int
	LateCount          int
	AvgDelayMin        float64
	EstimationErrorSum float64
	ReviewsProcessed   int
	PlansGenerated     int
	FeedbackReceived   int

	Version   int
	UpdatedAt time.Time
}

// DefaultUserProfile returns the profile a new user starts with.
func DefaultUserProfile(userID string) UserProfile {
	return UserProfile{
		UserID:              userID,
		Timezone:            "UTC",
		WorkStartMin:        9 * 60,
		WorkEndMin:          17 * 60,
		WorkDays:            []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		BreakStartMin:       12 * 60,
		MaxDailyWorkMin:     8 * 60,
		MinBufferMin:        15,
		PeakSamples:         map[int]float64{},
		AverageFocusSpanMin: 90,
		AdherenceRate:       1.0,
		DurationBias:        1.0,
		TagBias:             map[string]float64{},
	}
}

// Location resolves the profile's time zone, falling back to UTC.
func (p *UserProfile) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorksOn reports whether the profile schedules work on the given weekday.
func (p *UserProfile) WorksOn(day time.Weekday) bool {
	if (day == time.Saturday || day == time.Sunday) && !p.AllowWeekends {
		return false
	}
	if len(p.WorkDays) == 0 {
		return true
	}
	for _, d := range p.WorkDays {
		if d == day {
			return true
		}
	}
	// Weekend days are implicitly active once weekend scheduling is allowed.
	return p.AllowWeekends && (day == time.Saturday || day == time.Sunday)
}

// IsPeakHour reports whether hour is one of the learned peak hours.
func (p *UserProfile) IsPeakHour(hour int) bool {
	for _, h := range p.PeakHours {
		if h == hour {
			return true
		}
	}
	return false
}

// BiasFor returns the duration correction for a task: the tag bias of the
// first tag that has one, else the global bias.
func (p *UserProfile) BiasFor(t *Task) float64 {
	for _, tag := range t.Tags {
		if b, ok := p.TagBias[tag]; ok {
			return b
		}
	}
	if p.DurationBias <= 0 {
		return 1
	}
	return p.DurationBias
}

// Clone returns a deep copy so learners can work on a snapshot.
func (p UserProfile) Clone() UserProfile {
	out := p
	out.WorkDays = append([]time.Weekday(nil), p.WorkDays...)
	out.PeakHours = append([]int(nil), p.PeakHours...)
	out.PeakSamples = make(map[int]float64, len(p.PeakSamples))
	for h, w := range p.PeakSamples {
		out.PeakSamples[h] = w
	}
	out.TagBias = make(map[string]float64, len(p.TagBias))
	for k, v := range p.TagBias {
		out.TagBias[k] = v
	}
	return out
}

// ValidateWorkingHours checks the explicit user-editable fields.
func (p *UserProfile) ValidateWorkingHours() error {
	if p.WorkStartMin < 0 || p.WorkStartMin > 24*60 || p.WorkEndMin < 0 || p.WorkEndMin > 24*60 {
		return invalid("working_hours", "must be within the day")
	}
	if p.WorkEndMin < p.WorkStartMin {
		return invalid("working_hours", "end before start")
	}
	if p.BreakMin < 0 || p.BreakStartMin < 0 || p.BreakStartMin+p.BreakMin > 24*60 {
		return invalid("break", "must be within the day")
	}
	if p.MaxDailyWorkMin < 0 {
		return invalid("max_daily_work_hours", "must not be negative")
	}
	if p.MinBufferMin < 0 {
		return invalid("min_buffer_between_tasks", "must not be negative")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return invalid("timezone", "unknown time zone %q", p.Timezone)
	}
	return nil
}

// BreakWindow returns the break as minutes since local midnight, clipped to
// working hours. ok is false when there is no break inside them.
func (p *UserProfile) BreakWindow() (start, end int, ok bool) {
	if p.BreakMin <= 0 {
		return 0, 0, false
	}
	start = max(p.BreakStartMin, p.WorkStartMin)
	end = min(p.BreakStartMin+p.BreakMin, p.WorkEndMin)
	return start, end, end > start
}

// SortedWorkDays returns the active weekdays in Monday-first order.
func (p *UserProfile) SortedWorkDays() []time.Weekday {
	days := append([]time.Weekday(nil), p.WorkDays...)
	sort.Slice(days, func(i, j int) bool {
		return (int(days[i])+6)%7 < (int(days[j])+6)%7
	})
	return days
}
