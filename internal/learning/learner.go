// Package learning turns completion history and weekly reviews into
// updated scheduling parameters. Every function works on a profile
// snapshot and returns the updated copy; persistence is the caller's job.
package learning

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

type Params struct {
	Alpha         float64 // EMA weight of the newest observation
	GraceMin      int     // on-time window around the scheduled end
	PeakTopK      int
	BiasMin       float64
	BiasMax       float64
	FocusWeight   float64 // weight of the newest focus span
	BufferStepMin int
	BufferMaxMin  int
	OverrunDays   int     // distinct overrun days that trigger a buffer nudge
	MinPeakWeight float64 // samples below this weight are forgotten

	FeedbackBufferStepMin int
	SessionStepMin        int
	SessionMinMin         int
	SessionMaxMin         int
	DefaultSessionMin     int // base for the first session adjustment
}

func DefaultParams() Params {
	return Params{
		Alpha:         0.2,
		GraceMin:      15,
		PeakTopK:      4,
		BiasMin:       0.25,
		BiasMax:       4.0,
		FocusWeight:   0.3,
		BufferStepMin: 5,
		BufferMaxMin:  60,
		OverrunDays:   2,
		MinPeakWeight: 0.01,

		FeedbackBufferStepMin: 15,
		SessionStepMin:        30,
		SessionMinMin:         30,
		SessionMaxMin:         240,
		DefaultSessionMin:     120,
	}
}

// Observation is what one completion taught the learner.
type Observation struct {
	Outcome   domain.CompletionOutcome
	DelayMin  int  // actual end minus scheduled end; 0 without a schedule
	PeakHour  int  // -1 when no peak sample was recorded
	Scheduled bool // false when the task had no scheduled window
}

// ObserveCompletion folds one completed task into the profile. The task
// must carry actual start and end.
func ObserveCompletion(p domain.UserProfile, t *domain.Task, params Params) (domain.UserProfile, Observation, error) {
	if t.ActualStart == nil || t.ActualEnd == nil {
		return p, Observation{}, fmt.Errorf("task %s: %w", t.ID, &domain.ValidationError{Field: "actual_end", Message: "completion needs actual start and end"})
	}
	out := p.Clone()
	loc := out.Location()
	obs := Observation{Outcome: domain.OutcomeOnTime, PeakHour: -1}

	decayPeakSamples(&out, *t.ActualEnd, loc, params.MinPeakWeight)

	out.TasksTracked++
	if t.ScheduledEnd != nil {
		obs.Scheduled = true
		delay := t.ActualEnd.Sub(*t.ScheduledEnd)
		obs.DelayMin = int(delay.Round(time.Minute) / time.Minute)
		obs.Outcome = Classify(delay, params.GraceMin)

		indicator := 1.0
		if obs.Outcome == domain.OutcomeLate {
			indicator = 0
		}
		out.AdherenceRate = params.Alpha*indicator + (1-params.Alpha)*out.AdherenceRate

		switch obs.Outcome {
		case domain.OutcomeOnTime:
			out.OnTimeCount++
		case domain.OutcomeEarly:
			out.EarlyCount++
		case domain.OutcomeLate:
			out.LateCount++
			out.AvgDelayMin += (float64(obs.DelayMin) - out.AvgDelayMin) / float64(out.LateCount)
		}

		if obs.Outcome != domain.OutcomeLate && t.RequiresDeepFocus {
			obs.PeakHour = t.ActualStart.In(loc).Hour()
			if out.PeakSamples == nil {
				out.PeakSamples = map[int]float64{}
			}
			out.PeakSamples[obs.PeakHour]++
		}
	} else {
		out.OnTimeCount++
	}
	out.PeakHours = topHours(out.PeakSamples, params.PeakTopK)

	actualMin := float64(t.ActualEnd.Sub(*t.ActualStart) / time.Minute)
	if t.EstimatedMin > 0 && actualMin > 0 {
		ratio := actualMin / float64(t.EstimatedMin)
		out.DurationBias = params.Alpha*ratio + (1-params.Alpha)*out.DurationBias
		if out.TagBias == nil {
			out.TagBias = map[string]float64{}
		}
		for _, tag := range t.Tags {
			prev, ok := out.TagBias[tag]
			if !ok {
				prev = 1
			}
			out.TagBias[tag] = params.Alpha*ratio + (1-params.Alpha)*prev
		}
		out.EstimationErrorSum += math.Abs(actualMin-float64(t.EstimatedMin)) / float64(t.EstimatedMin)
	}

	if t.RequiresDeepFocus && actualMin > 0 {
		out.AverageFocusSpanMin = (1-params.FocusWeight)*out.AverageFocusSpanMin + params.FocusWeight*actualMin
	}

	return Clamp(out, params), obs, nil
}

// Classify buckets the gap between actual and scheduled end.
func Classify(delay time.Duration, graceMin int) domain.CompletionOutcome {
	grace := time.Duration(graceMin) * time.Minute
	switch {
	case delay > grace:
		return domain.OutcomeLate
	case delay < -grace:
		return domain.OutcomeEarly
	default:
		return domain.OutcomeOnTime
	}
}

// ObserveReview nudges the buffer upward when overruns recur on enough
// distinct days of one review. It reports whether the buffer changed.
func ObserveReview(p domain.UserProfile, deltas []domain.ReviewDelta, params Params) (domain.UserProfile, bool) {
	out := p.Clone()
	out.ReviewsProcessed++

	loc := out.Location()
	days := make(map[string]bool)
	for _, d := range deltas {
		if d.Kind == domain.DeltaOverrun {
			days[d.Date.In(loc).Format(time.DateOnly)] = true
		}
	}

	nudged := false
	if len(days) >= params.OverrunDays && out.MinBufferMin < params.BufferMaxMin {
		out.MinBufferMin += params.BufferStepMin
		if out.MinBufferMin > params.BufferMaxMin {
			out.MinBufferMin = params.BufferMaxMin
		}
		nudged = true
	}
	return Clamp(out, params), nudged
}

// Clamp forces every learned field into its valid range.
func Clamp(p domain.UserProfile, params Params) domain.UserProfile {
	p = p.Clone()
	p.AdherenceRate = clampFloat(p.AdherenceRate, 0, 1)
	p.DurationBias = clampFloat(p.DurationBias, params.BiasMin, params.BiasMax)
	for tag, b := range p.TagBias {
		p.TagBias[tag] = clampFloat(b, params.BiasMin, params.BiasMax)
	}
	for h := range p.PeakSamples {
		if h < 0 || h > 23 {
			delete(p.PeakSamples, h)
		}
	}
	valid := p.PeakHours[:0:0]
	seen := make(map[int]bool)
	for _, h := range p.PeakHours {
		if h >= 0 && h <= 23 && !seen[h] {
			seen[h] = true
			valid = append(valid, h)
		}
	}
	p.PeakHours = valid
	if p.MinBufferMin < 0 {
		p.MinBufferMin = 0
	}
	if p.AverageFocusSpanMin < 0 || math.IsNaN(p.AverageFocusSpanMin) {
		p.AverageFocusSpanMin = 0
	}
	if p.MaxDailyWorkMin < 0 {
		p.MaxDailyWorkMin = 0
	}
	if p.PreferredSessionMin < 0 {
		p.PreferredSessionMin = 0
	}
	return p
}

// decayPeakSamples halves every sample weight once per week elapsed since
// the last learning cycle, then records the current cycle.
func decayPeakSamples(p *domain.UserProfile, at time.Time, loc *time.Location, minWeight float64) {
	week := domain.WeekStart(at, loc)
	current := week.Format(time.DateOnly)
	if p.LearningCycle != "" && p.LearningCycle != current {
		if last, err := time.ParseInLocation(time.DateOnly, p.LearningCycle, loc); err == nil && week.After(last) {
			weeks := int(math.Round(week.Sub(last).Hours() / (24 * 7)))
			factor := math.Pow(0.5, float64(weeks))
			for h, w := range p.PeakSamples {
				w *= factor
				if w < minWeight {
					delete(p.PeakSamples, h)
					continue
				}
				p.PeakSamples[h] = w
			}
		}
	}
	p.LearningCycle = current
}

// topHours returns up to k hours by weight, heaviest first; ties go to the
// earlier hour.
func topHours(samples map[int]float64, k int) []int {
	hours := make([]int, 0, len(samples))
	for h := range samples {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if samples[hours[i]] != samples[hours[j]] {
			return samples[hours[i]] > samples[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > k {
		hours = hours[:k]
	}
	return hours
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
