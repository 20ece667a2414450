package learning

import (
	"fmt"
	"math"

	"github.com/alexanderramin/cadence/internal/domain"
)

// minTrackedForAdvice is how many completions are needed before adherence
// and bias recommendations are offered.
const minTrackedForAdvice = 5

// Insights derives the learned-parameter report for a profile.
func Insights(p domain.UserProfile) domain.Insights {
	in := domain.Insights{
		UserID:              p.UserID,
		AdherenceRate:       p.AdherenceRate,
		DurationBias:        p.DurationBias,
		TagBias:             p.Clone().TagBias,
		PeakHours:           append([]int(nil), p.PeakHours...),
		AverageFocusSpanMin: p.AverageFocusSpanMin,
		MinBufferMin:        p.MinBufferMin,
		TasksTracked:        p.TasksTracked,
		OnTimeCount:         p.OnTimeCount,
		EarlyCount:          p.EarlyCount,
		LateCount:           p.LateCount,
		AvgDelayMin:         p.AvgDelayMin,
		ReviewsProcessed:    p.ReviewsProcessed,
		PlansGenerated:      p.PlansGenerated,
		FeedbackReceived:    p.FeedbackReceived,
	}
	if p.TasksTracked > 0 {
		in.AvgEstimationError = p.EstimationErrorSum / float64(p.TasksTracked)
	}
	in.Recommendations = recommendations(p)
	return in
}

func recommendations(p domain.UserProfile) []string {
	var out []string
	if p.TasksTracked < minTrackedForAdvice {
		out = append(out, fmt.Sprintf("Complete %d more tasks so estimates and adherence can be learned.", minTrackedForAdvice-p.TasksTracked))
	} else {
		switch {
		case p.DurationBias > 1.2:
			out = append(out, fmt.Sprintf("You tend to underestimate: tasks take about %d%% longer than estimated.",
				int(math.Round((p.DurationBias-1)*100))))
		case p.DurationBias < 0.8:
			out = append(out, fmt.Sprintf("You tend to overestimate: tasks take about %d%% less time than estimated.",
				int(math.Round((1-p.DurationBias)*100))))
		}
		if p.AdherenceRate < 0.5 {
			out = append(out, "Low schedule adherence. Consider a lighter daily load or longer buffers between tasks.")
		}
		if p.AvgDelayMin > 60 {
			out = append(out, "Late tasks run over by more than an hour on average; add slack to long tasks.")
		}
	}
	if len(p.PeakHours) == 0 {
		out = append(out, "Complete deep-focus tasks on time to learn your peak productivity hours.")
	} else {
		out = append(out, fmt.Sprintf("Your best focus starts around %02d:00; keep deep work there.", p.PeakHours[0]))
	}
	return out
}
