package learning

import (
	"strings"

	"github.com/alexanderramin/cadence/internal/domain"
)

// FeedbackSignals reads preference adjustments out of free-text plan
// feedback. Matching is by keyword and case-insensitive.
func FeedbackSignals(feedback string) []domain.FeedbackSignal {
	text := strings.ToLower(feedback)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}

	var out []domain.FeedbackSignal
	if has("more buffer", "more time between") {
		out = append(out, domain.SignalMoreBuffer)
	}
	if has("less buffer", "back to back") {
		out = append(out, domain.SignalLessBuffer)
	}
	if has("too long", "shorter") {
		out = append(out, domain.SignalShorterSessions)
	}
	if has("longer session", "combine") {
		out = append(out, domain.SignalLongerSessions)
	}

	// A stated afternoon or evening preference outranks a morning mention.
	switch {
	case has("afternoon", "evening") && has("prefer"):
		out = append(out, domain.SignalNoMorningDeepWork)
	case has("morning") && has("not", "don't"):
		out = append(out, domain.SignalNoMorningDeepWork)
	case has("morning"):
		out = append(out, domain.SignalMorningDeepWork)
	}
	return out
}

// MergeSignals concatenates signal lists, keeping the first occurrence of
// each valid signal.
func MergeSignals(lists ...[]domain.FeedbackSignal) []domain.FeedbackSignal {
	seen := make(map[domain.FeedbackSignal]bool)
	var out []domain.FeedbackSignal
	for _, list := range lists {
		for _, s := range list {
			if s.Valid() && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// ObserveFeedback applies feedback signals to the profile and counts the
// feedback. It reports whether any scheduling preference changed.
func ObserveFeedback(p domain.UserProfile, signals []domain.FeedbackSignal, params Params) (domain.UserProfile, bool) {
	out := p.Clone()
	out.FeedbackReceived++

	session := func(delta int) {
		base := out.PreferredSessionMin
		if base == 0 {
			base = params.DefaultSessionMin
		}
		out.PreferredSessionMin = min(max(base+delta, params.SessionMinMin), params.SessionMaxMin)
	}

	for _, s := range signals {
		switch s {
		case domain.SignalMoreBuffer:
			out.MinBufferMin = min(out.MinBufferMin+params.FeedbackBufferStepMin, params.BufferMaxMin)
		case domain.SignalLessBuffer:
			out.MinBufferMin = max(out.MinBufferMin-params.FeedbackBufferStepMin, 0)
		case domain.SignalShorterSessions:
			session(-params.SessionStepMin)
		case domain.SignalLongerSessions:
			session(params.SessionStepMin)
		case domain.SignalMorningDeepWork:
			out.PreferMorningDeepWork = true
		case domain.SignalNoMorningDeepWork:
			out.PreferMorningDeepWork = false
		}
	}

	out = Clamp(out, params)
	changed := out.MinBufferMin != p.MinBufferMin ||
		out.PreferredSessionMin != p.PreferredSessionMin ||
		out.PreferMorningDeepWork != p.PreferMorningDeepWork
	return out, changed
}
