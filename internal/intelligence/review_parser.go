package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/llm"
)

// ReviewParser turns weekly-review prose into structured per-day deltas.
// Contradictory reports are passed through unreconciled.
type ReviewParser interface {
	Parse(ctx context.Context, text string, weekStart time.Time) ([]domain.ReviewDelta, error)
}

type reviewParser struct {
	client   llm.LLMClient
	observer llm.Observer
}

func NewReviewParser(client llm.LLMClient, observer llm.Observer) ReviewParser {
	if observer == nil {
		observer = llm.NoopObserver{}
	}
	return &reviewParser{client: client, observer: observer}
}

type deltaPayload struct {
	Deltas []struct {
		Date       string `json:"date"`
		Event      string `json:"event"`
		PlannedMin int    `json:"planned_min"`
		ActualMin  int    `json:"actual_min"`
		Kind       string `json:"kind"`
	} `json:"deltas"`
}

func (s *reviewParser) Parse(ctx context.Context, text string, weekStart time.Time) ([]domain.ReviewDelta, error) {
	const op = "parse review"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if s.client == nil {
		return nil, upstream(op, nil)
	}

	loc := weekStart.Location()
	weekEnd := weekStart.AddDate(0, 0, 7)
	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskParseReview,
		SystemPrompt: parseReviewSystemPrompt,
		UserPrompt: fmt.Sprintf("Review week: %s to %s.\n\nReview:\n%s",
			weekStart.Format("2006-01-02"), weekEnd.AddDate(0, 0, -1).Format("2006-01-02"), text),
	})
	if err != nil {
		return nil, upstream(op, err)
	}

	payload, err := llm.ExtractJSON[deltaPayload](resp.Text, nil)
	if err != nil {
		return nil, upstream(op, err)
	}

	deltas := make([]domain.ReviewDelta, 0, len(payload.Deltas))
	for i, raw := range payload.Deltas {
		date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw.Date), loc)
		if err != nil {
			return nil, invalidOutput(op, "delta %d: bad date %q", i, raw.Date)
		}
		if date.Before(weekStart) || !date.Before(weekEnd) {
			return nil, invalidOutput(op, "delta %d: %s is outside the review week", i, raw.Date)
		}
		d := domain.ReviewDelta{
			Date:       date,
			Event:      strings.TrimSpace(raw.Event),
			PlannedMin: raw.PlannedMin,
			ActualMin:  raw.ActualMin,
			Kind:       domain.DeltaKind(strings.ToLower(strings.TrimSpace(raw.Kind))),
		}
		if d.Kind == "" {
			d.Kind = domain.ClassifyDelta(d.PlannedMin, d.ActualMin)
		}
		if err := d.Validate(); err != nil {
			return nil, invalidOutput(op, "delta %d: %v", i, err)
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}
