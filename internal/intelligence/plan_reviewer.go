package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/llm"
)

// PlanReviewer proposes a revised task ordering for a plan given free-text
// feedback, plus any standing preference changes the feedback asks for.
// The hints only influence ordering; placement stays with the allocator.
type PlanReviewer interface {
	Review(ctx context.Context, plan *domain.Plan, feedback string) (*domain.PlanReview, error)
}

type planReviewer struct {
	client   llm.LLMClient
	observer llm.Observer
}

// NewPlanReviewer creates a PlanReviewer backed by client.
func NewPlanReviewer(client llm.LLMClient, observer llm.Observer) PlanReviewer {
	if observer == nil {
		observer = llm.NoopObserver{}
	}
	return &planReviewer{client: client, observer: observer}
}

type reviewTask struct {
	TaskID   string   `json:"task_id"`
	Title    string   `json:"title"`
	Sessions []string `json:"sessions,omitempty"`
	Issue    string   `json:"issue,omitempty"`
}

type reviewPrompt struct {
	Horizon  string       `json:"horizon"`
	Tasks    []reviewTask `json:"tasks"`
	Feedback string       `json:"feedback"`
}

type orderPayload struct {
	Order []struct {
		TaskID string `json:"task_id"`
		Rank   int    `json:"rank"`
		Note   string `json:"note"`
	} `json:"order"`
	Adjust []string `json:"adjust"`
}

func (s *planReviewer) Review(ctx context.Context, plan *domain.Plan, feedback string) (*domain.PlanReview, error) {
	const op = "review plan"
	if s.client == nil {
		return nil, upstream(op, nil)
	}

	prompt, known := buildReviewPrompt(plan, feedback)
	promptJSON, err := json.MarshalIndent(prompt, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: encode prompt: %w", op, err)
	}

	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskReviewPlan,
		SystemPrompt: reviewPlanSystemPrompt,
		UserPrompt:   "Here is the plan and the feedback:\n\n" + string(promptJSON),
	})
	if err != nil {
		return nil, upstream(op, err)
	}

	payload, err := llm.ExtractJSON[orderPayload](resp.Text, nil)
	if err != nil {
		return nil, upstream(op, err)
	}

	hints := make([]domain.OrderingHint, 0, len(payload.Order))
	seenTask := make(map[string]bool)
	seenRank := make(map[int]bool)
	for _, o := range payload.Order {
		id := strings.TrimSpace(o.TaskID)
		switch {
		case !known[id]:
			return nil, invalidOutput(op, "unknown task %q", o.TaskID)
		case o.Rank < 1:
			return nil, invalidOutput(op, "rank %d for %s is not positive", o.Rank, id)
		case seenTask[id]:
			return nil, invalidOutput(op, "task %s ranked twice", id)
		case seenRank[o.Rank]:
			return nil, invalidOutput(op, "rank %d used twice", o.Rank)
		}
		seenTask[id] = true
		seenRank[o.Rank] = true
		hints = append(hints, domain.OrderingHint{TaskID: id, Rank: o.Rank, Note: strings.TrimSpace(o.Note)})
	}
	sort.Slice(hints, func(i, j int) bool { return hints[i].Rank < hints[j].Rank })

	review := &domain.PlanReview{Hints: hints}
	for _, a := range payload.Adjust {
		sig := domain.FeedbackSignal(strings.ToLower(strings.TrimSpace(a)))
		if !sig.Valid() {
			return nil, invalidOutput(op, "unknown adjustment %q", a)
		}
		review.Signals = append(review.Signals, sig)
	}
	return review, nil
}

func buildReviewPrompt(plan *domain.Plan, feedback string) (reviewPrompt, map[string]bool) {
	const stamp = "Mon 2006-01-02 15:04"
	p := reviewPrompt{
		Horizon:  plan.HorizonStart.Format(stamp) + " to " + plan.HorizonEnd.Format(stamp),
		Feedback: strings.TrimSpace(feedback),
	}
	known := make(map[string]bool)
	for _, id := range plan.TaskIDs() {
		entries := plan.EntriesFor(id)
		t := reviewTask{TaskID: id, Title: entries[0].Title}
		for _, e := range entries {
			t.Sessions = append(t.Sessions, e.Start.Format(stamp)+"-"+e.End.Format("15:04"))
		}
		p.Tasks = append(p.Tasks, t)
		known[id] = true
	}
	for _, issue := range plan.Issues() {
		p.Tasks = append(p.Tasks, reviewTask{TaskID: issue.TaskID, Title: issue.Title, Issue: issue.Reason})
		known[issue.TaskID] = true
	}
	return p, known
}
