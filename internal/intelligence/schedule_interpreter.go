package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/llm"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ScheduleInterpreter turns a free-text description of busy time into busy
// blocks inside one reference week.
type ScheduleInterpreter interface {
	Interpret(ctx context.Context, text string, weekStart time.Time) ([]domain.BusyBlock, error)
}

type scheduleInterpreter struct {
	client   llm.LLMClient
	observer llm.Observer
	cache    *expirable.LRU[string, []domain.BusyBlock]
}

// NewScheduleInterpreter creates a ScheduleInterpreter backed by client.
// Successful interpretations are cached per (week, text) for ttl; a
// cacheSize of zero disables the cache. A nil client always reports
// ErrUpstreamUnavailable.
func NewScheduleInterpreter(client llm.LLMClient, observer llm.Observer, cacheSize int, ttl time.Duration) ScheduleInterpreter {
	if observer == nil {
		observer = llm.NoopObserver{}
	}
	s := &scheduleInterpreter{client: client, observer: observer}
	if cacheSize > 0 {
		s.cache = expirable.NewLRU[string, []domain.BusyBlock](cacheSize, nil, ttl)
	}
	return s
}

type blockPayload struct {
	Blocks []blockJSON `json:"blocks"`
}

type blockJSON struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Label  string `json:"label"`
	AllDay bool   `json:"all_day"`
}

func (s *scheduleInterpreter) Interpret(ctx context.Context, text string, weekStart time.Time) ([]domain.BusyBlock, error) {
	const op = "interpret schedule"
	normalized := normalizeText(text)
	if normalized == "" {
		return nil, nil
	}
	key := weekStart.Format(time.RFC3339) + "\x00" + normalized
	if s.cache != nil {
		if blocks, ok := s.cache.Get(key); ok {
			return cloneBlocks(blocks), nil
		}
	}
	if s.client == nil {
		return nil, upstream(op, nil)
	}

	loc := weekStart.Location()
	weekEnd := weekStart.AddDate(0, 0, 7)
	resp, err := s.client.Generate(ctx, llm.GenerateRequest{
		Task:         llm.TaskInterpretSchedule,
		SystemPrompt: interpretSystemPrompt,
		UserPrompt: fmt.Sprintf("Reference week: %s to %s (%s).\n\nBusy time:\n%s",
			weekStart.Format("Monday 2006-01-02"), weekEnd.AddDate(0, 0, -1).Format("Monday 2006-01-02"), loc, strings.TrimSpace(text)),
	})
	if err != nil {
		return nil, upstream(op, err)
	}

	payload, err := llm.ExtractJSON[blockPayload](resp.Text, nil)
	if err != nil {
		return nil, upstream(op, err)
	}

	blocks := make([]domain.BusyBlock, 0, len(payload.Blocks))
	for i, raw := range payload.Blocks {
		b, err := raw.toBlock(loc)
		if err != nil {
			return nil, invalidOutput(op, "block %d: %v", i, err)
		}
		if b.Start.Before(weekStart) || !b.Start.Before(weekEnd) {
			return nil, invalidOutput(op, "block %d starts %s outside the reference week", i, raw.Start)
		}
		blocks = append(blocks, b)
	}

	if s.cache != nil {
		s.cache.Add(key, cloneBlocks(blocks))
	}
	return blocks, nil
}

func (b blockJSON) toBlock(loc *time.Location) (domain.BusyBlock, error) {
	start, err := parseLocalTime(b.Start, loc)
	if err != nil {
		return domain.BusyBlock{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseLocalTime(b.End, loc)
	if err != nil {
		return domain.BusyBlock{}, fmt.Errorf("end: %w", err)
	}
	if !b.AllDay && !end.After(start) {
		return domain.BusyBlock{}, fmt.Errorf("end %s is not after start %s", b.End, b.Start)
	}
	if b.AllDay && end.Before(start) {
		return domain.BusyBlock{}, fmt.Errorf("end %s is before start %s", b.End, b.Start)
	}
	label := strings.TrimSpace(b.Label)
	if label == "" {
		label = "busy"
	}
	return domain.BusyBlock{Start: start, End: end, Label: label, AllDay: b.AllDay}, nil
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

// parseLocalTime accepts RFC 3339 or a zone-less wall-clock time in loc.
func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cloneBlocks(in []domain.BusyBlock) []domain.BusyBlock {
	if in == nil {
		return nil
	}
	return append([]domain.BusyBlock(nil), in...)
}
