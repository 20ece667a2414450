package llm

// TaskType identifies the kind of model call being made.
type TaskType string

const (
	TaskInterpretSchedule TaskType = "interpret_schedule"
	TaskReviewPlan        TaskType = "review_plan"
	TaskParseReview       TaskType = "parse_review"
)

// TaskConfig holds per-task generation parameters.
type TaskConfig struct {
	Temperature float64
	MaxTokens   int
	TimeoutMs   int // overrides global if > 0
}

// LLMConfig holds all configuration for the model boundary.
type LLMConfig struct {
	Enabled    bool
	LogCalls   bool
	Endpoint   string
	Model      string
	TimeoutMs  int
	MaxRetries int

	// RatePerMinute caps outgoing calls; 0 disables the limiter.
	RatePerMinute float64
	Burst         int

	// CacheSize and CacheTTLSec bound the schedule interpretation cache.
	CacheSize   int
	CacheTTLSec int

	Tasks map[TaskType]TaskConfig
}

// DefaultConfig returns an LLMConfig with the model disabled.
func DefaultConfig() LLMConfig {
	return LLMConfig{
		Enabled:       false,
		LogCalls:      false,
		Endpoint:      "http://localhost:11434",
		Model:         "llama3.2",
		TimeoutMs:     10000,
		MaxRetries:    1,
		RatePerMinute: 30,
		Burst:         3,
		CacheSize:     128,
		CacheTTLSec:   3600,
		Tasks: map[TaskType]TaskConfig{
			TaskInterpretSchedule: {Temperature: 0.1, MaxTokens: 1024, TimeoutMs: 10000},
			TaskReviewPlan:        {Temperature: 0.2, MaxTokens: 1024, TimeoutMs: 15000},
			TaskParseReview:       {Temperature: 0.1, MaxTokens: 1024, TimeoutMs: 10000},
		},
	}
}

// TaskTimeout returns the effective timeout for a given task type.
// Uses the task-specific timeout if set, otherwise the global timeout.
func (c LLMConfig) TaskTimeout(task TaskType) int {
	if tc, ok := c.Tasks[task]; ok && tc.TimeoutMs > 0 {
		return tc.TimeoutMs
	}
	return c.TimeoutMs
}

// WithTaskTimeout returns a copy of c with one task's timeout overridden.
// Non-positive values are ignored.
func (c LLMConfig) WithTaskTimeout(task TaskType, ms int) LLMConfig {
	if ms <= 0 {
		return c
	}
	tasks := make(map[TaskType]TaskConfig, len(c.Tasks))
	for k, v := range c.Tasks {
		tasks[k] = v
	}
	tc := tasks[task]
	tc.TimeoutMs = ms
	tasks[task] = tc
	c.Tasks = tasks
	return c
}
