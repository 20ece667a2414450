package importer

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ImportSchema is the top-level YAML structure of a task import file.
type ImportSchema struct {
	Timezone string          `yaml:"timezone,omitempty"`
	Defaults *DefaultsImport `yaml:"defaults,omitempty"`
	Tasks    []TaskImport    `yaml:"tasks"`
	Busy     []BusyImport    `yaml:"busy,omitempty"`
}

// DefaultsImport holds values that cascade to every task that omits them.
type DefaultsImport struct {
	Priority    string   `yaml:"priority,omitempty"`
	CanSplit    *bool    `yaml:"can_split,omitempty"`
	MinSession  string   `yaml:"min_session,omitempty"`
	PreferredAt string   `yaml:"preferred_time,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// TaskImport defines one task. Ref is local to the file and is what
// depends_on entries point at; a depends_on entry that is not a ref is
// taken as the id of an existing task.
type TaskImport struct {
	Ref           string   `yaml:"ref"`
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description,omitempty"`
	Priority      string   `yaml:"priority,omitempty"`
	Estimate      string   `yaml:"estimate,omitempty"` // Go duration, e.g. 90m or 1.5h
	EstimatedMin  *int     `yaml:"estimated_min,omitempty"`
	Deadline      string   `yaml:"deadline,omitempty"`
	PreferredAt   string   `yaml:"preferred_time,omitempty"`
	DeepFocus     *bool    `yaml:"deep_focus,omitempty"`
	CanSplit      *bool    `yaml:"can_split,omitempty"`
	MinSession    string   `yaml:"min_session,omitempty"`
	MinSessionMin *int     `yaml:"min_session_min,omitempty"`
	Tags          []string `yaml:"tags,omitempty"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
}

// BusyImport is one busy block. All-day blocks may give dates only.
type BusyImport struct {
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Label  string `yaml:"label,omitempty"`
	AllDay bool   `yaml:"all_day,omitempty"`
}

// LoadImportSchema reads and parses an import file.
func LoadImportSchema(path string) (*ImportSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseImportSchema(data)
}

// ParseImportSchema decodes YAML, rejecting unknown keys.
func ParseImportSchema(data []byte) (*ImportSchema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var schema ImportSchema
	if err := dec.Decode(&schema); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	return &schema, nil
}
