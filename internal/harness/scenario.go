package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stateloop/internal/catalog"
)

// Scenario is one deterministic catalogue run and its expectations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Seed is appended to the log before the program starts.
	Seed []SeedEvent `yaml:"seed,omitempty"`

	// Steps run in order after Init.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated once every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// SeedEvent is a record written straight to the log.
type SeedEvent struct {
	Kind    string         `yaml:"kind"`
	Payload map[string]any `yaml:"payload"`
}

// Step is exactly one of dispatch, settle or fail_op.
type Step struct {
	// Dispatch names an intent message, e.g. "add_item".
	Dispatch string         `yaml:"dispatch,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`

	// Settle runs queued commands until none remain.
	Settle bool `yaml:"settle,omitempty"`

	// FailOp makes the next execution of the named op fail. Code and
	// Message describe the failure; an append failure is raised by the
	// log itself and ignores both.
	FailOp  string `yaml:"fail_op,omitempty"`
	Code    string `yaml:"code,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Assertion checks the outcome of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Path and Expect or Length are used by model.
	Path   string `yaml:"path,omitempty"`
	Expect any    `yaml:"expect,omitempty"`
	Length *int   `yaml:"length,omitempty"`

	// Op and Args are used by commands_contain and commands_count.
	Op   string         `yaml:"op,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`

	// Count is used by commands_count and events_count.
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertModel           = "model"
	AssertCommandsContain = "commands_contain"
	AssertCommandsCount   = "commands_count"
	AssertEventsCount     = "events_count"
)

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so a typo cannot silently disable an assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir in lexical
// order.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, e := range s.Seed {
		if e.Kind == "" {
			return fmt.Errorf("seed[%d]: kind is required", i)
		}
	}

	for i, step := range s.Steps {
		set := 0
		if step.Dispatch != "" {
			set++
		}
		if step.Settle {
			set++
		}
		if step.FailOp != "" {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of dispatch, settle or fail_op is required", i)
		}
		if step.Dispatch != "" {
			args, err := toObject(step.Args)
			if err != nil {
				return fmt.Errorf("steps[%d]: args: %w", i, err)
			}
			if _, err := catalog.DecodeIntent(step.Dispatch, args); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertModel:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for model", index)
		}
		if (a.Expect == nil) == (a.Length == nil) {
			return fmt.Errorf("assertions[%d]: exactly one of expect or length is required for model", index)
		}
	case AssertCommandsContain:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for commands_contain", index)
		}
	case AssertCommandsCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for commands_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for commands_count", index)
		}
	case AssertEventsCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for events_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
