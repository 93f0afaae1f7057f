package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/billbook/internal/record"
)

// Scenario defines a scripted sync run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// User is the account the engine syncs for. Defaults to "user-1".
	User string `yaml:"user,omitempty"`

	// IDs are handed out, in order, to records saved without an id.
	IDs []string `yaml:"ids,omitempty"`

	// Seed holds the backend rows per collection before the first step,
	// in backend column names.
	Seed map[string][]map[string]any `yaml:"seed,omitempty"`

	// Steps run in order against a single engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation against the engine or the backend.
type Step struct {
	Op         string         `yaml:"op"`
	Collection string         `yaml:"collection,omitempty"`
	ID         string         `yaml:"id,omitempty"`
	Record     map[string]any `yaml:"record,omitempty"`

	// Action is the push kind for patch steps: insert, update or delete.
	Action string `yaml:"action,omitempty"`

	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect checks the outcome of a single step. Unset fields are not
// checked.
type StepExpect struct {
	Queued   *bool    `yaml:"queued,omitempty"`
	Replayed *int     `yaml:"replayed,omitempty"`
	Dropped  *int     `yaml:"dropped,omitempty"`
	Pending  *int     `yaml:"pending,omitempty"`
	Failed   []string `yaml:"failed,omitempty"`

	// Error is a substring the step's error must contain. A step without
	// it must succeed.
	Error string `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpLoad         = "load"
	OpRestart      = "restart"
	OpSave         = "save"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpOffline      = "offline"
	OpOnline       = "online"
	OpFailFetch    = "fail_fetch"
	OpRestoreFetch = "restore_fetch"
	OpRemoteDelete = "remote_delete"
	OpPatch        = "patch"
)

// Assertion validates the final projection, outbox or backend.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Collection string `yaml:"collection,omitempty"`

	// ID selects one record (state, remote).
	ID string `yaml:"id,omitempty"`

	// Expect is a subset match against the selected record.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts that no record with ID exists.
	Absent bool `yaml:"absent,omitempty"`

	// Count is the expected number of records (state_count, remote_count,
	// outbox_count).
	Count int `yaml:"count,omitempty"`

	// IDs is the expected id order (state_order).
	IDs []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertState       = "state"
	AssertStateCount  = "state_count"
	AssertStateOrder  = "state_order"
	AssertOutboxCount = "outbox_count"
	AssertRemote      = "remote"
	AssertRemoteCount = "remote_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so "assertion:" does not silently skip checks.
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

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
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

	for name := range s.Seed {
		if _, ok := record.ParseCollection(name); !ok {
			return fmt.Errorf("seed: unknown collection %q", name)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	needsCollection := false
	needsID := false

	switch st.Op {
	case OpLoad, OpRestart, OpOffline, OpOnline:
	case OpSave:
		needsCollection = true
	case OpUpdate, OpDelete, OpRemoteDelete:
		needsCollection, needsID = true, true
	case OpFailFetch, OpRestoreFetch:
		needsCollection = true
	case OpPatch:
		needsCollection, needsID = true, true
		if !record.Action(st.Action).Valid() {
			return fmt.Errorf("steps[%d]: patch action must be insert, update or delete, got %q", index, st.Action)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if needsCollection {
		if _, ok := record.ParseCollection(st.Collection); !ok {
			return fmt.Errorf("steps[%d]: unknown collection %q for %s", index, st.Collection, st.Op)
		}
	}
	if needsID && st.ID == "" {
		return fmt.Errorf("steps[%d]: id is required for %s", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState, AssertRemote:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
		if a.Absent && len(a.Expect) > 0 {
			return fmt.Errorf("assertions[%d]: absent and expect are exclusive", index)
		}
	case AssertStateCount, AssertRemoteCount, AssertOutboxCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStateOrder:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids list is required for state_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Type != AssertOutboxCount {
		if _, ok := record.ParseCollection(a.Collection); !ok {
			return fmt.Errorf("assertions[%d]: unknown collection %q for %s", index, a.Collection, a.Type)
		}
	}
	return nil
}
