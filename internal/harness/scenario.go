package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shiftguard/internal/model"
)

// DefaultEpoch is the scenario start time in unix milliseconds when a
// scenario does not set one.
const DefaultEpoch int64 = 1_000_000

// Scenario drives one client against an in-memory remote store: it seeds
// the remote, boots the client with an initial pull, runs the flow and
// checks the assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Epoch is the manual clock's start in unix milliseconds.
	Epoch int64 `yaml:"epoch,omitempty"`

	// Remote describes the remote record before the client boots.
	Remote RemoteSeed `yaml:"remote,omitempty"`

	// Identity is the account logged in when the flow starts, if any.
	Identity *Identity `yaml:"identity,omitempty"`

	// AccessCodes gate privileged registrations.
	AccessCodes AccessCodes `yaml:"access_codes,omitempty"`

	// Setup runs before the flow. Setup steps must succeed and are not traced.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow is the traced sequence of operations.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final local and remote state.
	Assertions []Assertion `yaml:"assertions"`
}

// RemoteSeed describes the remote record a scenario starts from.
type RemoteSeed struct {
	// Empty leaves the remote without a record.
	Empty bool `yaml:"empty,omitempty"`

	// BridgeActive overrides the default (active) bridge flag.
	BridgeActive *bool `yaml:"bridge_active,omitempty"`

	// Users are registered accounts present in the remote record.
	Users []SeedUser `yaml:"users,omitempty"`
}

// SeedUser is an account placed in the remote record.
type SeedUser struct {
	Username string     `yaml:"username"`
	Password string     `yaml:"password"`
	Role     model.Role `yaml:"role"`
	Team     model.Team `yaml:"team,omitempty"`
}

// Identity is a logged-in account.
type Identity struct {
	Username string     `yaml:"username"`
	Role     model.Role `yaml:"role"`
}

// AccessCodes mirror the configured registration codes.
type AccessCodes struct {
	Owner string `yaml:"owner,omitempty"`
	Admin string `yaml:"admin,omitempty"`
}

// ActionStep is an untraced setup operation.
type ActionStep struct {
	Op      string         `yaml:"op"`
	Args    map[string]any `yaml:"args,omitempty"`
	Advance string         `yaml:"advance,omitempty"`
}

// FlowStep is a traced operation with an optional expectation.
type FlowStep struct {
	// Invoke names the operation, e.g. "toggle" or "push".
	Invoke string `yaml:"invoke"`

	// Args are the operation's arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Advance moves the clock forward before the operation, e.g. "930s".
	Advance string `yaml:"advance,omitempty"`

	// Expect checks the outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is "Success" or an error code such as "BRIDGE_SUSPENDED".
	Case string `yaml:"case"`

	// Result is a subset of the completion's result fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the operation name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Table is a state table; prefix it with "remote." to read the remote
	// record instead of the local one (final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where selects rows by exact field match (final_state, row_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected field values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences or rows.
	Count int `yaml:"count,omitempty"`

	// Actions is the expected operation order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
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
	if scenario.Epoch == 0 {
		scenario.Epoch = DefaultEpoch
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Identity != nil && !s.Identity.Role.Valid() {
		return fmt.Errorf("identity: unknown role %q", s.Identity.Role)
	}
	for i, u := range s.Remote.Users {
		if u.Username == "" || !u.Role.Valid() {
			return fmt.Errorf("remote.users[%d]: username and a valid role are required", i)
		}
	}

	for i, step := range s.Setup {
		if _, ok := operations[step.Op]; !ok {
			return fmt.Errorf("setup[%d]: unknown op %q", i, step.Op)
		}
		if err := validateAdvance(step.Advance); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if _, ok := operations[step.Invoke]; !ok {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Invoke)
		}
		if err := validateAdvance(step.Advance); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Case == "" {
			return fmt.Errorf("flow[%d].expect: case is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAdvance(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("advance: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("advance must not be negative")
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if _, _, err := splitTable(a.Table); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if _, _, err := splitTable(a.Table); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
