package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/shiftguard/internal/account"
	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/remote"
	"github.com/roach88/shiftguard/internal/replication"
	"github.com/roach88/shiftguard/internal/testutil"
)

// CaseSuccess is the outcome of an operation that returned no error.
const CaseSuccess = "Success"

// Harness holds one scenario's client and its remote.
type Harness struct {
	remote   *remote.Memory
	engine   *replication.Engine
	gateway  *attendance.Gateway
	accounts *account.Service
	clock    *testutil.ManualClock
	logger   *slog.Logger
	seq      int64
}

// Run executes a scenario against a fresh in-memory remote.
//
// Execution flow:
//  1. Seed the remote as described by the scenario
//  2. Boot the client with an initial pull
//  3. Apply the starting identity and run setup steps
//  4. Run flow steps, checking expect clauses
//  5. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}

	for i, step := range scenario.Setup {
		if err := h.advance(step.Advance); err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		if _, err := h.invoke(ctx, step.Op, step.Args); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Op, err)
		}
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Local: h.engine.Snapshot()}
	if doc, ok := h.remote.Document(); ok {
		actx.Remote = &doc
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, s *Scenario) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewManualClockMillis(s.Epoch)

	mem := remote.NewMemory()
	if !s.Remote.Empty {
		if err := mem.Seed(seedDocument(s)); err != nil {
			return nil, fmt.Errorf("seed remote: %w", err)
		}
	}

	engine := replication.New(mem,
		replication.WithClock(clock),
		replication.WithLogger(logger),
	)
	if err := engine.Pull(ctx, true); err != nil {
		return nil, fmt.Errorf("initial pull: %w", err)
	}

	gw := attendance.NewGateway(engine,
		attendance.WithIDGenerator(testutil.NewSequenceGenerator("")),
		attendance.WithLogger(logger),
	)
	accounts := account.New(gw, account.AccessCodes{
		Owner: s.AccessCodes.Owner,
		Admin: s.AccessCodes.Admin,
	}, logger)

	if s.Identity != nil {
		engine.SetIdentity(replication.Identity{Username: s.Identity.Username, Role: s.Identity.Role})
	}

	return &Harness{
		remote:   mem,
		engine:   engine,
		gateway:  gw,
		accounts: accounts,
		clock:    clock,
		logger:   logger,
	}, nil
}

func seedDocument(s *Scenario) model.Document {
	doc := model.DefaultDocument(s.Epoch)
	if s.Remote.BridgeActive != nil {
		doc.BridgeActive = *s.Remote.BridgeActive
	}
	for i, u := range s.Remote.Users {
		doc.RegisteredUsers = append(doc.RegisteredUsers, model.User{
			ID:       fmt.Sprintf("u-seed-%d", i+1),
			Username: u.Username,
			Email:    u.Username + "@example.com",
			Password: u.Password,
			Role:     u.Role,
			Team:     u.Team,
		})
	}
	return doc
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

func (h *Harness) advance(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	h.clock.Advance(d)
	return nil
}

// executeFlow runs each step, traces it and checks its expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		if err := h.advance(step.Advance); err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		result.AddInvocationTrace(step.Invoke, step.Args, h.next())

		out, err := h.invoke(ctx, step.Invoke, step.Args)
		outcome, known := outcomeCase(err)
		if !known {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
		if err != nil {
			out = nil
		}
		result.AddCompletionTrace(step.Invoke, outcome, out, h.next())

		expected := CaseSuccess
		if step.Expect != nil {
			expected = step.Expect.Case
		}
		if outcome != expected {
			msg := fmt.Sprintf("flow[%d] %s: expected case %s, got %s", i, step.Invoke, expected, outcome)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
			continue
		}
		if step.Expect != nil && !matchArgs(out, step.Expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", i, step.Invoke, step.Expect.Result, out))
		}

		h.logger.Info("flow step completed", "step", i, "op", step.Invoke, "case", outcome)
	}
	return nil
}

// outcomeCase names the outcome of an operation. Unknown errors are not
// outcomes: they abort the scenario.
func outcomeCase(err error) (string, bool) {
	if err == nil {
		return CaseSuccess, true
	}
	var pe *attendance.PolicyError
	if errors.As(err, &pe) {
		return string(pe.Code), true
	}
	var ve *attendance.ValidationError
	if errors.As(err, &ve) {
		return string(ve.Code), true
	}
	switch {
	case errors.Is(err, account.ErrNotReady):
		return "NOT_READY", true
	case errors.Is(err, account.ErrNoUsers):
		return "NO_USERS", true
	case errors.Is(err, account.ErrInvalidCredentials):
		return "INVALID_CREDENTIALS", true
	case errors.Is(err, account.ErrRecoveryOwnerOnly):
		return "RECOVERY_OWNER_ONLY", true
	case errors.Is(err, errRemoteFailure):
		return "REMOTE_FAILURE", true
	}
	return "", false
}

func (h *Harness) invoke(ctx context.Context, op string, args map[string]any) (map[string]any, error) {
	fn, ok := operations[op]
	if !ok {
		return nil, fmt.Errorf("unknown op %q", op)
	}
	out, err := fn(ctx, h, opArgs(args))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	out["dirty"] = h.engine.Status().Dirty
	return out, nil
}
