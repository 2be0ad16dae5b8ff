package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftguard/internal/model"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace("login", map[string]any{"username": "boss"}, 1)
	r.AddCompletionTrace("login", CaseSuccess, map[string]any{"dirty": true}, 2)
	r.AddInvocationTrace("toggle", map[string]any{"worker": "w-01", "reason": "Lunch"}, 3)
	r.AddCompletionTrace("toggle", CaseSuccess, nil, 4)
	r.AddInvocationTrace("toggle", map[string]any{"worker": "w-02"}, 5)
	r.AddCompletionTrace("toggle", CaseSuccess, nil, 6)
	return r.Trace
}

func sampleContext() *AssertionContext {
	local := model.DefaultDocument(1_000_000)
	local.Logs = []model.AbsenceLog{
		{ID: "log-1", WorkerID: "w-01", Duration: 930, Reason: model.ReasonLunch},
		{ID: "log-2", WorkerID: "w-01", Duration: 12, Reason: model.ReasonBreak},
	}
	remote := model.DefaultDocument(1_000_000)
	remote.BridgeActive = false
	return &AssertionContext{Local: local, Remote: &remote}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "toggle", Args: map[string]any{"worker": "w-01"}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "login"}))

	err := assertTraceContains(trace, Assertion{Action: "toggle", Args: map[string]any{"worker": "w-09"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"login", "toggle"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"toggle", "login"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"login", "logout"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: logout")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "toggle", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "push", Count: 0}))
	assert.Error(t, assertTraceCount(trace, Assertion{Action: "toggle", Count: 1}))
}

func TestAssertFinalState(t *testing.T) {
	actx := sampleContext()

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "matching row",
			assertion: Assertion{Table: "logs", Where: map[string]any{"id": "log-1"}, Expect: map[string]any{"duration": 930, "reason": "Lunch"}},
		},
		{
			name:      "document row",
			assertion: Assertion{Table: "document", Expect: map[string]any{"bridgeActive": true, "lastUpdated": 1_000_000}},
		},
		{
			name:      "remote document",
			assertion: Assertion{Table: "remote.document", Expect: map[string]any{"bridgeActive": false}},
		},
		{
			name:      "absent field expected null",
			assertion: Assertion{Table: "workers", Where: map[string]any{"id": "w-01"}, Expect: map[string]any{"lastAbsenceStart": nil}},
		},
		{
			name:      "value mismatch",
			assertion: Assertion{Table: "logs", Where: map[string]any{"id": "log-1"}, Expect: map[string]any{"duration": 931}},
			wantErr:   `field "duration" = 931`,
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Table: "logs", Where: map[string]any{"workerId": "w-01"}, Expect: map[string]any{"duration": 930}},
			wantErr:   "ambiguous",
		},
		{
			name:      "no row",
			assertion: Assertion{Table: "workers", Where: map[string]any{"id": "w-99"}, Expect: map[string]any{"status": "Active"}},
			wantErr:   "row not found",
		},
		{
			name:      "missing field",
			assertion: Assertion{Table: "workers", Where: map[string]any{"id": "w-01"}, Expect: map[string]any{"shift": "night"}},
			wantErr:   `field "shift" to exist`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(actx, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertFinalState_NoRemote(t *testing.T) {
	actx := &AssertionContext{Local: model.DefaultDocument(1)}

	err := assertFinalState(actx, Assertion{Table: "remote.workers", Expect: map[string]any{"id": "w-01"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote has no record")
}

func TestAssertRowCount(t *testing.T) {
	actx := sampleContext()

	assert.NoError(t, assertRowCount(actx, Assertion{Table: "logs", Count: 2}))
	assert.NoError(t, assertRowCount(actx, Assertion{Table: "logs", Where: map[string]any{"reason": "Break"}, Count: 1}))
	assert.NoError(t, assertRowCount(actx, Assertion{Table: "remote.workers", Count: 66}))
	assert.NoError(t, assertRowCount(actx, Assertion{Table: "users", Count: 0}))
	assert.Error(t, assertRowCount(actx, Assertion{Table: "login_logs", Count: 1}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Pass: true, Trace: sampleTrace()}
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Action: "toggle", Count: 2},
		{Type: AssertTraceCount, Action: "toggle", Count: 5},
		{Type: AssertRowCount, Table: "logs", Count: 2},
		{Type: "eventually"},
	}, sampleContext())

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "5 occurrences of toggle")
	assert.Contains(t, errs[1], "unknown assertion type")
}

func TestEvaluateAssertions_StateNeedsContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRowCount, Table: "logs"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires state context")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(float64(930), 930))
	assert.True(t, valuesEqual("Lunch", "Lunch"))
	assert.True(t, valuesEqual(map[string]any{"a": float64(1)}, map[string]any{"a": 1}))
	assert.False(t, valuesEqual(true, "true"))
	assert.False(t, valuesEqual(float64(1), 2))
}
