// Package harness runs scenario tests against a complete client: the
// replication engine, the mutation gateway and the account service, wired to
// an in-memory remote store.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: toggle_lunch
//	description: "A lunch break is logged when the worker comes back"
//	identity: { username: sam, role: User }
//	remote:
//	  bridge_active: true
//	flow:
//	  - invoke: toggle
//	    args: { worker: w-01, reason: Lunch }
//	    expect:
//	      case: Success
//	      result: { status: Away }
//	  - invoke: toggle
//	    advance: 930s
//	    args: { worker: w-01 }
//	assertions:
//	  - type: final_state
//	    table: workers
//	    where: { id: w-01 }
//	    expect: { totalAbsenceToday: 930 }
//	  - type: row_count
//	    table: remote.logs
//	    count: 0
//
// Each step's outcome is "Success" or the error code it failed with, such
// as BRIDGE_SUSPENDED, OWNER_ONLY, NOT_FOUND or INVALID_CREDENTIALS.
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace with matching args
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: exactly one row matches and carries the expected values
//   - row_count: exactly N rows match
//
// State tables are document, workers, logs, users and login_logs. The
// "remote." prefix reads the remote record instead of the local one.
//
// # Deterministic Testing
//
// Every scenario runs on a manual clock starting at its epoch, with
// sequential record ids ("id-1", "id-2", ...) and a fresh remote. The
// clock only moves when a step says so, which keeps traces byte-stable for
// golden comparison.
package harness
