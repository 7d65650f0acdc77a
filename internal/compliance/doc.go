// Package compliance records whether managed devices comply with their
// assigned policy, which policy features caused non-compliance, and how many
// monitoring attempts have failed since the last success.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                       Compliance Monitor                         │
//	│                        (monitor.go)                              │
//	│  ReportViolations ──▶ Ledger ──▶ ViolationStore ──▶ AttemptTracker│
//	│  ReportCompliant  ──▶ Ledger ─────────────────────▶ AttemptTracker│
//	└─────────────────────────────────────────────────────────────────┘
//	        │                  │                 │
//	        ▼                  ▼                 ▼
//	 compliance_records  compliance_features  compliance_attempts
//	                                          (or Redis hash)
//
// # Ledger semantics
//
// Every non-compliance report appends a new record. The current verdict for a
// (device, policy) pair is the record with the highest id. Records start
// NON_COMPLIANT and may move to COMPLIANT; they never move back and are never
// deleted.
//
// # Connections
//
// SQL stores take a *database.DB and acquire a dedicated connection for each
// operation, releasing it on every exit path. Failure to acquire one is
// reported as ErrConfiguration.
//
// # Errors
//
// Store errors are *Error values that unwrap to exactly one of ErrPersistence,
// ErrNotFound, ErrConfiguration or ErrInvalidArgument:
//
//	if errors.Is(err, compliance.ErrNotFound) {
//	    // device has never been evaluated
//	}
package compliance
