// Package audit keeps the audit trail of compliance transitions and
// operator actions in the audit_logs table.
//
// Entries are written by Recorder, a compliance.EventHandler registered on
// the Monitor, and read back through Repository.List by the API and CLI.
package audit
