// Package logging provides a structured, subsystem-tagged logger used across
// mfp's compiler and server components.
//
// Log levels mirror the standard debug/info/warn/error severities. Every
// call is tagged with a subsystem string ("Compiler", "Registry", "Cache",
// "Executor", "Sandbox", "Config", "MCPServer", ...) so operators can filter by
// component. Audit carries a distinct [AUDIT] prefix for security-relevant
// events (AST guard rejections, policy violations) — submitted code and
// credential values must never be passed to it; only the violation kind and
// offending symbol are logged, per the AST guard's non-leakage contract.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stdout)
//	logging.Info("Compiler", "compiled server %s (%d endpoints)", name, count)
//	logging.Audit(logging.AuditEvent{Action: "ast_guard", Outcome: "failure", Error: "blocked import: os"})
package logging
