// Package errors provides the classified error primitives used across pacgen.
//
// Every failure that can abort a generation run is a ClassifiedError carrying a
// category (which maps to a process exit code), a severity, and structured
// context such as the failing stage and the artifact path that was expected.
//
// Key features:
//   - ErrorCategory: config, input_not_found, tool, contract, state_corruption, ...
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing diagnostics
//
// Example usage:
//
//	err := errors.ToolError("svd2rust failed").
//		WithContext("stage", "schema-to-source").
//		WithContext("tool", "svd2rust").
//		WithCause(runErr).
//		Build()
package errors
