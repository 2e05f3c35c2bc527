package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID       = "run_id"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyCrate       = "crate"
	KeyVersion     = "crate_version"
	KeyPath        = "path"
	KeyTool        = "tool"
	KeyOutcome     = "outcome"
	KeyFingerprint = "fingerprint"
	KeyReason      = "reason"
	KeyFiles       = "files"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Crate(name string) slog.Attr     { return slog.String(KeyCrate, name) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Tool(name string) slog.Attr      { return slog.String(KeyTool, name) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Fingerprint(fp string) slog.Attr { return slog.String(KeyFingerprint, fp) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Files(n int) slog.Attr           { return slog.Int(KeyFiles, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
