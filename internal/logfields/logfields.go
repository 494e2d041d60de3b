package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyTaskID     = "task_id"
	KeyTaskKind   = "task_kind"
	KeyTaskState  = "task_state"
	KeyGroup      = "group"
	KeyPage       = "page"
	KeyPath       = "path"
	KeyReason     = "reason"
	KeyDurationMS = "duration_ms"
	KeyWorkers    = "workers"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func TaskID(id string) slog.Attr      { return slog.String(KeyTaskID, id) }
func TaskKind(k string) slog.Attr     { return slog.String(KeyTaskKind, k) }
func TaskState(s string) slog.Attr    { return slog.String(KeyTaskState, s) }
func Group(g string) slog.Attr        { return slog.String(KeyGroup, g) }
func Page(name string) slog.Attr      { return slog.String(KeyPage, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Workers(n int) slog.Attr         { return slog.Int(KeyWorkers, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
