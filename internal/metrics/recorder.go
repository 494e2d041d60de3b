package metrics

import "time"

// TaskResultLabel enumerates task result categories for counters.
type TaskResultLabel string

const (
	TaskSucceeded TaskResultLabel = "succeeded"
	TaskSkipped   TaskResultLabel = "skipped"
	TaskFailed    TaskResultLabel = "failed"
	TaskCanceled  TaskResultLabel = "canceled"
)

// BuildOutcomeLabel enumerates final build outcomes.
type BuildOutcomeLabel string

const (
	BuildSuccess  BuildOutcomeLabel = "success"
	BuildFailed   BuildOutcomeLabel = "failed"
	BuildCanceled BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build and task metrics.
type Recorder interface {
	ObserveTaskDuration(kind string, d time.Duration)
	IncTaskResult(kind string, result TaskResultLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	AddOrphansRemoved(n int)
	SetWorkers(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration) {}
func (NoopRecorder) IncTaskResult(string, TaskResultLabel)     {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)        {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)         {}
func (NoopRecorder) AddOrphansRemoved(int)                     {}
func (NoopRecorder) SetWorkers(int)                            {}
