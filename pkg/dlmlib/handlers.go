package dlmlib

import "log"

type (
	// StateChangeHandlerFunc is called on every task state transition.
	StateChangeHandlerFunc func(taskId string, state TaskState)
	// ProgressHandlerFunc is called by the monitor once per second with
	// the task's downloaded bytes, expected total and current speed.
	ProgressHandlerFunc func(taskId string, downloaded, total, speed int64)
	// SpawnSegmentHandlerFunc is called whenever a worker is started for
	// a segment, including rebalance-spawned ones.
	SpawnSegmentHandlerFunc func(taskId string, ioff, foff int64)
	// CompleteHandlerFunc is called after finalization with the path of
	// the delivered file (empty for shared-layout partial tasks).
	CompleteHandlerFunc func(taskId, path string)
	// ErrorHandlerFunc is called when a task fails terminally.
	ErrorHandlerFunc func(taskId string, err error)
	// SessionRenewalHandlerFunc is called when a task pauses because its
	// captured session expired and an external collaborator should
	// re-capture it.
	SessionRenewalHandlerFunc func(taskId, url string)
)

// Handlers carries the engine's outward notifications. Nil fields are
// replaced with no-ops.
type Handlers struct {
	StateChangeHandler    StateChangeHandlerFunc
	ProgressHandler       ProgressHandlerFunc
	SpawnSegmentHandler   SpawnSegmentHandlerFunc
	CompleteHandler       CompleteHandlerFunc
	ErrorHandler          ErrorHandlerFunc
	SessionRenewalHandler SessionRenewalHandlerFunc
}

func (h *Handlers) setDefault(l *log.Logger) {
	if h.StateChangeHandler == nil {
		h.StateChangeHandler = func(taskId string, state TaskState) {}
	}
	if h.ProgressHandler == nil {
		h.ProgressHandler = func(taskId string, downloaded, total, speed int64) {}
	}
	if h.SpawnSegmentHandler == nil {
		h.SpawnSegmentHandler = func(taskId string, ioff, foff int64) {}
	}
	if h.CompleteHandler == nil {
		h.CompleteHandler = func(taskId, path string) {}
	}
	if h.ErrorHandler == nil {
		h.ErrorHandler = func(taskId string, err error) {
			wlog(l, "task %s: %v", taskId, err)
		}
	}
	if h.SessionRenewalHandler == nil {
		h.SessionRenewalHandler = func(taskId, url string) {}
	}
}
