package dlmlib

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// TaskState is the lifecycle state of a download task.
type TaskState string

const (
	StateQueued       TaskState = "QUEUED"
	StateInitializing TaskState = "INITIALIZING"
	StateWaiting      TaskState = "WAITING"
	StateDownloading  TaskState = "DOWNLOADING"
	StateFinalizing   TaskState = "FINALIZING"
	StatePaused       TaskState = "PAUSED"
	StateCompleted    TaskState = "COMPLETED"
	StateFailed       TaskState = "FAILED"
	StateCancelled    TaskState = "CANCELLED"
)

// Terminal reports whether the state never changes spontaneously.
func (s TaskState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Integrity is the verification status of a task's bytes.
type Integrity string

const (
	IntegrityPending  Integrity = "pending"
	IntegrityVerified Integrity = "verified"
	IntegrityCorrupt  Integrity = "corrupt"
)

// ResumeState classifies whether a task's on-disk progress can be
// trusted for aggressive rebalancing.
type ResumeState string

const (
	ResumeStable   ResumeState = "STABLE"
	ResumeUnstable ResumeState = "UNSTABLE"
)

// Task is one user-facing download request and its engine state. The
// task owns its segments; workers hold a transient borrowed reference
// and poll the cancellation flag between chunks.
type Task struct {
	Id              string     `json:"id"`
	Url             string     `json:"url"`
	FileName        string     `json:"filename"`
	TotalSize       int64      `json:"total_size"`
	Resumable       bool       `json:"resumable"`
	MaxConnections  int        `json:"max_connections"`
	Segments        []*Segment `json:"segments"`
	State           TaskState  `json:"state"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Speed           int64      `json:"speed"`
	Integrity       Integrity  `json:"integrity"`
	ResumeState     ResumeState `json:"resume_state"`
	Partial         bool       `json:"partial,omitempty"`
	// SharedId links partial tasks participating in a split workflow
	// to one shared workspace.
	SharedId        string   `json:"task_id,omitempty"`
	Folder          string   `json:"folder,omitempty"`
	CaptureId       string   `json:"capture_id,omitempty"`
	// Source records where the task came from (cli, capture, import).
	Source    string `json:"source,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	ProbedViaStream bool     `json:"probed_via_stream,omitempty"`
	Session         *Session `json:"session,omitempty"`
	// OutputPath overrides the default downloads directory.
	OutputPath string `json:"output_path,omitempty"`
	// Ephemeral tasks are never persisted.
	Ephemeral bool `json:"-"`

	mu sync.RWMutex
	// cancel is the per-task cancellation flag all workers poll.
	cancel atomic.Bool
	// deleted marks a cancelled-for-removal task whose files the
	// monitor must clean up.
	deleted atomic.Bool
	// finalizing is the single-writer gate against double finalize.
	finalizing atomic.Bool
}

// NewTask creates a task in the QUEUED state.
func NewTask(url string) *Task {
	now := time.Now()
	return &Task{
		Id:             NewTaskId(),
		Url:            url,
		State:          StateQueued,
		MaxConnections: 1,
		Integrity:      IntegrityPending,
		ResumeState:    ResumeStable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SetState transitions the task, refusing to leave terminal states
// except through Retry (which goes through ResetForRetry).
func (t *Task) SetState(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.State.Terminal() && !s.Terminal() {
		return
	}
	t.State = s
	t.UpdatedAt = time.Now()
}

// GetState returns the current lifecycle state.
func (t *Task) GetState() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.State
}

// forceState is used by retry and shutdown paths that are allowed to
// leave terminal states.
func (t *Task) forceState(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = s
	t.UpdatedAt = time.Now()
}

// Cancel sets the cancellation flag observed by all workers.
func (t *Task) Cancel() { t.cancel.Store(true) }

// Cancelled reports whether cancellation has been requested.
func (t *Task) Cancelled() bool { return t.cancel.Load() }

// ClearCancel rearms the task for a fresh start.
func (t *Task) ClearCancel() { t.cancel.Store(false) }

// MarkDeleted flags the task for file cleanup after cancellation.
func (t *Task) MarkDeleted() { t.deleted.Store(true) }

// Deleted reports whether file cleanup was requested.
func (t *Task) Deleted() bool { return t.deleted.Load() }

// BeginFinalize is the compare-and-swap gate that admits exactly one
// caller into finalization.
func (t *Task) BeginFinalize() bool {
	return t.finalizing.CompareAndSwap(false, true)
}

// EndFinalize rearms the gate, used when finalization failed and the
// task may be retried.
func (t *Task) EndFinalize() { t.finalizing.Store(false) }

// segs returns a copy of the segment list safe to iterate while the
// rebalancer appends.
func (t *Task) segs() []*Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Segment, len(t.Segments))
	copy(out, t.Segments)
	return out
}

// Downloaded sums downloaded bytes across all segments.
func (t *Task) Downloaded() int64 {
	var n int64
	for _, s := range t.segs() {
		n += s.Read()
	}
	return n
}

// ExpectedBytes sums the declared segment sizes. For a full task with
// known size this equals TotalSize; for partial tasks it is the size of
// the declared subset.
func (t *Task) ExpectedBytes() int64 {
	var n int64
	for _, s := range t.segs() {
		n += s.ExpectedSize()
	}
	return n
}

// Progress returns completion in percent, 0 when the size is unknown.
func (t *Task) Progress() int {
	exp := t.ExpectedBytes()
	if exp <= 0 {
		return 0
	}
	return int(t.Downloaded() * 100 / exp)
}

// SegmentsComplete reports whether every segment has all its bytes.
func (t *Task) SegmentsComplete() bool {
	segs := t.segs()
	if len(segs) == 0 {
		return false
	}
	for _, s := range segs {
		if !s.Complete() {
			return false
		}
	}
	return true
}

// IncompleteSegments returns the segments that still need bytes.
func (t *Task) IncompleteSegments() []*Segment {
	var out []*Segment
	for _, s := range t.segs() {
		if !s.Complete() {
			out = append(out, s)
		}
	}
	return out
}

// AppendSegment adds a rebalance-spawned segment, keeping the list
// ordered by start offset.
func (t *Task) AppendSegment(s *Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Segments = append(t.Segments, s)
	sort.Slice(t.Segments, func(i, j int) bool {
		return t.Segments[i].Start < t.Segments[j].Start
	})
}

// Fail records the error message and moves the task to FAILED.
func (t *Task) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ErrorMessage = err.Error()
	t.State = StateFailed
	t.UpdatedAt = time.Now()
}

// CompleteTask marks the task finished with verified integrity.
func (t *Task) CompleteTask() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.State = StateCompleted
	t.Integrity = IntegrityVerified
	t.ResumeState = ResumeStable
	t.ErrorMessage = ""
	t.UpdatedAt = time.Now()
}

// ResetForRetry re-queues a terminal or paused task. Failed tasks lose
// their progress accounting; completed tasks drop the prior size so the
// next start re-probes.
func (t *Task) ResetForRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.State {
	case StateFailed:
		for _, s := range t.Segments {
			s.reset()
		}
	case StateCompleted:
		t.TotalSize = 0
		t.Segments = nil
		t.Integrity = IntegrityPending
	}
	t.ErrorMessage = ""
	t.State = StateQueued
	t.ResumeState = ResumeStable
	t.UpdatedAt = time.Now()
	t.cancel.Store(false)
	t.deleted.Store(false)
	t.finalizing.Store(false)
}

// Validate checks the task-level invariants: segment-local bounds,
// range disjointness, full coverage for non-partial sized tasks and the
// single-segment rule for non-resumable tasks.
func (t *Task) Validate() error {
	for _, s := range t.Segments {
		if err := s.validate(); err != nil {
			return err
		}
	}
	segs := make([]*Segment, len(t.Segments))
	copy(segs, t.Segments)
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	for i := 1; i < len(segs); i++ {
		if segs[i].Start <= segs[i-1].FinalOffset() {
			return fmt.Errorf("%w: segments [%d,%d] and [%d,%d] overlap",
				ErrInvariantViolated,
				segs[i-1].Start, segs[i-1].FinalOffset(),
				segs[i].Start, segs[i].FinalOffset())
		}
	}
	if !t.Partial && t.TotalSize > 0 && len(segs) > 0 {
		if segs[0].Start != 0 {
			return fmt.Errorf("%w: first segment starts at %d", ErrInvariantViolated, segs[0].Start)
		}
		for i := 1; i < len(segs); i++ {
			if segs[i].Start != segs[i-1].FinalOffset()+1 {
				return fmt.Errorf("%w: gap before offset %d", ErrInvariantViolated, segs[i].Start)
			}
		}
		if last := segs[len(segs)-1].FinalOffset(); last != t.TotalSize-1 {
			return fmt.Errorf("%w: segments end at %d, want %d", ErrInvariantViolated, last, t.TotalSize-1)
		}
	}
	if !t.Resumable {
		if len(segs) > 1 {
			return fmt.Errorf("%w: non-resumable task has %d segments", ErrInvariantViolated, len(segs))
		}
		if len(segs) == 1 && segs[0].Start != 0 {
			return fmt.Errorf("%w: non-resumable segment starts at %d", ErrInvariantViolated, segs[0].Start)
		}
	}
	return nil
}

// Snapshot returns a deep copy with segment values settled, safe to
// hand to the repository or sidecar writer while workers keep running.
func (t *Task) Snapshot() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := &Task{
		Id:              t.Id,
		Url:             t.Url,
		FileName:        t.FileName,
		TotalSize:       t.TotalSize,
		Resumable:       t.Resumable,
		MaxConnections:  t.MaxConnections,
		State:           t.State,
		ErrorMessage:    t.ErrorMessage,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Speed:           t.Speed,
		Integrity:       t.Integrity,
		ResumeState:     t.ResumeState,
		Partial:         t.Partial,
		SharedId:        t.SharedId,
		Folder:          t.Folder,
		CaptureId:       t.CaptureId,
		Source:          t.Source,
		MediaType:       t.MediaType,
		ProbedViaStream: t.ProbedViaStream,
		Session:         t.Session.Clone(),
		OutputPath:      t.OutputPath,
		Ephemeral:       t.Ephemeral,
	}
	cp.Segments = make([]*Segment, len(t.Segments))
	for i, s := range t.Segments {
		snap := s.snapshot()
		cp.Segments[i] = &snap
	}
	return cp
}

// storeSegmentHashes records a completed segment's edge hashes under
// the task lock so Snapshot never reads them mid-write.
func (t *Task) storeSegmentHashes(s *Segment, start, end string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.StartHash = start
	s.EndHash = end
}

// setTotalSize records the size settled by a stream worker.
func (t *Task) setTotalSize(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TotalSize = n
	t.UpdatedAt = time.Now()
}

// SetSpeed records the monitor's latest bytes/sec sample.
func (t *Task) SetSpeed(bps int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Speed = bps
	t.UpdatedAt = time.Now()
}

// SetSession swaps in a renewed capture session.
func (t *Task) SetSession(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Session = s
	t.UpdatedAt = time.Now()
}

// MarkUnstable flags the task so the rebalancer keeps its hands off.
// The flag clears only through retry or clean completion.
func (t *Task) MarkUnstable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ResumeState = ResumeUnstable
}

// IsStable reports whether rebalancing is allowed.
func (t *Task) IsStable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ResumeState == ResumeStable
}
