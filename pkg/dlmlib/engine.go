package dlmlib

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Repository is the durable projection of tasks the engine schedules
// over. The store is the single source of truth on restart; the
// workspace is authoritative for bytes.
type Repository interface {
	SaveTask(t *Task) error
	GetTask(id string) (*Task, error)
	GetTasks() ([]*Task, error)
	DeleteTask(id string) error
}

// AddTaskOpts carries the optional attributes of a new download.
type AddTaskOpts struct {
	FileName       string
	Folder         string
	OutputPath     string
	MaxConnections int
	Session        *Session
	Source         string
	CaptureId      string
	Ephemeral      bool
}

// EngineOpts configures a new Engine.
type EngineOpts struct {
	Repo     Repository
	Client   *Client
	Handlers *Handlers
	Logger   *log.Logger
	// MaxParallel bounds |active| + |discovery|. Zero means the default
	// of one: strictly sequential downloads.
	MaxParallel int
	Retry       *RetryConfig
}

// taskRuntime is the transient per-active-task state: the shared file
// handle workers write through, the worker waitgroup and the first
// terminal error any worker hit.
type taskRuntime struct {
	t  *Task
	ws *Workspace
	f  *os.File
	wg sync.WaitGroup

	emu     sync.Mutex
	wErr    error
	authErr error
}

func (rt *taskRuntime) noteErr(err error) {
	rt.emu.Lock()
	defer rt.emu.Unlock()
	if IsAuthExpired(err) {
		if rt.authErr == nil {
			rt.authErr = err
		}
		return
	}
	if rt.wErr == nil {
		rt.wErr = err
	}
}

func (rt *taskRuntime) errs() (wErr, authErr error) {
	rt.emu.Lock()
	defer rt.emu.Unlock()
	return rt.wErr, rt.authErr
}

// Engine owns the task table and the admission scheduler. One mutex
// guards the structural state (task map, active set, discovery set,
// batch queue); it is held only across structural decisions, never
// across I/O.
type Engine struct {
	mu        sync.Mutex
	tasks     map[string]*Task
	active    map[string]*taskRuntime
	discovery map[string]struct{}
	queue     []string
	limit     int
	closed    bool

	repo     Repository
	client   *Client
	handlers *Handlers
	retry    RetryConfig
	l        *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine loads the repository, runs the resume-safety pass over
// every stored task and demotes tasks that were active at crash time
// back to WAITING so the scheduler re-admits them.
func NewEngine(opts *EngineOpts) (*Engine, error) {
	if opts == nil || opts.Repo == nil {
		return nil, errors.New("engine: repository is required")
	}
	limit := opts.MaxParallel
	if limit < 1 {
		limit = DEF_CONCURRENCY
	}
	retry := DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	handlers := opts.Handlers
	if handlers == nil {
		handlers = &Handlers{}
	}
	handlers.setDefault(opts.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		tasks:     make(map[string]*Task),
		active:    make(map[string]*taskRuntime),
		discovery: make(map[string]struct{}),
		limit:     limit,
		repo:      opts.Repo,
		client:    opts.Client,
		handlers:  handlers,
		retry:     retry,
		l:         opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	if e.client == nil {
		e.client = NewClient(nil)
	}

	stored, err := e.repo.GetTasks()
	if err != nil {
		cancel()
		return nil, err
	}
	for _, t := range stored {
		switch t.GetState() {
		case StateDownloading, StateInitializing, StateFinalizing:
			t.forceState(StateWaiting)
		}
		if err := Rollback(t, WorkspaceFor(t)); err != nil {
			wlog(e.l, "task %s: resume check: %v", t.Id, err)
		}
		e.tasks[t.Id] = t
	}
	return e, nil
}

// GetTask returns the live task for an id.
func (e *Engine) GetTask(id string) (*Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// GetTasks returns all live tasks.
func (e *Engine) GetTasks() []*Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, t)
	}
	return out
}

// AddTask registers a new download in QUEUED state and kicks the
// scheduler. Discovery and admission happen asynchronously.
func (e *Engine) AddTask(url string, opts *AddTaskOpts) (*Task, error) {
	if opts == nil {
		opts = &AddTaskOpts{}
	}
	t := NewTask(url)
	t.FileName = SanitizeFilename(opts.FileName)
	t.Folder = opts.Folder
	t.OutputPath = opts.OutputPath
	t.Session = opts.Session
	t.Source = opts.Source
	t.CaptureId = opts.CaptureId
	t.Ephemeral = opts.Ephemeral
	if opts.MaxConnections > 0 {
		t.MaxConnections = opts.MaxConnections
	}

	if err := e.persist(t); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.tasks[t.Id] = t
	e.queue = append(e.queue, t.Id)
	e.mu.Unlock()
	e.handlers.StateChangeHandler(t.Id, StateQueued)
	e.ProcessQueue()
	return t, nil
}

// ImportPartial registers partial tasks bound to a shared workspace
// from a split-workflow manifest. With separate set, each assigned part
// becomes its own task; otherwise one task carries all assigned parts.
func (e *Engine) ImportPartial(m *TaskManifest, parts []int, separate bool, folder string) ([]*Task, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		if len(m.AssignedParts) > 0 {
			parts = m.AssignedParts
		} else {
			for _, pr := range m.PartRanges {
				parts = append(parts, pr.Part)
			}
		}
	}

	ws := SharedWorkspace(m.TaskId)
	if err := ws.Create(); err != nil {
		return nil, err
	}
	if err := ws.WriteManifest(m); err != nil {
		return nil, err
	}
	if err := ws.InitMarkers(m); err != nil {
		return nil, err
	}
	f, err := ws.OpenData(m.TotalSize)
	if err != nil {
		return nil, err
	}
	f.Close()

	newTask := func(assigned []int) (*Task, error) {
		t := NewTask(m.Url)
		t.FileName = SanitizeFilename(m.Filename)
		t.TotalSize = m.TotalSize
		t.Resumable = true
		t.Partial = true
		t.SharedId = m.TaskId
		t.Folder = folder
		t.Source = "import"
		for _, p := range assigned {
			pr, ok := m.Range(p)
			if !ok {
				return nil, fmt.Errorf("%w: part %d not declared", ErrManifestInvalid, p)
			}
			t.AppendSegment(&Segment{Start: pr.Start, End: pr.End, PartNumber: pr.Part})
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if err := e.persist(t); err != nil {
			return nil, err
		}
		return t, nil
	}

	var out []*Task
	if separate {
		for _, p := range parts {
			t, err := newTask([]int{p})
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	} else {
		t, err := newTask(parts)
		if err != nil {
			return nil, err
		}
		out = []*Task{t}
	}

	e.mu.Lock()
	for _, t := range out {
		e.tasks[t.Id] = t
		e.queue = append(e.queue, t.Id)
	}
	e.mu.Unlock()
	e.ProcessQueue()
	return out, nil
}

// StartTask enqueues a queued, waiting or paused task for admission.
func (e *Engine) StartTask(id string) error {
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}
	switch s := t.GetState(); s {
	case StateQueued, StateWaiting, StatePaused:
	case StateDownloading, StateInitializing, StateFinalizing:
		return ErrTaskAlreadyActive
	default:
		return ErrTaskTerminal
	}
	t.ClearCancel()
	t.SetState(StateQueued)
	e.enqueue(id)
	e.ProcessQueue()
	return nil
}

// PauseTask sets the cancellation flag; workers drain to their last
// checkpoint and the task transitions to PAUSED.
func (e *Engine) PauseTask(id string) error {
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	_, isActive := e.active[id]
	e.mu.Unlock()
	if !isActive {
		switch t.GetState() {
		case StateQueued, StateWaiting:
			t.SetState(StatePaused)
			e.handlers.StateChangeHandler(id, StatePaused)
			return e.persist(t)
		}
		return ErrTaskNotActive
	}
	t.Cancel()
	return nil
}

// ResumeTask is StartTask for paused tasks; it exists for symmetry with
// the wire protocol.
func (e *Engine) ResumeTask(id string) error {
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}
	if !t.Resumable && t.Downloaded() > 0 {
		// A fresh stream restarts from zero; that is still allowed.
		wlog(e.l, "task %s: not resumable, restarting from scratch", id)
	}
	return e.StartTask(id)
}

// RenewSession replaces a task's captured session and re-queues it if
// it was paused waiting for renewal.
func (e *Engine) RenewSession(id string, s *Session) error {
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}
	t.SetSession(s)
	if err := e.persist(t); err != nil {
		return err
	}
	if t.GetState() == StatePaused {
		return e.StartTask(id)
	}
	return nil
}

// RetryTask re-queues a failed, completed or paused task.
func (e *Engine) RetryTask(id string) error {
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	_, isActive := e.active[id]
	e.mu.Unlock()
	if isActive {
		return ErrTaskAlreadyActive
	}
	t.ResetForRetry()
	if err := e.persist(t); err != nil {
		return err
	}
	e.handlers.StateChangeHandler(id, StateQueued)
	e.enqueue(id)
	e.ProcessQueue()
	return nil
}

// RemoveTask removes a task. With deleteFiles set, its workspace and
// partial data are destroyed; active tasks are cancelled first and the
// cleanup runs after their workers drain.
func (e *Engine) RemoveTask(id string, deleteFiles bool) error {
	t, err := e.GetTask(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	_, isActive := e.active[id]
	e.mu.Unlock()
	if isActive {
		if deleteFiles {
			t.MarkDeleted()
		}
		t.Cancel()
		return nil
	}
	if deleteFiles {
		ws := WorkspaceFor(t)
		if !t.Partial {
			if err := ws.Remove(); err != nil {
				wlog(e.l, "task %s: workspace removal: %v", id, err)
			}
		}
	}
	e.mu.Lock()
	delete(e.tasks, id)
	e.mu.Unlock()
	if !t.Ephemeral {
		return e.repo.DeleteTask(id)
	}
	return nil
}

func (e *Engine) enqueue(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.queue {
		if q == id {
			return
		}
	}
	e.queue = append(e.queue, id)
}

// ProcessQueue admits tasks while slots are free. The loop pops the
// batch queue first and falls back to scanning for WAITING tasks, so
// tasks parked by a full scheduler are picked up without re-adding.
func (e *Engine) ProcessQueue() {
	for {
		e.mu.Lock()
		if e.closed || len(e.active)+len(e.discovery) >= e.limit {
			// No slot for whatever is queued: park it WAITING so the
			// scan after the next release picks it up.
			var parked []*Task
			if !e.closed {
				for _, id := range e.queue {
					if t, ok := e.tasks[id]; ok && t.GetState() == StateQueued {
						parked = append(parked, t)
					}
				}
			}
			e.mu.Unlock()
			for _, t := range parked {
				t.SetState(StateWaiting)
				e.handlers.StateChangeHandler(t.Id, StateWaiting)
				if err := e.persist(t); err != nil {
					wlog(e.l, "task %s: persist: %v", t.Id, err)
				}
			}
			return
		}
		var next *Task
		for len(e.queue) > 0 {
			id := e.queue[0]
			e.queue = e.queue[1:]
			if t, ok := e.tasks[id]; ok {
				if _, running := e.active[id]; running {
					continue
				}
				if _, probing := e.discovery[id]; probing {
					continue
				}
				switch t.GetState() {
				case StateQueued, StateWaiting:
					next = t
				}
				if next != nil {
					break
				}
			}
		}
		if next == nil {
			for _, t := range e.tasks {
				if t.GetState() != StateWaiting {
					continue
				}
				if _, running := e.active[t.Id]; running {
					continue
				}
				if _, probing := e.discovery[t.Id]; probing {
					continue
				}
				next = t
				break
			}
		}
		if next == nil {
			e.mu.Unlock()
			return
		}
		// Partial tasks never probe: ImportPartial rejects manifests
		// without a positive total_size, so their size is always known.
		if next.TotalSize <= 0 && !next.Partial {
			e.discovery[next.Id] = struct{}{}
			e.mu.Unlock()
			e.startDiscovery(next)
			continue
		}
		rt := &taskRuntime{t: next, ws: WorkspaceFor(next)}
		e.active[next.Id] = rt
		e.mu.Unlock()
		e.startTask(rt)
	}
}

// startDiscovery probes size and range support in the background. The
// discovery slot counts against the concurrency limit, so a sequential
// engine never downloads while probing.
func (e *Engine) startDiscovery(t *Task) {
	t.SetState(StateInitializing)
	e.handlers.StateChangeHandler(t.Id, StateInitializing)
	e.wg.Add(1)
	safeGo(e.l, &e.wg, "discovery:"+t.Id, func(r interface{}) {
		e.releaseDiscovery(t.Id)
	}, func() {
		e.discover(t)
	})
}

func (e *Engine) discover(t *Task) {
	timeout := DiscoveryTimeout
	if t.CaptureId != "" {
		timeout = CaptureDiscoveryTimeout
	}
	ctx, cancel := context.WithTimeout(e.ctx, timeout)
	defer cancel()

	size, viaStream, err := e.client.GetContentLength(ctx, t.Url, t.Session)
	if err != nil {
		if IsAuthExpired(err) {
			t.SetState(StatePaused)
			e.handlers.StateChangeHandler(t.Id, StatePaused)
			e.handlers.SessionRenewalHandler(t.Id, t.Url)
			if perr := e.persist(t); perr != nil {
				wlog(e.l, "task %s: persist: %v", t.Id, perr)
			}
		} else {
			e.failTask(t, fmt.Errorf("discovery: %w", err))
		}
		e.releaseDiscovery(t.Id)
		return
	}
	resumable := false
	if size > 0 {
		resumable, err = e.client.SupportsRanges(ctx, t.Url, t.Session)
		if err != nil {
			wlog(e.l, "task %s: range probe: %v", t.Id, err)
		}
	}
	if t.FileName == "" {
		name, err := e.client.ProbeFileName(ctx, t.Url, t.Session)
		if err != nil {
			name = "download"
		}
		t.FileName = name
	}
	t.TotalSize = size
	t.Resumable = resumable
	t.ProbedViaStream = viaStream
	t.SetState(StateQueued)
	if err := e.persist(t); err != nil {
		wlog(e.l, "task %s: persist after discovery: %v", t.Id, err)
	}
	e.handlers.StateChangeHandler(t.Id, StateQueued)

	e.mu.Lock()
	delete(e.discovery, t.Id)
	e.queue = append([]string{t.Id}, e.queue...)
	e.mu.Unlock()
	e.ProcessQueue()
}

func (e *Engine) releaseDiscovery(id string) {
	e.mu.Lock()
	delete(e.discovery, id)
	e.mu.Unlock()
	e.ProcessQueue()
}

// startTask runs the admitted task in its own goroutine: pre-checks,
// planning, resume-safety, worker spawn, monitor, terminal hand-off.
func (e *Engine) startTask(rt *taskRuntime) {
	e.wg.Add(1)
	safeGo(e.l, &e.wg, "task:"+rt.t.Id, func(r interface{}) {
		rt.t.Fail(fmt.Errorf("internal error: %v", r))
		e.release(rt.t.Id)
	}, func() {
		e.runTask(rt)
	})
}

func (e *Engine) runTask(rt *taskRuntime) {
	t := rt.t
	defer e.release(t.Id)

	if err := e.prepare(rt); err != nil {
		e.failTask(t, err)
		return
	}
	defer rt.f.Close()

	t.ClearCancel()
	t.SetState(StateDownloading)
	e.handlers.StateChangeHandler(t.Id, StateDownloading)
	if err := e.persist(t); err != nil {
		wlog(e.l, "task %s: persist: %v", t.Id, err)
	}

	e.spawnWorkers(rt)

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()
	e.monitor(rt, done)

	e.settleTask(rt)
}

// prepare creates the workspace, plans segments on first start, runs
// the resume-safety rollback and opens the shared data handle. The
// disk pre-check runs before any worker spawns.
func (e *Engine) prepare(rt *taskRuntime) error {
	t := rt.t
	if err := rt.ws.Create(); err != nil {
		return err
	}
	if t.TotalSize > 0 {
		if err := checkDiskSpace(rt.ws.Dir, t.TotalSize+DISK_SPACE_MARGIN); err != nil {
			return err
		}
	}
	if len(t.Segments) == 0 {
		PlanTask(t)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := Rollback(t, rt.ws); err != nil {
		return err
	}
	size := t.TotalSize
	if !t.Resumable {
		size = 0
	}
	f, err := rt.ws.OpenData(size)
	if err != nil {
		return err
	}
	rt.f = f
	return nil
}

// spawnWorkers starts one worker per incomplete segment, bounded by
// the task's connection cap. Rebalance grows parallelism later.
func (e *Engine) spawnWorkers(rt *taskRuntime) {
	t := rt.t
	segs := t.IncompleteSegments()
	max := t.MaxConnections
	if max < 1 {
		max = 1
	}
	for i, s := range segs {
		if i >= max {
			break
		}
		e.spawnWorker(rt, s)
	}
}

func (e *Engine) spawnWorker(rt *taskRuntime, s *Segment) {
	t := rt.t
	e.handlers.SpawnSegmentHandler(t.Id, s.Start, s.FinalOffset())
	rt.wg.Add(1)
	run := func() error {
		if !t.Resumable {
			sw := &streamWorker{task: t, seg: s, f: rt.f, client: e.client, retry: e.retry, l: e.l}
			return sw.run(e.ctx)
		}
		w := &worker{
			task:   t,
			seg:    s,
			f:      rt.f,
			client: e.client,
			retry:  e.retry,
			l:      e.l,
			onComplete: func(seg *Segment) {
				e.segmentDone(rt, seg)
			},
		}
		return w.run(e.ctx)
	}
	safeGo(e.l, &rt.wg, "worker:"+t.Id, func(r interface{}) {
		rt.noteErr(fmt.Errorf("worker panic: %v", r))
	}, func() {
		if err := run(); err != nil {
			rt.noteErr(err)
		}
	})
}

// segmentDone handles a clean segment completion: persists the
// checkpointed state, marks the part marker for shared layouts and
// gives the rebalancer a chance to split the biggest remainder.
func (e *Engine) segmentDone(rt *taskRuntime, s *Segment) {
	t := rt.t
	if t.Partial && s.PartNumber > 0 {
		if e.partComplete(rt, s.PartNumber) {
			if err := rt.ws.MarkPartDone(s.PartNumber); err != nil {
				wlog(e.l, "task %s: part %d marker: %v", t.Id, s.PartNumber, err)
			}
		}
	}
	if err := e.persist(t); err != nil {
		wlog(e.l, "task %s: persist: %v", t.Id, err)
	}
	e.Rebalance(t.Id)
}

// partComplete reports whether every segment of a declared part is
// complete. Rebalance-spawned children inherit the part number.
func (e *Engine) partComplete(rt *taskRuntime, part int) bool {
	for _, s := range rt.t.segs() {
		if s.PartNumber == part && !s.Complete() {
			return false
		}
	}
	return true
}

// Rebalance converts idle connection slots into parallelism by
// splitting the remaining range of the largest incomplete segment.
// Refuses for non-resumable, unstable or non-downloading tasks.
func (e *Engine) Rebalance(id string) {
	e.mu.Lock()
	rt, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return
	}
	t := rt.t
	if t.GetState() != StateDownloading || !t.Resumable || !t.IsStable() {
		return
	}
	if t.Cancelled() {
		return
	}

	incomplete := t.IncompleteSegments()
	if len(incomplete) >= t.MaxConnections {
		return
	}
	var candidate *Segment
	var best int64
	for _, s := range incomplete {
		if r := s.Remaining(); r > best {
			best = r
			candidate = s
		}
	}
	if candidate == nil || best < MIN_SPLIT_REMAINDER {
		return
	}
	spawn := SplitSegment(candidate)
	if spawn == nil {
		return
	}
	spawn.PartNumber = candidate.PartNumber
	t.AppendSegment(spawn)
	e.spawnWorker(rt, spawn)
}

// monitor runs at 1 Hz until the workers drain: speed sampling,
// persistence, progress notification and adaptive connection growth
// every 30 seconds.
func (e *Engine) monitor(rt *taskRuntime, done <-chan struct{}) {
	t := rt.t
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prev := t.Downloaded()
	last := time.Now()
	var sinceGrowth time.Duration
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			cur := t.Downloaded()
			elapsed := now.Sub(last)
			if elapsed > 0 {
				t.SetSpeed(int64(float64(cur-prev) / elapsed.Seconds()))
			}
			prev, last = cur, now

			if err := e.persist(t); err != nil {
				wlog(e.l, "task %s: persist: %v", t.Id, err)
			}
			e.handlers.ProgressHandler(t.Id, cur, t.ExpectedBytes(), t.Speed)

			sinceGrowth += elapsed
			if sinceGrowth >= 30*time.Second {
				sinceGrowth = 0
				if t.Resumable && t.MaxConnections < MAX_ADAPTIVE_CONNS {
					t.MaxConnections++
					e.Rebalance(t.Id)
				}
			}
		}
	}
}

// settleTask is the post-drain decision: finalize, pause, fail or
// clean up a deletion, in that priority order.
func (e *Engine) settleTask(rt *taskRuntime) {
	t := rt.t
	wErr, authErr := rt.errs()

	switch {
	case t.Cancelled() && t.Deleted():
		e.cleanupDeleted(rt)
		return

	case t.Cancelled():
		t.SetState(StatePaused)
		e.handlers.StateChangeHandler(t.Id, StatePaused)

	case authErr != nil:
		if e.reprobeAfterAuth(rt) {
			t.SetState(StateQueued)
			e.handlers.StateChangeHandler(t.Id, StateQueued)
			e.enqueue(t.Id)
		} else {
			t.SetState(StatePaused)
			e.handlers.StateChangeHandler(t.Id, StatePaused)
			e.handlers.SessionRenewalHandler(t.Id, t.Url)
		}

	case t.SegmentsComplete():
		if err := e.finalize(rt); err != nil {
			e.failTask(t, err)
			return
		}

	case wErr != nil:
		e.failTask(t, wErr)
		return

	default:
		// Workers drained without completing and without a recorded
		// error (engine shutdown). Park for the next admission pass.
		t.SetState(StateWaiting)
	}

	if err := e.persist(t); err != nil {
		wlog(e.l, "task %s: persist: %v", t.Id, err)
	}
}

// reprobeAfterAuth runs the one-shot second size probe allowed after a
// streaming worker hits an expired session. A successful range probe
// upgrades the task to resumable segments and re-queues it.
func (e *Engine) reprobeAfterAuth(rt *taskRuntime) bool {
	t := rt.t
	if t.Resumable || t.ProbedViaStream {
		return false
	}
	t.ProbedViaStream = true
	ctx, cancel := context.WithTimeout(e.ctx, DiscoveryTimeout)
	defer cancel()
	ok, err := e.client.SupportsRanges(ctx, t.Url, t.Session)
	if err != nil || !ok {
		return false
	}
	size, _, err := e.client.GetContentLength(ctx, t.Url, t.Session)
	if err != nil || size <= 0 {
		return false
	}
	t.TotalSize = size
	t.Resumable = true
	t.Segments = nil
	PlanTask(t)
	return true
}

// cleanupDeleted removes the workspace, the repository row and the
// task entry after the drained workers released their handles. Shared
// workspaces are left on disk; other participants still write there.
func (e *Engine) cleanupDeleted(rt *taskRuntime) {
	t := rt.t
	rt.f.Close()
	if !t.Partial {
		if err := rt.ws.Remove(); err != nil {
			wlog(e.l, "task %s: workspace removal: %v", t.Id, err)
		}
	}
	t.forceState(StateCancelled)
	e.handlers.StateChangeHandler(t.Id, StateCancelled)
	e.mu.Lock()
	delete(e.tasks, t.Id)
	e.mu.Unlock()
	if !t.Ephemeral {
		if err := e.repo.DeleteTask(t.Id); err != nil {
			wlog(e.l, "task %s: row deletion: %v", t.Id, err)
		}
	}
}

func (e *Engine) failTask(t *Task, err error) {
	t.Fail(err)
	e.handlers.StateChangeHandler(t.Id, StateFailed)
	e.handlers.ErrorHandler(t.Id, err)
	if perr := e.persist(t); perr != nil {
		wlog(e.l, "task %s: persist: %v", t.Id, perr)
	}
}

// release is the terminal funnel: every task leaves the active set
// through here, and every release drives the next admission.
func (e *Engine) release(id string) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
	e.ProcessQueue()
}

// persist saves a settled snapshot to the repository and mirrors it
// into the sidecar for standard-layout tasks.
func (e *Engine) persist(t *Task) error {
	if t.Ephemeral {
		return nil
	}
	snap := t.Snapshot()
	if err := e.repo.SaveTask(snap); err != nil {
		return err
	}
	if !t.Partial {
		ws := WorkspaceFor(t)
		if ws.Exists() {
			if err := ws.WriteMeta(snap); err != nil {
				wlog(e.l, "task %s: sidecar: %v", t.Id, err)
			}
		}
	}
	return nil
}

// Shutdown cancels all active tasks and waits for workers and monitors
// to drain, bounded by the context.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, rt := range e.active {
		rt.t.Cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.cancel()
		<-done
	}
	e.cancel()
	return nil
}
