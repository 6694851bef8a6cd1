package dlmlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// memRepo is the in-memory Repository used by engine tests.
type memRepo struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func newMemRepo() *memRepo {
	return &memRepo{tasks: make(map[string]*Task)}
}

func (r *memRepo) SaveTask(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Id] = t
	return nil
}

func (r *memRepo) GetTask(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

func (r *memRepo) GetTasks() ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (r *memRepo) DeleteTask(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func fileServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "payload.bin", time.Now(), bytes.NewReader(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEngine(t *testing.T, repo Repository, hc *http.Client) *Engine {
	t.Helper()
	eng, err := NewEngine(&EngineOpts{
		Repo:   repo,
		Client: NewClient(hc),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	})
	return eng
}

func waitForState(t *testing.T, eng *Engine, id string, want TaskState) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		task, err := eng.GetTask(id)
		if err == nil && task.GetState() == want {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	task, _ := eng.GetTask(id)
	if task != nil {
		t.Fatalf("task never reached %v; stuck at %v (%s)", want, task.GetState(), task.ErrorMessage)
	}
	t.Fatalf("task never reached %v", want)
}

func TestEngineDownloadToCompletion(t *testing.T) {
	payload := bytes.Repeat([]byte("dlm-payload."), 16*1024)
	srv := fileServer(t, payload)
	repo := newMemRepo()
	eng := newTestEngine(t, repo, srv.Client())

	dest := t.TempDir()
	task, err := eng.AddTask(srv.URL+"/payload.bin", &AddTaskOpts{
		OutputPath: dest,
		Source:     "cli",
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForState(t, eng, task.Id, StateCompleted)

	b, err := os.ReadFile(filepath.Join(dest, "payload.bin"))
	if err != nil {
		t.Fatalf("delivered file: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Errorf("delivered %d bytes, want %d, content mismatch", len(b), len(payload))
	}
	if StandardWorkspace(task.Id).Exists() {
		t.Error("workspace left behind after completion")
	}
	if _, err := repo.GetTask(task.Id); err != nil {
		t.Error("completed task missing from repository")
	}
	if task.Integrity != IntegrityVerified {
		t.Errorf("integrity = %v; want verified", task.Integrity)
	}
}

func TestEngineAuthExpiredPausesForRenewal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var renewed []string
	h := &Handlers{
		SessionRenewalHandler: func(taskId, url string) {
			mu.Lock()
			renewed = append(renewed, taskId)
			mu.Unlock()
		},
	}
	repo := newMemRepo()
	eng, err := NewEngine(&EngineOpts{
		Repo:     repo,
		Client:   NewClient(srv.Client()),
		Handlers: h,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Shutdown(ctx)
	}()

	task, err := eng.AddTask(srv.URL+"/x.bin", nil)
	if err != nil {
		t.Fatal(err)
	}
	waitForState(t, eng, task.Id, StatePaused)

	mu.Lock()
	defer mu.Unlock()
	if len(renewed) != 1 || renewed[0] != task.Id {
		t.Errorf("renewal notifications = %v; want exactly the paused task", renewed)
	}
}

func TestEngineQueuedPauseAndSequentialAdmission(t *testing.T) {
	release := make(chan struct{})
	payload := []byte("tiny")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "slow") {
			<-release
		}
		http.ServeContent(w, r, filepath.Base(r.URL.Path), time.Now(), bytes.NewReader(payload))
	}))
	defer srv.Close()
	defer close(release)

	repo := newMemRepo()
	eng := newTestEngine(t, repo, srv.Client())

	// First task occupies the single slot in its discovery probe.
	slow, err := eng.AddTask(srv.URL+"/slow.bin", &AddTaskOpts{OutputPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	fast, err := eng.AddTask(srv.URL+"/fast.bin", &AddTaskOpts{OutputPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	// A full scheduler parks the overflow WAITING so the scan after the
	// next release finds it.
	if got := fast.GetState(); got != StateWaiting {
		t.Fatalf("second task state = %v; want WAITING behind the busy slot", got)
	}

	// A parked task pauses without touching the network.
	if err := eng.PauseTask(fast.Id); err != nil {
		t.Fatal(err)
	}
	if got := fast.GetState(); got != StatePaused {
		t.Errorf("state = %v; want PAUSED", got)
	}

	// And resumes through the normal admission path.
	if err := eng.ResumeTask(fast.Id); err != nil {
		t.Fatal(err)
	}
	_ = slow
	waitForState(t, eng, fast.Id, StateCompleted)
}

func TestEngineDerivedParallelism(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 24*1024*1024)
	var (
		mu       sync.Mutex
		inflight int
		peak     int
		pairOnce sync.Once
	)
	pair := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Segment fetches rendezvous so the test observes them overlap;
		// the bytes=0-0 capability probe is not one of them.
		if rng := r.Header.Get("Range"); rng != "" && rng != "bytes=0-0" {
			mu.Lock()
			inflight++
			if inflight > peak {
				peak = inflight
			}
			if inflight >= 2 {
				pairOnce.Do(func() { close(pair) })
			}
			mu.Unlock()
			defer func() {
				mu.Lock()
				inflight--
				mu.Unlock()
			}()
			select {
			case <-pair:
			case <-time.After(2 * time.Second):
			}
		}
		http.ServeContent(w, r, "big.bin", time.Now(), bytes.NewReader(payload))
	}))
	defer srv.Close()

	repo := newMemRepo()
	eng := newTestEngine(t, repo, srv.Client())
	dest := t.TempDir()
	task, err := eng.AddTask(srv.URL+"/big.bin", &AddTaskOpts{OutputPath: dest})
	if err != nil {
		t.Fatal(err)
	}
	waitForState(t, eng, task.Id, StateCompleted)

	if task.MaxConnections < 2 {
		t.Errorf("MaxConnections = %d; want at least the planned segment count 2", task.MaxConnections)
	}
	mu.Lock()
	got := peak
	mu.Unlock()
	if got < 2 {
		t.Errorf("peak concurrent segment fetches = %d; want >= 2", got)
	}
	if st, err := os.Stat(filepath.Join(dest, "big.bin")); err != nil || st.Size() != int64(len(payload)) {
		t.Errorf("delivered file: %v (size %d)", err, len(payload))
	}
}

func TestEnginePauseRestartResume(t *testing.T) {
	payload := make([]byte, 256*1024)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		start, end := int64(0), int64(len(payload)-1)
		if rng := r.Header.Get("Range"); rng != "" {
			fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(payload)))
			w.WriteHeader(http.StatusPartialContent)
			if rng == "bytes=0-0" {
				w.Write(payload[:1])
				return
			}
		}
		// First 64 KiB flow immediately, the rest waits on the gate.
		window := payload[start : end+1]
		head := 64 * 1024
		if head > len(window) {
			head = len(window)
		}
		w.Write(window[:head])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-gate
		w.Write(window[head:])
	}))
	defer srv.Close()

	repo := newMemRepo()
	eng1, err := NewEngine(&EngineOpts{Repo: repo, Client: NewClient(srv.Client())})
	if err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	task, err := eng1.AddTask(srv.URL+"/gated.bin", &AddTaskOpts{OutputPath: dest})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(20 * time.Second)
	for task.Downloaded() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if task.Downloaded() == 0 {
		t.Fatal("no bytes arrived before the pause")
	}
	if err := eng1.PauseTask(task.Id); err != nil {
		t.Fatal(err)
	}
	close(gate)
	waitForState(t, eng1, task.Id, StatePaused)
	paused := task.Downloaded()
	if paused == 0 {
		t.Fatal("pause lost all progress")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	eng1.Shutdown(ctx)
	cancel()

	// A fresh engine over the same repository picks the task up where
	// the flushed checkpoint left it.
	eng2 := newTestEngine(t, repo, srv.Client())
	reloaded, err := eng2.GetTask(task.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.GetState(); got != StatePaused {
		t.Fatalf("reloaded state = %v; want PAUSED", got)
	}
	if reloaded.Downloaded() == 0 {
		t.Error("checkpointed progress did not survive the restart")
	}
	if err := eng2.ResumeTask(reloaded.Id); err != nil {
		t.Fatal(err)
	}
	waitForState(t, eng2, reloaded.Id, StateCompleted)

	b, err := os.ReadFile(filepath.Join(dest, "gated.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, payload) {
		t.Errorf("delivered %d bytes after resume; want the %d-byte origin payload intact", len(b), len(payload))
	}
}

func TestEngineStartTaskTerminal(t *testing.T) {
	repo := newMemRepo()
	eng := newTestEngine(t, repo, nil)

	task := NewTask("http://example.com/x")
	task.Fail(errors.New("boom"))
	eng.mu.Lock()
	eng.tasks[task.Id] = task
	eng.mu.Unlock()

	if err := eng.StartTask(task.Id); !errors.Is(err, ErrTaskTerminal) {
		t.Errorf("StartTask on FAILED = %v; want ErrTaskTerminal", err)
	}
	if err := eng.StartTask("nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("StartTask on unknown id = %v; want ErrTaskNotFound", err)
	}
}

func TestEngineImportPartial(t *testing.T) {
	m := testManifest()
	m.TaskId = "shared-import"
	repo := newMemRepo()
	eng := newTestEngine(t, repo, nil)

	// Imported partial tasks carry declared segments and never probe, so
	// a nil transport is fine until download starts.
	tasks, err := eng.ImportPartial(m, []int{1, 3}, true, "batch")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks; want one per assigned part", len(tasks))
	}
	for _, task := range tasks {
		if !task.Partial || task.SharedId != m.TaskId {
			t.Errorf("task %s not bound to shared workspace", task.Id)
		}
		if len(task.Segments) != 1 {
			t.Errorf("task %s has %d segments; want 1", task.Id, len(task.Segments))
		}
		if task.Folder != "batch" {
			t.Errorf("folder = %q", task.Folder)
		}
		if _, err := repo.GetTask(task.Id); err != nil {
			t.Errorf("task %s not persisted", task.Id)
		}
	}

	ws := SharedWorkspace(m.TaskId)
	defer ws.Remove()
	if _, err := ws.ReadManifest(); err != nil {
		t.Errorf("manifest not written to shared workspace: %v", err)
	}
	if st, err := os.Stat(ws.DataPath()); err != nil || st.Size() != m.TotalSize {
		t.Errorf("shared data.part not preallocated to %d", m.TotalSize)
	}

	if _, err := eng.ImportPartial(m, []int{9}, false, ""); !errors.Is(err, ErrManifestInvalid) {
		t.Errorf("undeclared part accepted: %v", err)
	}
}

func TestEngineRemoveTask(t *testing.T) {
	repo := newMemRepo()
	eng := newTestEngine(t, repo, nil)

	task := NewTask("http://example.com/x")
	task.SetState(StatePaused)
	eng.mu.Lock()
	eng.tasks[task.Id] = task
	eng.mu.Unlock()
	repo.SaveTask(task)

	ws := StandardWorkspace(task.Id)
	if err := ws.Create(); err != nil {
		t.Fatal(err)
	}
	if err := eng.RemoveTask(task.Id, true); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.GetTask(task.Id); !errors.Is(err, ErrTaskNotFound) {
		t.Error("task still in table after removal")
	}
	if _, err := repo.GetTask(task.Id); !errors.Is(err, ErrTaskNotFound) {
		t.Error("repository row survived removal")
	}
	if ws.Exists() {
		t.Error("workspace survived delete-files removal")
	}
}
