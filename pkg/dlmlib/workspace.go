package dlmlib

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

const (
	DataPartName = "data.part"
	MetaName     = "dlm.meta"
	ManifestName = "task.manifest.json"
	SegmentsDir  = "segments"

	// ManifestType identifies the shared-workspace manifest format.
	ManifestType = "dlm.task.v2"
)

// Meta is the crash-only JSON sidecar mirroring a standard task's state.
// It makes the workspace meaningful without the repository.
type Meta struct {
	Id           string    `json:"id"`
	Url          string    `json:"url"`
	Filename     string    `json:"filename"`
	TotalSize    int64     `json:"total_size"`
	CreatedAt    time.Time `json:"created_at"`
	Resumable    bool      `json:"resumable"`
	ResumeState  string    `json:"resume_state"`
	Source       string    `json:"source,omitempty"`
	MediaType    string    `json:"media_type,omitempty"`
	CurrentStage string    `json:"current_stage"`
	Segments     []Segment `json:"segments"`
}

// PartRange declares one part of a split artifact in a shared manifest.
type PartRange struct {
	Part  int   `json:"part"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Size  int64 `json:"size"`
}

// TaskManifest is the shared-workspace declaration for split downloads.
// Assignment sub-manifests carry the same task id plus AssignedParts.
type TaskManifest struct {
	ManifestType  string      `json:"manifest_type"`
	TaskId        string      `json:"task_id"`
	Url           string      `json:"url"`
	Filename      string      `json:"filename"`
	TotalSize     int64       `json:"total_size"`
	Parts         int         `json:"parts"`
	PartRanges    []PartRange `json:"part_ranges"`
	AssignedParts []int       `json:"assigned_parts,omitempty"`
}

// Validate checks a manifest's type tag and range declarations.
func (m *TaskManifest) Validate() error {
	if m.ManifestType != ManifestType {
		return fmt.Errorf("%w: unknown manifest type %q", ErrManifestInvalid, m.ManifestType)
	}
	if m.TaskId == "" || m.Url == "" || m.TotalSize <= 0 {
		return fmt.Errorf("%w: missing task_id, url or total_size", ErrManifestInvalid)
	}
	if m.Parts != len(m.PartRanges) {
		return fmt.Errorf("%w: parts %d but %d ranges", ErrManifestInvalid, m.Parts, len(m.PartRanges))
	}
	for _, pr := range m.PartRanges {
		if pr.Start < 0 || pr.End < pr.Start || pr.End >= m.TotalSize {
			return fmt.Errorf("%w: part %d range [%d, %d]", ErrManifestInvalid, pr.Part, pr.Start, pr.End)
		}
		if pr.Size != pr.End-pr.Start+1 {
			return fmt.Errorf("%w: part %d size %d, want %d", ErrManifestInvalid, pr.Part, pr.Size, pr.End-pr.Start+1)
		}
	}
	return nil
}

// Range returns the declared range for a part number.
func (m *TaskManifest) Range(part int) (PartRange, bool) {
	for _, pr := range m.PartRanges {
		if pr.Part == part {
			return pr, true
		}
	}
	return PartRange{}, false
}

// Workspace is the on-disk directory a task downloads into. Shared
// workspaces are written by several tasks and serialize their marker
// and manifest updates through a file lock.
type Workspace struct {
	Dir    string
	Shared bool

	fl *flock.Flock
}

// StandardWorkspace returns the per-task workspace for a standard task.
// The directory name is derived from the task identifier.
func StandardWorkspace(taskId string) *Workspace {
	return &Workspace{Dir: GetPath(WorkspaceDir, "dld_"+taskId)}
}

// SharedWorkspace returns the workspace shared by the partial tasks of
// one split artifact, named after the shared task id.
func SharedWorkspace(sharedId string) *Workspace {
	dir := GetPath(WorkspaceDir, SanitizeFilename(sharedId))
	return &Workspace{
		Dir:    dir,
		Shared: true,
		fl:     flock.New(GetPath(dir, ".lock")),
	}
}

// WorkspaceFor resolves the workspace a task writes into.
func WorkspaceFor(t *Task) *Workspace {
	if t.Partial && t.SharedId != "" {
		return SharedWorkspace(t.SharedId)
	}
	return StandardWorkspace(t.Id)
}

// Exists reports whether the workspace directory is on disk.
func (w *Workspace) Exists() bool {
	return dirExists(w.Dir)
}

// DataPath returns the path of the partial artifact file.
func (w *Workspace) DataPath() string {
	return GetPath(w.Dir, DataPartName)
}

// MetaPath returns the path of the sidecar file.
func (w *Workspace) MetaPath() string {
	return GetPath(w.Dir, MetaName)
}

// ManifestPath returns the path of the shared-layout manifest.
func (w *Workspace) ManifestPath() string {
	return GetPath(w.Dir, ManifestName)
}

func (w *Workspace) markerPath(part int, done bool) string {
	suffix := ".missing"
	if done {
		suffix = ".done"
	}
	return GetPath(GetPath(w.Dir, SegmentsDir), fmt.Sprintf("%03d%s", part, suffix))
}

// Create makes the workspace directory tree.
func (w *Workspace) Create() error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}
	if w.Shared {
		return os.MkdirAll(GetPath(w.Dir, SegmentsDir), 0755)
	}
	return nil
}

// OpenData opens data.part for positioned writes, creating and
// preallocating it to size on first open. Size zero leaves the file to
// grow with the stream; shared layouts pass the full artifact size so
// every participant sees one sparse file of the right length.
func (w *Workspace) OpenData(size int64) (*os.File, error) {
	f, err := os.OpenFile(w.DataPath(), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if size > 0 {
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		if st.Size() < size {
			if err = f.Truncate(size); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	return f, nil
}

// WriteMeta atomically replaces the dlm.meta sidecar with a projection
// of the given task snapshot.
func (w *Workspace) WriteMeta(t *Task) error {
	m := Meta{
		Id:           t.Id,
		Url:          t.Url,
		Filename:     t.FileName,
		TotalSize:    t.TotalSize,
		CreatedAt:    t.CreatedAt,
		Resumable:    t.Resumable,
		ResumeState:  string(t.ResumeState),
		Source:       t.Source,
		MediaType:    t.MediaType,
		CurrentStage: string(t.State),
	}
	m.Segments = make([]Segment, len(t.Segments))
	for i, s := range t.Segments {
		m.Segments[i] = s.snapshot()
	}
	return writeJSONAtomic(w.MetaPath(), &m)
}

// ReadMeta loads the sidecar, if present.
func (w *Workspace) ReadMeta() (*Meta, error) {
	var m Meta
	if err := readJSON(w.MetaPath(), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// RemoveMeta deletes the sidecar. Missing is not an error.
func (w *Workspace) RemoveMeta() error {
	err := os.Remove(w.MetaPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// WriteManifest writes the shared-layout manifest under the file lock.
func (w *Workspace) WriteManifest(m *TaskManifest) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.unlock()
	return writeJSONAtomic(w.ManifestPath(), m)
}

// ReadManifest loads and validates the shared-layout manifest.
func (w *Workspace) ReadManifest() (*TaskManifest, error) {
	var m TaskManifest
	if err := readJSON(w.ManifestPath(), &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// InitMarkers creates a NNN.missing marker for every declared part
// that has no marker yet. Existing .done markers are left alone so
// re-imports do not regress completed parts.
func (w *Workspace) InitMarkers(m *TaskManifest) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.unlock()
	for _, pr := range m.PartRanges {
		if fileExists(w.markerPath(pr.Part, true)) || fileExists(w.markerPath(pr.Part, false)) {
			continue
		}
		f, err := os.OpenFile(w.markerPath(pr.Part, false), os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

// MarkPartDone atomically replaces NNN.missing with NNN.done. The
// rename is the cross-task rendezvous; a crash leaves exactly one of
// the two markers present.
func (w *Workspace) MarkPartDone(part int) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.unlock()
	done := w.markerPath(part, true)
	if fileExists(done) {
		return nil
	}
	missing := w.markerPath(part, false)
	if fileExists(missing) {
		return os.Rename(missing, done)
	}
	f, err := os.OpenFile(done, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// PartDone reports whether the NNN.done marker exists.
func (w *Workspace) PartDone(part int) bool {
	return fileExists(w.markerPath(part, true))
}

// Remove tears the workspace down, retrying briefly for platforms that
// hold file locks a little past handle close.
func (w *Workspace) Remove() error {
	var err error
	for i := 0; i < 5; i++ {
		err = os.RemoveAll(w.Dir)
		if err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return err
}

func (w *Workspace) lock() error {
	if w.fl == nil {
		return nil
	}
	return w.fl.Lock()
}

func (w *Workspace) unlock() {
	if w.fl != nil {
		w.fl.Unlock()
	}
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
