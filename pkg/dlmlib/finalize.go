package dlmlib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// finalize is the single-writer completion transition. The CAS gate on
// the task admits exactly one caller; a second invocation on a
// completed task is a no-op, leaving the delivered file untouched.
func (e *Engine) finalize(rt *taskRuntime) error {
	t := rt.t
	if !t.BeginFinalize() {
		return nil
	}
	t.SetState(StateFinalizing)
	e.handlers.StateChangeHandler(t.Id, StateFinalizing)

	if t.Partial {
		return e.finalizeShared(rt)
	}
	if err := e.finalizeStandard(rt); err != nil {
		t.EndFinalize()
		return err
	}
	return nil
}

// finalizeShared completes a partial task: every declared part gets its
// done marker, data.part is left in place for the other participants.
func (e *Engine) finalizeShared(rt *taskRuntime) error {
	t := rt.t
	seen := map[int]bool{}
	for _, s := range t.Segments {
		if s.PartNumber <= 0 || seen[s.PartNumber] {
			continue
		}
		seen[s.PartNumber] = true
		if err := rt.ws.MarkPartDone(s.PartNumber); err != nil {
			wlog(e.l, "task %s: part %d marker: %v", t.Id, s.PartNumber, err)
		}
	}
	t.CompleteTask()
	e.handlers.StateChangeHandler(t.Id, StateCompleted)
	e.handlers.CompleteHandler(t.Id, "")
	return nil
}

// finalizeStandard renames data.part to its target name, relocates it
// into the destination directory, removes the sidecar and tears the
// workspace down. Any failure leaves the workspace intact for the next
// retry's resume-safety pass.
func (e *Engine) finalizeStandard(rt *taskRuntime) error {
	t := rt.t
	if err := e.releaseHandle(rt); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	name := t.FileName
	if name == "" {
		name = "download"
	}
	staged := GetPath(rt.ws.Dir, name)
	if err := os.Rename(rt.ws.DataPath(), staged); err != nil {
		return fmt.Errorf("finalize: rename: %w", err)
	}

	st, err := os.Stat(staged)
	if err != nil {
		return fmt.Errorf("finalize: staged file: %w", err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("finalize: staged file %s is empty", name)
	}

	destDir := t.OutputPath
	if destDir == "" {
		destDir = DownloadsDir
	}
	if err = os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	dest := resolveDuplicate(destDir, name)
	if err = moveFile(staged, dest); err != nil {
		return fmt.Errorf("finalize: move: %w", err)
	}

	if err = rt.ws.RemoveMeta(); err != nil {
		wlog(e.l, "task %s: sidecar removal: %v", t.Id, err)
	}
	if err = rt.ws.Remove(); err != nil {
		wlog(e.l, "task %s: workspace removal: %v", t.Id, err)
	}

	t.CompleteTask()
	e.handlers.StateChangeHandler(t.Id, StateCompleted)
	e.handlers.CompleteHandler(t.Id, dest)
	return nil
}

// releaseHandle closes the shared data handle, retrying briefly in
// case a draining worker still holds a write in flight.
func (e *Engine) releaseHandle(rt *taskRuntime) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := rt.f.Close()
		if err == nil || errors.Is(err, os.ErrClosed) {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// resolveDuplicate returns a destination path that does not collide
// with an existing file, suffixing _1, _2 and so on before the
// extension.
func resolveDuplicate(dir, name string) string {
	dest := filepath.Join(dir, name)
	if !fileExists(dest) {
		return dest
	}
	base, ext := name, ""
	if idx := strings.LastIndex(name, "."); idx > 0 {
		base, ext = name[:idx], name[idx:]
	}
	for i := 1; ; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if !fileExists(dest) {
			return dest
		}
	}
}

// moveFile renames when possible and falls back to copy+remove across
// filesystems.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var lerr *os.LinkError
	if !errors.As(err, &lerr) || !errors.Is(lerr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err = out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
