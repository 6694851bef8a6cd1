package dlmlib

import (
	"bytes"
	"os"
	"testing"
)

func resumeFixture(t *testing.T, name string, size int64) (*Task, *Workspace) {
	t.Helper()
	task := NewTask("http://example.com/" + name)
	task.FileName = name
	task.TotalSize = size
	task.Resumable = true
	task.Segments = []*Segment{{Start: 0, End: size - 1}}

	ws := StandardWorkspace(task.Id)
	if err := ws.Create(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Remove() })
	return task, ws
}

func writeData(t *testing.T, ws *Workspace, b []byte) {
	t.Helper()
	if err := os.WriteFile(ws.DataPath(), b, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRollbackMissingData(t *testing.T) {
	task, ws := resumeFixture(t, "missing.bin", 1000)
	task.Segments[0].setRead(500)
	task.Segments[0].setCheckpoint(400)

	if err := Rollback(task, ws); err != nil {
		t.Fatal(err)
	}
	if task.Downloaded() != 0 {
		t.Errorf("downloaded = %d; want 0 with no data.part", task.Downloaded())
	}
	if !task.IsStable() {
		t.Error("fresh-start rollback should leave the task stable")
	}
}

func TestRollbackTruncatesToCheckpoint(t *testing.T) {
	task, ws := resumeFixture(t, "trunc.bin", 1000)
	writeData(t, ws, make([]byte, 1000))
	task.Segments[0].setRead(700)
	task.Segments[0].setCheckpoint(400)

	if err := Rollback(task, ws); err != nil {
		t.Fatal(err)
	}
	if got := task.Segments[0].Read(); got != 400 {
		t.Errorf("downloaded = %d; want checkpoint 400", got)
	}
	if task.IsStable() {
		t.Error("rollback that lost bytes must mark the task unstable")
	}

	// Idempotence: a second pass changes nothing and the unstable flag
	// stays put.
	if err := Rollback(task, ws); err != nil {
		t.Fatal(err)
	}
	if got := task.Segments[0].Read(); got != 400 {
		t.Errorf("second pass moved downloaded to %d", got)
	}
	if task.IsStable() {
		t.Error("second pass must not upgrade a rolled-back task to stable")
	}
}

func TestRollbackNeverUpgradesToStable(t *testing.T) {
	task, ws := resumeFixture(t, "sticky.bin", 1000)
	writeData(t, ws, make([]byte, 1000))
	task.Segments[0].setRead(900)
	task.Segments[0].setCheckpoint(512)

	for pass := 1; pass <= 2; pass++ {
		if err := Rollback(task, ws); err != nil {
			t.Fatal(err)
		}
		if got := task.Segments[0].Read(); got != 512 {
			t.Errorf("pass %d: downloaded = %d; want checkpoint 512", pass, got)
		}
		if task.IsStable() {
			t.Errorf("pass %d: rolled-back task reported stable", pass)
		}
	}

	// Retry and clean completion are the only ways back to stable.
	task.forceState(StateFailed)
	task.ResetForRetry()
	if !task.IsStable() {
		t.Error("retry should wipe progress and restore stability")
	}
	task.MarkUnstable()
	task.CompleteTask()
	if !task.IsStable() {
		t.Error("clean completion should restore stability")
	}
}

func TestRollbackSizeMismatch(t *testing.T) {
	task, ws := resumeFixture(t, "short.bin", 1000)
	writeData(t, ws, make([]byte, 300))
	task.Segments[0].setRead(200)
	task.Segments[0].setCheckpoint(200)

	if err := Rollback(task, ws); err != nil {
		t.Fatal(err)
	}
	if task.IsStable() {
		t.Error("length mismatch on a full task must mark it unstable")
	}
}

func TestRollbackEdgeHashVerification(t *testing.T) {
	task, ws := resumeFixture(t, "hash.bin", 1000)
	data := bytes.Repeat([]byte{0xAB}, 1000)
	writeData(t, ws, data)

	s := task.Segments[0]
	s.setRead(1000)
	s.setCheckpoint(1000)

	f, err := os.Open(ws.DataPath())
	if err != nil {
		t.Fatal(err)
	}
	s.StartHash, s.EndHash, err = ComputeEdgeHashes(f, s)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	// Intact bytes pass verification.
	if err := Rollback(task, ws); err != nil {
		t.Fatal(err)
	}
	if s.Read() != 1000 {
		t.Errorf("verified segment wiped: downloaded = %d", s.Read())
	}
	if !task.IsStable() {
		t.Error("verified rollback should be stable")
	}

	// Corrupt one byte inside the hashed span.
	data[10] = 0xFF
	writeData(t, ws, data)
	if err := Rollback(task, ws); err != nil {
		t.Fatal(err)
	}
	if s.Read() != 0 {
		t.Errorf("corrupt segment kept progress: downloaded = %d", s.Read())
	}
	if s.StartHash != "" || s.EndHash != "" {
		t.Error("corrupt segment kept stale hashes")
	}
	if task.IsStable() {
		t.Error("hash mismatch must mark the task unstable")
	}
}

func TestComputeEdgeHashesShortSegment(t *testing.T) {
	task, ws := resumeFixture(t, "tiny.bin", 64)
	writeData(t, ws, bytes.Repeat([]byte{0x01}, 64))

	f, err := os.Open(ws.DataPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sh, eh, err := ComputeEdgeHashes(f, task.Segments[0])
	if err != nil {
		t.Fatal(err)
	}
	if sh == "" || sh != eh {
		t.Error("a segment shorter than the hash span hashes its whole range twice")
	}
}
