package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "dlm.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskRoundTrip(t *testing.T) {
	s := openTestStore(t)

	task := dlmlib.NewTask("http://example.com/a.bin")
	task.FileName = "a.bin"
	task.TotalSize = 4096
	task.Resumable = true
	task.MaxConnections = 4
	task.Folder = "work"
	task.Source = "cli"
	task.Session = dlmlib.NewSession("http://origin", "UA/1.0",
		dlmlib.Headers{{Key: "X-Token", Value: "t"}},
		[]dlmlib.Cookie{{Name: "sid", Value: "v"}})
	task.Segments = []*dlmlib.Segment{
		{Start: 0, End: 2047, Downloaded: 100, Checkpoint: 100},
		{Start: 2048, End: 4095},
	}

	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTask(task.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Url != task.Url || got.FileName != "a.bin" || got.TotalSize != 4096 {
		t.Errorf("scalar fields lost: %+v", got)
	}
	if !got.Resumable || got.MaxConnections != 4 || got.Folder != "work" {
		t.Errorf("attribute fields lost: %+v", got)
	}
	if len(got.Segments) != 2 || got.Segments[0].Downloaded != 100 {
		t.Errorf("segments lost: %+v", got.Segments)
	}
	if got.Session == nil || got.Session.UserAgent != "UA/1.0" || len(got.Session.Cookies) != 1 {
		t.Errorf("session lost: %+v", got.Session)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("created_at = %v; want %v", got.CreatedAt, task.CreatedAt)
	}
}

func TestSaveTaskUpsert(t *testing.T) {
	s := openTestStore(t)

	task := dlmlib.NewTask("http://example.com/b.bin")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	task.SetState(dlmlib.StateDownloading)
	task.Segments = []*dlmlib.Segment{{Start: 0, End: 99, Downloaded: 50, Checkpoint: 50}}
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTask(task.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != dlmlib.StateDownloading {
		t.Errorf("state = %v after upsert", got.State)
	}
	if len(got.Segments) != 1 || got.Segments[0].Checkpoint != 50 {
		t.Errorf("segments not replaced: %+v", got.Segments)
	}

	all, err := s.GetTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("upsert duplicated the row: %d tasks", len(all))
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetTask("nope"); !errors.Is(err, dlmlib.ErrTaskNotFound) {
		t.Errorf("err = %v; want ErrTaskNotFound", err)
	}
}

func TestDeleteTask(t *testing.T) {
	s := openTestStore(t)
	task := dlmlib.NewTask("http://example.com/c.bin")
	if err := s.SaveTask(task); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTask(task.Id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTask(task.Id); !errors.Is(err, dlmlib.ErrTaskNotFound) {
		t.Error("row survived deletion")
	}
	// Deleting a missing row is not an error.
	if err := s.DeleteTask(task.Id); err != nil {
		t.Fatal(err)
	}
}

func TestGetTasksByFolder(t *testing.T) {
	s := openTestStore(t)
	for _, folder := range []string{"a", "a", "b"} {
		task := dlmlib.NewTask("http://example.com/f")
		task.Folder = folder
		if err := s.SaveTask(task); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.GetTasksByFolder("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("folder a has %d tasks; want 2", len(got))
	}
}

func TestMigrationAddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a pre-migration database by dropping a newer column's
	// table and recreating it without that column.
	if _, err := s.db.Exec(`DROP TABLE tasks`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`
		CREATE TABLE tasks (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			file_name TEXT NOT NULL DEFAULT '',
			total_size INTEGER NOT NULL DEFAULT 0,
			resumable INTEGER NOT NULL DEFAULT 0,
			max_connections INTEGER NOT NULL DEFAULT 1,
			state TEXT NOT NULL DEFAULT 'QUEUED',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			integrity TEXT NOT NULL DEFAULT 'pending',
			resume_state TEXT NOT NULL DEFAULT 'STABLE',
			partial INTEGER NOT NULL DEFAULT 0,
			shared_id TEXT NOT NULL DEFAULT '',
			folder TEXT NOT NULL DEFAULT '',
			session TEXT NOT NULL DEFAULT '',
			segments TEXT NOT NULL DEFAULT '[]'
		)`); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen runs the additive migration.
	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	task := dlmlib.NewTask("http://example.com/mig.bin")
	task.Source = "capture"
	task.OutputPath = "/srv/out"
	if err := s2.SaveTask(task); err != nil {
		t.Fatalf("save after migration: %v", err)
	}
	got, err := s2.GetTask(task.Id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "capture" || got.OutputPath != "/srv/out" {
		t.Errorf("migrated columns lost data: %+v", got)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	s := openTestStore(t)
	c := &Capture{
		Id:        "cap1",
		Url:       "http://example.com/file.zip",
		Referer:   "http://example.com/page",
		UserAgent: "Browser/7",
		Headers:   dlmlib.Headers{{Key: "Accept", Value: "*/*"}},
		Cookies:   []dlmlib.Cookie{{Name: "auth", Value: "tok"}},
		FileSize:  1234,
	}
	if err := s.SaveCapture(c); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetCapture("cap1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Url != c.Url || got.FileSize != 1234 || len(got.Cookies) != 1 {
		t.Errorf("capture round trip lost data: %+v", got)
	}

	sess := got.Session()
	if sess.Referer != c.Referer || sess.UserAgent != c.UserAgent {
		t.Errorf("session projection wrong: %+v", sess)
	}

	if err := s.DeleteCapture("cap1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCapture("cap1"); !errors.Is(err, ErrCaptureNotFound) {
		t.Errorf("err = %v; want ErrCaptureNotFound", err)
	}
}

func TestFolderCRUD(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveFolder(&Folder{Name: "videos"}); err != nil {
		t.Fatal(err)
	}
	fs, err := s.GetFolders()
	if err != nil {
		t.Fatal(err)
	}
	if len(fs) != 1 || fs[0].Name != "videos" {
		t.Errorf("folders = %+v", fs)
	}
	if err := s.DeleteFolder("videos"); err != nil {
		t.Fatal(err)
	}
	fs, _ = s.GetFolders()
	if len(fs) != 0 {
		t.Error("folder survived deletion")
	}
}
