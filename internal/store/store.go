// Package store is the durable projection of tasks, folders and
// browser captures. One SQLite database in WAL mode backs the whole
// engine; the workspace owns the bytes, the store owns the intent.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// Store wraps the SQLite handle. It permits concurrent readers and a
// single writer; writes from workers, monitors and the scheduler
// serialize here.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and applies any pending
// schema migration.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// WAL permits readers during writer activity; NORMAL is durable
	// enough because every task row is reconstructible from dlm.meta.
	if _, err = db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: journal mode: %w", err)
	}
	if _, err = db.Exec(`PRAGMA synchronous=NORMAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: synchronous: %w", err)
	}
	s := &Store{db: db}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
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
	capture_id TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	media_type TEXT NOT NULL DEFAULT '',
	probed_via_stream INTEGER NOT NULL DEFAULT 0,
	output_path TEXT NOT NULL DEFAULT '',
	session TEXT NOT NULL DEFAULT '',
	segments TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS folders (
	name TEXT PRIMARY KEY,
	parent TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS captures (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	referer TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	headers TEXT NOT NULL DEFAULT '[]',
	cookies TEXT NOT NULL DEFAULT '[]',
	file_size INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
CREATE INDEX IF NOT EXISTS idx_tasks_folder ON tasks(folder);
`

// taskColumns are the post-v1 columns introduced additively. On open,
// any column missing from an older database is added with its default;
// rows keep their data, nothing is dropped.
var taskColumns = map[string]string{
	"source":            `TEXT NOT NULL DEFAULT ''`,
	"media_type":        `TEXT NOT NULL DEFAULT ''`,
	"probed_via_stream": `INTEGER NOT NULL DEFAULT 0`,
	"output_path":       `TEXT NOT NULL DEFAULT ''`,
	"capture_id":        `TEXT NOT NULL DEFAULT ''`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	existing := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks)`)
	if err != nil {
		return fmt.Errorf("store: table info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err = rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("store: table info: %w", err)
		}
		existing[name] = true
	}
	if err = rows.Err(); err != nil {
		return err
	}
	for col, def := range taskColumns {
		if existing[col] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE tasks ADD COLUMN %s %s`, col, def)
		if _, err = s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: add column %s: %w", col, err)
		}
	}
	return nil
}

// SaveTask upserts the full projection of a task, segments included,
// in one statement. SQLite makes the row replacement atomic with
// respect to crashes.
func (s *Store) SaveTask(t *dlmlib.Task) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("store: marshal segments: %w", err)
	}
	session := ""
	if t.Session != nil {
		b, err := json.Marshal(t.Session)
		if err != nil {
			return fmt.Errorf("store: marshal session: %w", err)
		}
		session = string(b)
	}
	_, err = s.db.Exec(`
		INSERT INTO tasks (
			id, url, file_name, total_size, resumable, max_connections,
			state, error_message, created_at, updated_at, integrity,
			resume_state, partial, shared_id, folder, capture_id, source,
			media_type, probed_via_stream, output_path, session, segments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url=excluded.url, file_name=excluded.file_name,
			total_size=excluded.total_size, resumable=excluded.resumable,
			max_connections=excluded.max_connections, state=excluded.state,
			error_message=excluded.error_message, updated_at=excluded.updated_at,
			integrity=excluded.integrity, resume_state=excluded.resume_state,
			partial=excluded.partial, shared_id=excluded.shared_id,
			folder=excluded.folder, capture_id=excluded.capture_id,
			source=excluded.source, media_type=excluded.media_type,
			probed_via_stream=excluded.probed_via_stream,
			output_path=excluded.output_path, session=excluded.session,
			segments=excluded.segments`,
		t.Id, t.Url, t.FileName, t.TotalSize, boolInt(t.Resumable), t.MaxConnections,
		string(t.State), t.ErrorMessage, t.CreatedAt.Format(time.RFC3339Nano),
		t.UpdatedAt.Format(time.RFC3339Nano), string(t.Integrity),
		string(t.ResumeState), boolInt(t.Partial), t.SharedId, t.Folder,
		t.CaptureId, t.Source, t.MediaType, boolInt(t.ProbedViaStream),
		t.OutputPath, session, string(segments))
	if err != nil {
		return fmt.Errorf("store: save task %s: %w", t.Id, err)
	}
	return nil
}

const taskSelect = `
	SELECT id, url, file_name, total_size, resumable, max_connections,
		state, error_message, created_at, updated_at, integrity,
		resume_state, partial, shared_id, folder, capture_id, source,
		media_type, probed_via_stream, output_path, session, segments
	FROM tasks`

// GetTask loads one task by id.
func (s *Store) GetTask(id string) (*dlmlib.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dlmlib.ErrTaskNotFound
	}
	return t, err
}

// GetTasks loads every stored task.
func (s *Store) GetTasks() ([]*dlmlib.Task, error) {
	return s.queryTasks(taskSelect + ` ORDER BY created_at`)
}

// GetTasksByFolder loads the tasks filed under a folder.
func (s *Store) GetTasksByFolder(folder string) ([]*dlmlib.Task, error) {
	return s.queryTasks(taskSelect+` WHERE folder = ? ORDER BY created_at`, folder)
}

func (s *Store) queryTasks(query string, args ...any) ([]*dlmlib.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query tasks: %w", err)
	}
	defer rows.Close()
	var out []*dlmlib.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*dlmlib.Task, error) {
	var (
		t                     dlmlib.Task
		resumable, partial    int
		probedViaStream       int
		state, integrity      string
		resumeState           string
		createdAt, updatedAt  string
		session, segments     string
	)
	err := sc.Scan(&t.Id, &t.Url, &t.FileName, &t.TotalSize, &resumable,
		&t.MaxConnections, &state, &t.ErrorMessage, &createdAt, &updatedAt,
		&integrity, &resumeState, &partial, &t.SharedId, &t.Folder,
		&t.CaptureId, &t.Source, &t.MediaType, &probedViaStream,
		&t.OutputPath, &session, &segments)
	if err != nil {
		return nil, err
	}
	t.Resumable = resumable != 0
	t.Partial = partial != 0
	t.ProbedViaStream = probedViaStream != 0
	t.State = dlmlib.TaskState(state)
	t.Integrity = dlmlib.Integrity(integrity)
	t.ResumeState = dlmlib.ResumeState(resumeState)
	if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("store: created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("store: updated_at: %w", err)
	}
	if session != "" {
		t.Session = &dlmlib.Session{}
		if err = json.Unmarshal([]byte(session), t.Session); err != nil {
			return nil, fmt.Errorf("store: session: %w", err)
		}
	}
	if err = json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, fmt.Errorf("store: segments: %w", err)
	}
	return &t, nil
}

// DeleteTask removes a task row. Missing rows are not an error.
func (s *Store) DeleteTask(id string) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete task %s: %w", id, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ dlmlib.Repository = (*Store)(nil)
