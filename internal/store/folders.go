package store

import (
	"fmt"
	"time"
)

// Folder is a named grouping of tasks. Folders nest through Parent.
type Folder struct {
	Name      string    `json:"name"`
	Parent    string    `json:"parent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveFolder creates or updates a folder record.
func (s *Store) SaveFolder(f *Folder) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO folders (name, parent, created_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET parent=excluded.parent`,
		f.Name, f.Parent, f.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: save folder %s: %w", f.Name, err)
	}
	return nil
}

// GetFolders returns all folders, parents before children.
func (s *Store) GetFolders() ([]*Folder, error) {
	rows, err := s.db.Query(`SELECT name, parent, created_at FROM folders ORDER BY parent, name`)
	if err != nil {
		return nil, fmt.Errorf("store: query folders: %w", err)
	}
	defer rows.Close()
	var out []*Folder
	for rows.Next() {
		var (
			f         Folder
			createdAt string
		)
		if err = rows.Scan(&f.Name, &f.Parent, &createdAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("store: folder created_at: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// DeleteFolder removes a folder record. Tasks filed under it keep
// their folder string; the caller decides whether to refile them.
func (s *Store) DeleteFolder(name string) error {
	_, err := s.db.Exec(`DELETE FROM folders WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: delete folder %s: %w", name, err)
	}
	return nil
}
