package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// ErrCaptureNotFound is returned when a capture id has no record.
var ErrCaptureNotFound = errors.New("capture not found")

// Capture is a browser-originated download request recorded before a
// task is built from it: the URL plus everything needed to replay the
// browser's session.
type Capture struct {
	Id        string          `json:"id"`
	Url       string          `json:"url"`
	Referer   string          `json:"referer,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
	Headers   dlmlib.Headers  `json:"headers,omitempty"`
	Cookies   []dlmlib.Cookie `json:"cookies,omitempty"`
	FileSize  int64           `json:"file_size,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Session builds the replayable session descriptor for this capture.
func (c *Capture) Session() *dlmlib.Session {
	return dlmlib.NewSession(c.Referer, c.UserAgent, c.Headers, c.Cookies)
}

// SaveCapture upserts a capture record.
func (s *Store) SaveCapture(c *Capture) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	headers, err := json.Marshal(c.Headers)
	if err != nil {
		return fmt.Errorf("store: marshal headers: %w", err)
	}
	cookies, err := json.Marshal(c.Cookies)
	if err != nil {
		return fmt.Errorf("store: marshal cookies: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO captures (id, url, referer, user_agent, headers, cookies, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url=excluded.url, referer=excluded.referer,
			user_agent=excluded.user_agent, headers=excluded.headers,
			cookies=excluded.cookies, file_size=excluded.file_size`,
		c.Id, c.Url, c.Referer, c.UserAgent, string(headers), string(cookies),
		c.FileSize, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: save capture %s: %w", c.Id, err)
	}
	return nil
}

// GetCapture loads one capture by id.
func (s *Store) GetCapture(id string) (*Capture, error) {
	var (
		c                Capture
		headers, cookies string
		createdAt        string
	)
	err := s.db.QueryRow(`
		SELECT id, url, referer, user_agent, headers, cookies, file_size, created_at
		FROM captures WHERE id = ?`, id).
		Scan(&c.Id, &c.Url, &c.Referer, &c.UserAgent, &headers, &cookies, &c.FileSize, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaptureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get capture %s: %w", id, err)
	}
	if err = json.Unmarshal([]byte(headers), &c.Headers); err != nil {
		return nil, fmt.Errorf("store: capture headers: %w", err)
	}
	if err = json.Unmarshal([]byte(cookies), &c.Cookies); err != nil {
		return nil, fmt.Errorf("store: capture cookies: %w", err)
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("store: capture created_at: %w", err)
	}
	return &c, nil
}

// DeleteCapture removes a capture record.
func (s *Store) DeleteCapture(id string) error {
	_, err := s.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete capture %s: %w", id, err)
	}
	return nil
}
