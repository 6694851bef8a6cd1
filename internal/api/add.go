package api

import (
	"encoding/json"
	"errors"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/internal/store"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

func (s *Api) addHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.AddParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_ADD, nil, err
	}
	if m.Url == "" {
		return common.UPDATE_ADD, nil, errors.New("url is required")
	}

	var session *dlmlib.Session
	if m.Referer != "" || m.UserAgent != "" || len(m.Headers) > 0 || len(m.Cookies) > 0 {
		session = dlmlib.NewSession(m.Referer, m.UserAgent, m.Headers, m.Cookies)
	}

	t, err := s.eng.AddTask(m.Url, &dlmlib.AddTaskOpts{
		FileName:       m.FileName,
		Folder:         m.Folder,
		OutputPath:     m.OutputPath,
		MaxConnections: m.MaxConnections,
		Session:        session,
		Source:         "cli",
		Ephemeral:      m.Ephemeral,
	})
	if err != nil {
		return common.UPDATE_ADD, nil, err
	}

	if m.Folder != "" {
		if ferr := s.store.SaveFolder(&store.Folder{Name: m.Folder}); ferr != nil {
			s.log.Printf("folder %s: %v\n", m.Folder, ferr)
		}
	}

	// The submitting client streams this task's updates from the start.
	pool.AddTask(t.Id, sconn.Conn)
	s.log.Printf("added task %s: %s\n", t.Id, t.Url)

	return common.UPDATE_ADD, &common.AddResponse{
		TaskId:        t.Id,
		FileName:      t.FileName,
		ContentLength: dlmlib.ContentLength(t.TotalSize),
		Resumable:     t.Resumable,
	}, nil
}
