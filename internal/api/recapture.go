package api

import (
	"encoding/json"
	"errors"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// recaptureHandler replaces an expired capture session on a paused task
// and resumes it. The stored capture record is updated so a daemon
// restart keeps the fresh session.
func (s *Api) recaptureHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.RecaptureParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_RECAPTURE, nil, err
	}
	if m.TaskId == "" {
		return common.UPDATE_RECAPTURE, nil, errors.New("task_id is required")
	}

	t, err := s.eng.GetTask(m.TaskId)
	if err != nil {
		return common.UPDATE_RECAPTURE, nil, err
	}

	session := dlmlib.NewSession(m.Referer, m.UserAgent, m.Headers, m.Cookies)
	if t.CaptureId != "" {
		capture, err := s.store.GetCapture(t.CaptureId)
		if err == nil {
			capture.Headers = session.Headers
			capture.Cookies = m.Cookies
			capture.Referer = m.Referer
			capture.UserAgent = m.UserAgent
			if err := s.store.SaveCapture(capture); err != nil {
				s.log.Printf("failed to update capture %s: %s\n", t.CaptureId, err.Error())
			}
		}
	}

	if err := s.eng.RenewSession(m.TaskId, session); err != nil {
		return common.UPDATE_RECAPTURE, nil, err
	}
	pool.AddTask(m.TaskId, sconn.Conn)
	s.log.Printf("renewed session for task %s\n", m.TaskId)
	return common.UPDATE_RECAPTURE, &common.InputTaskId{TaskId: m.TaskId}, nil
}
