package api

import (
	"encoding/json"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
)

func (s *Api) versionHandler(_ *server.SyncConn, _ *server.Pool, _ json.RawMessage) (common.UpdateType, any, error) {
	return common.UPDATE_VERSION, &common.VersionResponse{Version: s.version}, nil
}

// shutdownHandler acknowledges the request and then asks the daemon to
// stop; the reply must be on the wire before the listener goes away.
func (s *Api) shutdownHandler(_ *server.SyncConn, _ *server.Pool, _ json.RawMessage) (common.UpdateType, any, error) {
	if s.shutdown != nil {
		go s.shutdown()
	}
	return common.UPDATE_SHUTDOWN, &common.VersionResponse{Version: s.version}, nil
}
