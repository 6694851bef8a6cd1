package api

import (
	"log"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/server"
	"github.com/abdu1rhmaan/dlm/internal/store"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// Api dispatches CLI requests to the download engine and the store.
type Api struct {
	log     *log.Logger
	eng     *dlmlib.Engine
	store   *store.Store
	version string
	// shutdown asks the daemon to stop; set by the daemon entrypoint.
	shutdown func()
}

func NewApi(l *log.Logger, eng *dlmlib.Engine, st *store.Store, version string, shutdown func()) (*Api, error) {
	return &Api{
		log:      l,
		eng:      eng,
		store:    st,
		version:  version,
		shutdown: shutdown,
	}, nil
}

func (s *Api) RegisterHandlers(srv *server.Server) {
	srv.RegisterHandler(common.UPDATE_ADD, s.addHandler)
	srv.RegisterHandler(common.UPDATE_START, s.startHandler)
	srv.RegisterHandler(common.UPDATE_PAUSE, s.pauseHandler)
	srv.RegisterHandler(common.UPDATE_RESUME, s.resumeHandler)
	srv.RegisterHandler(common.UPDATE_RETRY, s.retryHandler)
	srv.RegisterHandler(common.UPDATE_REMOVE, s.removeHandler)
	srv.RegisterHandler(common.UPDATE_IMPORT, s.importHandler)
	srv.RegisterHandler(common.UPDATE_RECAPTURE, s.recaptureHandler)
	srv.RegisterHandler(common.UPDATE_ATTACH, s.attachHandler)
	srv.RegisterHandler(common.UPDATE_LIST, s.listHandler)
	srv.RegisterHandler(common.UPDATE_VERSION, s.versionHandler)
	srv.RegisterHandler(common.UPDATE_SHUTDOWN, s.shutdownHandler)
}
