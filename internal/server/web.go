package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/internal/store"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// CaptureStore persists browser capture records alongside the tasks
// built from them.
type CaptureStore interface {
	SaveCapture(c *store.Capture) error
	GetCapture(id string) (*store.Capture, error)
}

// WebServer is the browser-facing endpoint: a websocket ingest for
// captured downloads at /capture and a JSON-RPC 2.0 surface at /rpc
// (websocket) and /jsonrpc (HTTP POST).
type WebServer struct {
	port     int
	l        *log.Logger
	eng      *dlmlib.Engine
	st       CaptureStore
	pool     *Pool
	rpc      *RPCServer
	notifier *RPCNotifier
	server   *http.Server
	mu       sync.Mutex
}

// capturedDownload is the payload a browser extension sends when the
// user intercepts a download: the URL plus the session needed to
// replay the browser's request.
type capturedDownload struct {
	Url       string          `json:"url"`
	Referer   string          `json:"referer,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
	Headers   dlmlib.Headers  `json:"headers"`
	Cookies   []*http.Cookie  `json:"cookies"`
	FileSize  int64           `json:"file_size,omitempty"`
	FileName  string          `json:"file_name,omitempty"`
}

func NewWebServer(l *log.Logger, eng *dlmlib.Engine, st CaptureStore, pool *Pool, rpcCfg *RPCConfig, port int) *WebServer {
	notifier := NewRPCNotifier(l)
	ws := &WebServer{
		port:     port,
		l:        l,
		eng:      eng,
		st:       st,
		pool:     pool,
		notifier: notifier,
	}
	if rpcCfg != nil && rpcCfg.Secret != "" {
		ws.rpc = NewRPCServer(rpcCfg, eng, notifier)
	}
	return ws
}

// Notifier returns the JSON-RPC push notifier, so engine wiring can
// broadcast task events to RPC subscribers.
func (s *WebServer) Notifier() *RPCNotifier {
	return s.notifier
}

// processCapture persists the capture record and creates a task
// carrying the captured session.
func (s *WebServer) processCapture(cd *capturedDownload) error {
	var cookies []dlmlib.Cookie
	for _, c := range cd.Cookies {
		if c == nil {
			continue
		}
		cookies = append(cookies, dlmlib.Cookie{Name: c.Name, Value: c.Value})
	}
	session := dlmlib.NewSession(cd.Referer, cd.UserAgent, cd.Headers, cookies)

	capture := &store.Capture{
		Id:        dlmlib.NewTaskId(),
		Url:       cd.Url,
		Referer:   cd.Referer,
		UserAgent: cd.UserAgent,
		Headers:   session.Headers,
		Cookies:   cookies,
		FileSize:  cd.FileSize,
	}
	if err := s.st.SaveCapture(capture); err != nil {
		return err
	}

	t, err := s.eng.AddTask(cd.Url, &dlmlib.AddTaskOpts{
		FileName:  cd.FileName,
		Session:   session,
		Source:    "capture",
		CaptureId: capture.Id,
	})
	if err != nil {
		return err
	}
	s.pool.AddTask(t.Id, nil)
	return nil
}

func (s *WebServer) handleCapture(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var data []byte
		err := websocket.Message.Receive(conn, &data)
		if err != nil {
			if err == io.EOF {
				s.l.Println("Capture connection closed")
				return
			}
			s.l.Println("Error receiving message: ", err)
			return
		}
		var cd capturedDownload
		err = json.Unmarshal(data, &cd)
		if err != nil {
			s.l.Println("Error unmarshalling data: ", err)
			continue
		}
		err = s.processCapture(&cd)
		if err != nil {
			s.l.Println("Error processing capture: ", err)
			continue
		}
	}
}

func (s *WebServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/capture", websocket.Handler(s.handleCapture))
	if s.rpc != nil {
		mux.Handle("/rpc", requireToken(s.rpc.secret, http.HandlerFunc(s.rpc.ServeWS)))
		mux.Handle("/jsonrpc", requireToken(s.rpc.secret, s.rpc.Bridge()))
	}
	return mux
}

func (s *WebServer) addr() string {
	host := common.TCPHost
	if s.rpc != nil && s.rpc.listenAll {
		host = ""
	}
	return fmt.Sprintf("%s:%d", host, s.port)
}

func (s *WebServer) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:    s.addr(),
		Handler: s.handler(),
	}
	s.mu.Unlock()

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil // Expected during shutdown
	}
	return err
}

// Shutdown gracefully stops the web server.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	if s.rpc != nil {
		s.rpc.Close()
	}
	return s.server.Shutdown(ctx)
}
