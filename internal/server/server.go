package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/abdu1rhmaan/dlm/common"
	"github.com/abdu1rhmaan/dlm/pkg/dlmlib"
)

// Server manages RPC connections from CLI clients over a Unix socket
// (a named pipe on Windows), falling back to TCP. It dispatches
// incoming requests to registered handlers and owns the connection
// pool for streamed task updates.
type Server struct {
	log      *log.Logger
	pool     *Pool
	ws       *WebServer
	handler  map[common.UpdateType]HandlerFunc
	port     int
	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a new Server instance with the given logger,
// engine and port number. The web endpoint (browser capture ingest
// plus the JSON-RPC bridge) listens on port+1.
func NewServer(l *log.Logger, eng *dlmlib.Engine, st CaptureStore, rpcCfg *RPCConfig, port int) *Server {
	pool := NewPool(l)
	return &Server{
		log:     l,
		pool:    pool,
		handler: make(map[common.UpdateType]HandlerFunc),
		port:    port,
		ws:      NewWebServer(l, eng, st, pool, rpcCfg, port+1),
	}
}

// Pool exposes the connection pool so api handlers and engine wiring
// can broadcast updates.
func (s *Server) Pool() *Pool {
	return s.pool
}

// Notifier exposes the JSON-RPC push notifier.
func (s *Server) Notifier() *RPCNotifier {
	return s.ws.Notifier()
}

// RegisterHandler associates a handler function with a specific update type method.
// When a request with the given method is received, the corresponding handler is invoked.
func (s *Server) RegisterHandler(method common.UpdateType, handler HandlerFunc) {
	s.handler[method] = handler
}

// Start begins listening for incoming connections and blocks until the context is canceled.
// It first starts the web server in a separate goroutine, then creates the platform
// listener and accepts connections in a loop. Each connection is handled in its own
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.ws.Start(); err != nil {
			s.log.Println("Web server error:", err.Error())
		}
	}()

	l, err := s.createListener()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.Println("Error accepting: ", err.Error())
			continue
		}
		go s.handleConnection(conn)
	}
}

// Shutdown gracefully stops the server by closing the listener and removing the socket file.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.log.Printf("Error closing listener: %v", err)
		}
		s.listener = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ws.Shutdown(shutdownCtx); err != nil {
		s.log.Printf("Error shutting down web server: %v", err)
	}

	if err := cleanupSocket(); err != nil {
		s.log.Printf("Error removing socket file: %v", err)
	}

	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	sconn := NewSyncConn(conn)
	defer conn.Close()
	for {
		buf, err := sconn.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			s.log.Println("Error reading:", err.Error())
			break
		}
		err = s.handlerWrapper(sconn, buf)
		if err != nil {
			s.log.Println("Error handling:", err.Error())
			break
		}
	}
}

func (s *Server) handlerWrapper(sconn *SyncConn, b []byte) error {
	req, err := ParseRequest(b)
	if err != nil {
		return fmt.Errorf("error parsing request: %s", err.Error())
	}
	rHandler, ok := s.handler[req.Method]
	if !ok {
		err = sconn.Write(CreateError("unknown method: " + string(req.Method)))
		if err != nil {
			return fmt.Errorf("error writing response: %s", err.Error())
		}
		return nil
	}
	utype, msg, err := rHandler(sconn, s.pool, req.Message)
	if err != nil {
		err = sconn.Write(InitError(err))
		if err != nil {
			return fmt.Errorf("error writing response: %s", err.Error())
		}
		return nil
	}
	err = sconn.Write(MakeResult(utype, msg))
	if err != nil {
		return fmt.Errorf("error writing response: %s", err.Error())
	}
	return nil
}
