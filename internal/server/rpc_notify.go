package server

import (
	"context"
	"log"
	"sync"

	"github.com/creachadair/jrpc2"
)

// RPCNotifier maintains a set of connected jrpc2 WebSocket servers
// and broadcasts push notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     *log.Logger
}

// NewRPCNotifier creates a new notifier.
func NewRPCNotifier(l *log.Logger) *RPCNotifier {
	return &RPCNotifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     l,
	}
}

// Register adds a server to the broadcast set.
func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

// Unregister removes a server from the broadcast set.
func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast sends a push notification to all registered servers.
// Servers that fail to receive (e.g., disconnected) are unregistered.
func (n *RPCNotifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range servers {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			if n.log != nil {
				n.log.Printf("RPC push failed: %v", err)
			}
			failed = append(failed, srv)
		}
	}

	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
}

// Count returns the number of registered servers (for testing).
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// Notification param types for task events.

// TaskStateNotification is sent on every task state transition.
type TaskStateNotification struct {
	TaskId string `json:"taskId"`
	State  string `json:"state"`
}

// TaskProgressNotification is sent once per second per active task.
type TaskProgressNotification struct {
	TaskId          string `json:"taskId"`
	CompletedLength int64  `json:"completedLength"`
	TotalLength     int64  `json:"totalLength"`
	Speed           int64  `json:"speed"`
}

// TaskCompleteNotification is sent when a task finishes and its file
// has been delivered.
type TaskCompleteNotification struct {
	TaskId string `json:"taskId"`
	Path   string `json:"path"`
}

// TaskErrorNotification is sent when a task fails terminally.
type TaskErrorNotification struct {
	TaskId string `json:"taskId"`
	Error  string `json:"error"`
}

// SessionRenewalNotification asks external collaborators to re-capture
// an expired browser session for a paused task.
type SessionRenewalNotification struct {
	TaskId string `json:"taskId"`
	Url    string `json:"url"`
}
