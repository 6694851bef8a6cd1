package server

import (
	"fmt"
	"log"
	"net"
	"sync"
)

// Pool tracks which client connections are attached to which task and
// broadcasts streamed updates to them. Errors recorded for a task are
// replayed to clients that attach after the fact.
type Pool struct {
	mu *sync.RWMutex
	m  map[string][]net.Conn
	e  map[string]*Error
}

func NewPool(l *log.Logger) *Pool {
	return &Pool{
		mu: &sync.RWMutex{},
		m:  make(map[string][]net.Conn),
		e:  make(map[string]*Error),
	}
}

// AddTask registers a task in the pool with an optional first
// subscriber. A nil conn creates the entry with no subscribers.
func (p *Pool) AddTask(uid string, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn == nil {
		if _, ok := p.m[uid]; !ok {
			p.m[uid] = []net.Conn{}
		}
		return
	}
	p.m[uid] = append(p.m[uid], conn)
}

// HasTask reports whether the task is registered in the pool.
func (p *Pool) HasTask(uid string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.m[uid]
	return ok
}

// AddConnections attaches additional subscriber connections to a task.
func (p *Pool) AddConnections(uid string, conns []net.Conn) {
	p.mu.RLock()
	_conns := p.m[uid]
	p.mu.RUnlock()
	if _conns == nil {
		_conns = []net.Conn{}
	}
	_conns = append(_conns, conns...)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[uid] = _conns
}

// RemoveTask drops the task's subscriber list and recorded error.
func (p *Pool) RemoveTask(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, uid)
	delete(p.e, uid)
}

// Broadcast writes a framed message to every subscriber of a task.
// Dead connections are evicted after the write pass.
func (p *Pool) Broadcast(uid string, data []byte) error {
	head := intToBytes(uint32(len(data)))
	p.mu.RLock()
	conns := append([]net.Conn(nil), p.m[uid]...)
	p.mu.RUnlock()

	var firstErr error
	var dead []net.Conn
	for _, conn := range conns {
		if _, err := conn.Write(head); err != nil {
			dead = append(dead, conn)
			if firstErr == nil {
				firstErr = fmt.Errorf("error writing: %s", err.Error())
			}
			continue
		}
		if _, err := conn.Write(data); err != nil {
			dead = append(dead, conn)
			if firstErr == nil {
				firstErr = fmt.Errorf("error writing: %s", err.Error())
			}
		}
	}
	if len(dead) > 0 {
		p.evict(uid, dead)
	}
	return firstErr
}

func (p *Pool) evict(uid string, dead []net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.m[uid]
	kept := conns[:0]
	for _, c := range conns {
		drop := false
		for _, d := range dead {
			if c == d {
				drop = true
				break
			}
		}
		if drop {
			_ = c.Close()
			continue
		}
		kept = append(kept, c)
	}
	p.m[uid] = kept
}

// WriteError records an error for a task; an existing critical error
// is never downgraded by a later warning.
func (p *Pool) WriteError(uid string, errType ErrorType, errMessage string) {
	p.mu.RLock()
	err, ok := p.e[uid]
	if ok && err.Type == ErrorTypeCritical && errType != ErrorTypeCritical {
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.e[uid] = &Error{errType, errMessage}
}

// ForceWriteError records an error unconditionally.
func (p *Pool) ForceWriteError(uid string, errType ErrorType, errMessage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.e[uid] = &Error{errType, errMessage}
}

// GetError returns the last recorded error for a task, or nil.
func (p *Pool) GetError(uid string) *Error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.e[uid]
}

