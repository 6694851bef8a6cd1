package server

import (
	"bytes"
	"io"
	"log"
	"net"
	"testing"
	"time"
)

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, bytesToInt(head))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestPoolBroadcast(t *testing.T) {
	p := NewPool(log.Default())
	c1a, c1b := net.Pipe()
	c2a, c2b := net.Pipe()
	defer c1a.Close()
	defer c1b.Close()
	defer c2a.Close()
	defer c2b.Close()

	p.AddTask("t1", c1a)
	p.AddConnections("t1", []net.Conn{c2a})

	msg := []byte(`{"ok":true}`)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Broadcast("t1", msg); err != nil {
			t.Error(err)
		}
	}()
	if got := readFrame(t, c1b); !bytes.Equal(got, msg) {
		t.Errorf("subscriber 1 got %q", got)
	}
	if got := readFrame(t, c2b); !bytes.Equal(got, msg) {
		t.Errorf("subscriber 2 got %q", got)
	}
	<-done
}

func TestPoolBroadcastEvictsDead(t *testing.T) {
	p := NewPool(log.Default())
	deadA, deadB := net.Pipe()
	liveA, liveB := net.Pipe()
	defer liveA.Close()
	defer liveB.Close()
	deadB.Close()
	deadA.Close()

	p.AddTask("t1", deadA)
	p.AddConnections("t1", []net.Conn{liveA})

	msg := []byte("x")
	go func() {
		// First broadcast reports the dead connection and evicts it.
		if err := p.Broadcast("t1", msg); err == nil {
			t.Error("expected write error for closed connection")
		}
		// Second broadcast only hits the live subscriber.
		if err := p.Broadcast("t1", msg); err != nil {
			t.Error(err)
		}
	}()
	readFrame(t, liveB)
	readFrame(t, liveB)
}

func TestPoolBroadcastNoSubscribers(t *testing.T) {
	p := NewPool(log.Default())
	p.AddTask("t1", nil)
	if !p.HasTask("t1") {
		t.Error("nil-conn AddTask must still register the task")
	}
	if err := p.Broadcast("t1", []byte("x")); err != nil {
		t.Errorf("broadcast to empty task errored: %v", err)
	}
	if err := p.Broadcast("unknown", []byte("x")); err != nil {
		t.Errorf("broadcast to unknown task errored: %v", err)
	}
}

func TestPoolErrorRecording(t *testing.T) {
	p := NewPool(log.Default())

	p.WriteError("t1", ErrorTypeCritical, "boom")
	// A later warning must not downgrade the critical record.
	p.WriteError("t1", ErrorTypeWarning, "meh")
	e := p.GetError("t1")
	if e == nil || e.Type != ErrorTypeCritical || e.Message != "boom" {
		t.Errorf("error = %+v; want the critical record", e)
	}

	p.ForceWriteError("t1", ErrorTypeWarning, "forced")
	e = p.GetError("t1")
	if e == nil || e.Type != ErrorTypeWarning || e.Message != "forced" {
		t.Errorf("error = %+v; want the forced record", e)
	}

	p.RemoveTask("t1")
	if p.GetError("t1") != nil {
		t.Error("error survived task removal")
	}
	if p.HasTask("t1") {
		t.Error("task survived removal")
	}
}
