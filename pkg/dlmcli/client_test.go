package dlmcli

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/abdu1rhmaan/dlm/common"
)

func TestFrameRoundTrip(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	payload := []byte(`{"method":"version"}`)
	go func() {
		if err := WriteForTesting(client, payload); err != nil {
			t.Error(err)
		}
	}()
	got, err := ReadForTesting(srv)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read %q; want %q", got, payload)
	}
}

func TestFrameSizeLimit(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	// A header declaring more than the cap must be rejected before any
	// payload bytes are read.
	go func() {
		client.SetWriteDeadline(time.Now().Add(2 * time.Second))
		client.Write(intToBytes(uint32(common.MaxMessageSize) + 1))
	}()
	if _, err := ReadForTesting(srv); err == nil {
		t.Fatal("oversized frame accepted")
	}

	big := make([]byte, common.MaxMessageSize+1)
	if err := WriteForTesting(client, big); err == nil {
		t.Fatal("oversized write accepted")
	}
}

func TestDispatcherProcess(t *testing.T) {
	var seen []common.DownloadingAction
	d := &Dispatcher{Handlers: map[common.UpdateType]Handler{
		common.UPDATE_DOWNLOADING: NewDownloadingHandler("", func(r *common.DownloadingResponse) error {
			seen = append(seen, r.Action)
			return nil
		}),
	}}

	msg, _ := json.Marshal(&common.DownloadingResponse{
		TaskId: "t1",
		Action: common.DownloadProgress,
		Value:  512,
	})
	ok, _ := json.Marshal(&Response{
		Ok:     true,
		Update: &Update{Type: common.UPDATE_DOWNLOADING, Message: msg},
	})
	if err := d.process(ok); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != common.DownloadProgress {
		t.Errorf("handled actions = %v", seen)
	}

	if err := d.process([]byte(`{"ok":false,"error":"task not found"}`)); err == nil || err.Error() != "task not found" {
		t.Errorf("error response gave %v", err)
	}
	if err := d.process([]byte(`{"ok":true}`)); err != nil {
		t.Errorf("ack without update gave %v", err)
	}
	if err := d.process([]byte("{not json")); err == nil {
		t.Error("malformed frame accepted")
	}
}

func TestDownloadingHandlerActionFilter(t *testing.T) {
	var calls int
	h := NewDownloadingHandler(common.DownloadComplete, func(r *common.DownloadingResponse) error {
		calls++
		return nil
	})

	progress, _ := json.Marshal(&common.DownloadingResponse{Action: common.DownloadProgress})
	complete, _ := json.Marshal(&common.DownloadingResponse{Action: common.DownloadComplete})

	if err := h.Handle(progress); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Error("callback fired for a filtered action")
	}
	if err := h.Handle(complete); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("callback fired %d times; want 1", calls)
	}
}

// serveOne reads a single framed request and answers it.
func serveOne(t *testing.T, conn net.Conn, respond func(*Request) *Response) {
	t.Helper()
	buf, err := ReadForTesting(conn)
	if err != nil {
		t.Error(err)
		return
	}
	var req Request
	if err := json.Unmarshal(buf, &req); err != nil {
		t.Error(err)
		return
	}
	out, err := json.Marshal(respond(&req))
	if err != nil {
		t.Error(err)
		return
	}
	if err := WriteForTesting(conn, out); err != nil {
		t.Error(err)
	}
}

func TestClientInvoke(t *testing.T) {
	cc, sc := net.Pipe()
	defer sc.Close()
	c := NewClientForTesting(cc)
	defer c.Close()

	go serveOne(t, sc, func(req *Request) *Response {
		if req.Method != common.UPDATE_VERSION {
			t.Errorf("method = %q", req.Method)
		}
		msg, _ := json.Marshal(&common.VersionResponse{Version: "2.0.1"})
		return &Response{Ok: true, Update: &Update{Type: common.UPDATE_VERSION, Message: msg}}
	})
	v, err := c.GetDaemonVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v.Version != "2.0.1" {
		t.Errorf("version = %q", v.Version)
	}

	go serveOne(t, sc, func(req *Request) *Response {
		return &Response{Error: "no such task"}
	})
	if err := c.Pause("nope"); err == nil || err.Error() != "no such task" {
		t.Errorf("daemon error surfaced as %v", err)
	}
}

func TestClientListen(t *testing.T) {
	cc, sc := net.Pipe()
	defer sc.Close()
	c := NewClientForTesting(cc)

	var got []int64
	c.AddHandler(common.UPDATE_DOWNLOADING, NewDownloadingHandler("", func(r *common.DownloadingResponse) error {
		if r.Action == common.DownloadComplete {
			return ErrDisconnect
		}
		got = append(got, r.Value)
		return nil
	}))

	go func() {
		send := func(r *common.DownloadingResponse) {
			msg, _ := json.Marshal(r)
			out, _ := json.Marshal(&Response{
				Ok:     true,
				Update: &Update{Type: common.UPDATE_DOWNLOADING, Message: msg},
			})
			if err := WriteForTesting(sc, out); err != nil {
				t.Error(err)
			}
		}
		send(&common.DownloadingResponse{Action: common.DownloadProgress, Value: 100})
		send(&common.DownloadingResponse{Action: common.DownloadProgress, Value: 250})
		send(&common.DownloadingResponse{Action: common.DownloadComplete})
	}()

	// ErrDisconnect from a handler is a clean stop, not an error.
	if err := c.Listen(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 100 || got[1] != 250 {
		t.Errorf("progress values = %v", got)
	}
}
