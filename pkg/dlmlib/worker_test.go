package dlmlib

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// A rebalance shrinks a running worker's segment end between chunks.
// The worker may overrun by at most one buffered chunk before it sees
// the new end, drops its claim to the overrun region and settles.
func TestWorkerSegmentShrinkMidFlight(t *testing.T) {
	total := int64(256 * 1024)
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i * 17)
	}

	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var start, end int64
		fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
		w.WriteHeader(http.StatusPartialContent)
		window := payload[start : end+1]
		// Half the range flows immediately, the rest waits for the test
		// to shrink the segment.
		half := len(window) / 2
		w.Write(window[:half])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-hold
		w.Write(window[half:])
	}))
	defer srv.Close()

	task := NewTask(srv.URL + "/shrink.bin")
	task.Resumable = true
	task.TotalSize = total
	seg := &Segment{Start: 0, End: total - 1}
	task.Segments = []*Segment{seg}

	f, err := os.Create(filepath.Join(t.TempDir(), "data.part"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := &worker{
		task:   task,
		seg:    seg,
		f:      f,
		client: NewClient(srv.Client()),
		retry:  DefaultRetryConfig(),
	}
	done := make(chan error, 1)
	go func() { done <- w.run(context.Background()) }()

	deadline := time.Now().Add(10 * time.Second)
	for seg.Read() < total/2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if seg.Read() < total/2 {
		t.Fatal("worker never reached the stall point")
	}

	shrunk := int64(100 * 1024)
	seg.SetFinalOffset(shrunk - 1)
	close(hold)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("worker returned %v after shrink", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not settle after shrink")
	}

	if got := seg.Read(); got != shrunk {
		t.Errorf("downloaded = %d; want clamped to %d", got, shrunk)
	}
	if cp := seg.Checkpointed(); cp != shrunk {
		t.Errorf("checkpoint = %d; want %d", cp, shrunk)
	}
	if seg.StartHash == "" || seg.EndHash == "" {
		t.Error("settled segment missing edge hashes")
	}
	got := make([]byte, shrunk)
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload[:shrunk]) {
		t.Error("bytes inside the shrunk range do not match the origin")
	}
}
