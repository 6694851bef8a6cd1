package dlmlib

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

const (
	// htmlSuspectMax is the largest unknown-size payload still checked
	// for an HTML landing page.
	htmlSuspectMax = 200 * KB
	// htmlSniffSpan is how much of the file head is inspected.
	htmlSniffSpan = 1 * KB
)

// streamWorker handles non-resumable tasks: one sequential pass from
// offset 0, no ranges. A restart overwrites whatever the previous pass
// wrote; such tasks are never resumed across restarts.
type streamWorker struct {
	task   *Task
	seg    *Segment
	f      *os.File
	client *Client
	retry  RetryConfig
	l      *log.Logger
}

func (w *streamWorker) run(ctx context.Context) error {
	state := RetryState{}
	for {
		err := w.attempt(ctx)
		if err == nil {
			return nil
		}
		state.Attempts++
		state.LastError = err
		cat := ClassifyError(err)
		if cat == ErrCategoryAuthExpired {
			return err
		}
		if !w.retry.ShouldRetry(&state, err) {
			return err
		}
		wlog(w.l, "task %s: stream attempt %d failed: %v", w.task.Id, state.Attempts, err)
		if werr := w.retry.WaitForRetry(ctx, &state, cat); werr != nil {
			return werr
		}
	}
}

func (w *streamWorker) attempt(ctx context.Context) error {
	// Every attempt starts over; streamed bytes cannot be resumed.
	w.seg.setRead(0)
	w.seg.setCheckpoint(0)

	body, err := w.client.DownloadStream(ctx, w.task.Url, w.task.Session)
	if err != nil {
		return err
	}
	defer body.Close()

	buf := make([]byte, DEF_CHUNK_SIZE)
	for {
		if w.task.Cancelled() {
			return nil
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.f.WriteAt(buf[:n], w.seg.Read()); werr != nil {
				return werr
			}
			w.seg.addRead(int64(n))
			if w.seg.Read()-w.seg.Checkpointed() >= CHECKPOINT_INTERVAL {
				if serr := w.f.Sync(); serr != nil {
					return serr
				}
				w.seg.setCheckpoint(w.seg.Read())
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return w.settle()
			}
			return rerr
		}
	}
}

// settle validates the finished stream and fixes the segment's final
// extent for unknown-size tasks.
func (w *streamWorker) settle() error {
	received := w.seg.Read()
	if w.task.TotalSize > 0 && received != w.task.TotalSize {
		return fmt.Errorf("%w: streamed %d of %d bytes", ErrShortDownload, received, w.task.TotalSize)
	}
	if w.task.TotalSize == 0 {
		if received < htmlSuspectMax {
			if suspect, err := w.sniffHTML(); err != nil {
				return err
			} else if suspect {
				return &NetworkError{Err: ErrHTMLLandingPage}
			}
		}
		if received > 0 {
			w.seg.SetFinalOffset(received - 1)
			w.task.setTotalSize(received)
		}
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	w.seg.setCheckpoint(received)
	return nil
}

func (w *streamWorker) sniffHTML() (bool, error) {
	span := w.seg.Read()
	if span > htmlSniffSpan {
		span = htmlSniffSpan
	}
	if span == 0 {
		return false, nil
	}
	head := make([]byte, span)
	if _, err := w.f.ReadAt(head, 0); err != nil && err != io.EOF {
		return false, err
	}
	return LooksLikeHTML(head), nil
}
