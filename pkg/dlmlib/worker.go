package dlmlib

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
)

// worker downloads one segment of a task into the shared data.part
// handle. Workers are transient: they run, retry transient failures and
// return; respawning is the rebalancer's and monitor's business.
type worker struct {
	task   *Task
	seg    *Segment
	f      *os.File
	client *Client
	retry  RetryConfig
	l      *log.Logger

	// onComplete fires after a clean segment completion with hashes
	// stored and checkpoint settled.
	onComplete func(*Segment)
}

// run drives the segment to completion or returns the terminal error.
// Auth-expired errors are returned unretried so the engine can pause
// the task and request session renewal.
func (w *worker) run(ctx context.Context) error {
	state := RetryState{}
	for {
		err := w.attempt(ctx)
		if err == nil {
			if w.seg.Complete() {
				if err = w.finish(); err != nil {
					return err
				}
				if w.onComplete != nil {
					w.onComplete(w.seg)
				}
			}
			return nil
		}
		state.Attempts++
		state.LastError = err
		cat := ClassifyError(err)
		if cat == ErrCategoryAuthExpired {
			return err
		}
		if !w.retry.ShouldRetry(&state, err) {
			wlog(w.l, "task %s: segment [%d, %d]: giving up after %d attempts: %v",
				w.task.Id, w.seg.Start, w.seg.FinalOffset(), state.Attempts, err)
			return err
		}
		wlog(w.l, "task %s: segment [%d, %d]: attempt %d failed: %v",
			w.task.Id, w.seg.Start, w.seg.FinalOffset(), state.Attempts, err)
		if werr := w.retry.WaitForRetry(ctx, &state, cat); werr != nil {
			return werr
		}
	}
}

// attempt opens one stream and copies chunks until the segment is done,
// the stream ends, or cancellation is observed. The segment end is
// reloaded before every chunk: the rebalancer may shrink it while we
// run.
func (w *worker) attempt(ctx context.Context) error {
	off := w.seg.Start + w.seg.Read()
	end := w.seg.FinalOffset()
	if off > end {
		return nil
	}

	var (
		body io.ReadCloser
		err  error
	)
	if !w.task.Resumable && w.seg.Start == 0 {
		body, err = w.client.DownloadStream(ctx, w.task.Url, w.task.Session)
	} else {
		body, err = w.client.DownloadRange(ctx, w.task.Url, off, end, w.task.Session)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	buf := make([]byte, DEF_CHUNK_SIZE)
	for {
		if w.task.Cancelled() {
			// Flush before parking so the pause loses nothing to the
			// next rollback.
			if serr := w.f.Sync(); serr != nil {
				return serr
			}
			w.seg.setCheckpoint(w.seg.Read())
			return nil
		}

		expected := w.seg.ExpectedSize()
		if w.seg.Read() > expected {
			// Shrunk under us past our progress. The spawned segment's
			// worker owns the overrun region now; drop our claim to it.
			w.seg.setRead(expected)
			if w.seg.Checkpointed() > expected {
				w.seg.setCheckpoint(expected)
			}
			return nil
		}
		remaining := expected - w.seg.Read()
		if remaining <= 0 {
			return nil
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if int64(n) > remaining {
				n = int(remaining)
			}
			if _, werr := w.f.WriteAt(buf[:n], w.seg.Start+w.seg.Read()); werr != nil {
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
				if w.seg.Complete() {
					return nil
				}
				// Stream closed before the range was exhausted.
				return fmt.Errorf("%w: %d of %d bytes", ErrShortDownload, w.seg.Read(), w.seg.ExpectedSize())
			}
			return rerr
		}
	}
}

// finish settles a cleanly completed segment: flush, checkpoint to the
// full size and record the edge hashes resume verification will check.
func (w *worker) finish() error {
	if err := w.f.Sync(); err != nil {
		return err
	}
	w.seg.setCheckpoint(w.seg.Read())
	sh, eh, err := ComputeEdgeHashes(w.f, w.seg)
	if err != nil {
		return err
	}
	w.task.storeSegmentHashes(w.seg, sh, eh)
	return nil
}
