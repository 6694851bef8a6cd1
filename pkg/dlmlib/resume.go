package dlmlib

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// hashRange computes the SHA-256 of length bytes of f at off.
func hashRange(f *os.File, off, length int64) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(f, off, length)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// edgeSpan clamps the hash span to the segment length.
func edgeSpan(segLen int64) int64 {
	if segLen < HASH_SPAN {
		return segLen
	}
	return HASH_SPAN
}

// ComputeEdgeHashes hashes the first and last 512 KiB of a completed
// segment's range in data.part. Shorter segments hash their whole range
// twice.
func ComputeEdgeHashes(f *os.File, s *Segment) (start, end string, err error) {
	span := edgeSpan(s.ExpectedSize())
	start, err = hashRange(f, s.Start, span)
	if err != nil {
		return "", "", err
	}
	end, err = hashRange(f, s.FinalOffset()-span+1, span)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

// Rollback is the resume-safety pass run on task load and before every
// worker start. It distrusts everything not provably flushed:
//
//  1. missing data.part wipes all segment progress,
//  2. a length mismatch on a full task marks the resume unstable,
//  3. downloaded is truncated to checkpoint (the only flushed offset),
//  4. completed segments re-verify their stored edge hashes and are
//     wiped on mismatch.
//
// The pass is idempotent: a second run over its own output changes
// nothing, and it never upgrades UNSTABLE back to STABLE — a repaired
// task stays flagged across repeated passes. Unstable tasks still run;
// the flag only disables rebalancing until retry wipes progress or the
// task completes cleanly.
func Rollback(t *Task, w *Workspace) error {
	path := w.DataPath()
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		for _, s := range t.Segments {
			s.reset()
		}
		return nil
	}
	if err != nil {
		return err
	}

	stable := true
	if !t.Partial && t.Resumable && t.TotalSize > 0 && st.Size() != t.TotalSize {
		stable = false
	}

	for _, s := range t.Segments {
		if d, cp := s.Read(), s.Checkpointed(); d > cp {
			s.setRead(cp)
			stable = false
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, s := range t.Segments {
		if !s.Complete() || s.StartHash == "" || s.EndHash == "" {
			continue
		}
		sh, eh, err := ComputeEdgeHashes(f, s)
		if err != nil {
			return err
		}
		if sh != s.StartHash || eh != s.EndHash {
			s.reset()
			stable = false
		}
	}

	if !stable {
		t.MarkUnstable()
	}
	return nil
}
