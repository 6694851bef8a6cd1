package dlmlib

import (
	"fmt"
	"sync/atomic"
)

// Segment is a contiguous inclusive byte range [Start, End] of a task's
// file, worked by at most one worker at a time. End may shrink while a
// worker is running (rebalance); workers reload it before every chunk.
//
// Invariants at every persistence boundary:
//
//	0 <= Downloaded <= End-Start+1
//	Checkpoint <= Downloaded
type Segment struct {
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	Downloaded int64  `json:"downloaded"`
	Checkpoint int64  `json:"checkpoint"`
	StartHash  string `json:"start_hash,omitempty"`
	EndHash    string `json:"end_hash,omitempty"`
	// PartNumber is the human part number for partial tasks; 0 when
	// the task owns the whole artifact.
	PartNumber int `json:"part,omitempty"`
}

// FinalOffset returns the current inclusive end byte. Safe to call
// concurrently with SetFinalOffset.
func (s *Segment) FinalOffset() int64 {
	return atomic.LoadInt64(&s.End)
}

// SetFinalOffset moves the segment's end byte. Used only by the
// rebalancer to shrink a live segment.
func (s *Segment) SetFinalOffset(end int64) {
	atomic.StoreInt64(&s.End, end)
}

// Read returns the number of bytes downloaded so far.
func (s *Segment) Read() int64 {
	return atomic.LoadInt64(&s.Downloaded)
}

func (s *Segment) setRead(n int64) {
	atomic.StoreInt64(&s.Downloaded, n)
}

func (s *Segment) addRead(n int64) int64 {
	return atomic.AddInt64(&s.Downloaded, n)
}

// Checkpointed returns the highest offset known to have been flushed.
func (s *Segment) Checkpointed() int64 {
	return atomic.LoadInt64(&s.Checkpoint)
}

func (s *Segment) setCheckpoint(n int64) {
	atomic.StoreInt64(&s.Checkpoint, n)
}

// ExpectedSize returns the current segment length in bytes.
func (s *Segment) ExpectedSize() int64 {
	return s.FinalOffset() - s.Start + 1
}

// Remaining returns the bytes still to download.
func (s *Segment) Remaining() int64 {
	r := s.ExpectedSize() - s.Read()
	if r < 0 {
		return 0
	}
	return r
}

// Complete reports whether every byte of the segment has been written.
func (s *Segment) Complete() bool {
	return s.Read() >= s.ExpectedSize()
}

// reset wipes all progress. Used by resume-safety when the segment's
// bytes can no longer be trusted.
func (s *Segment) reset() {
	s.setRead(0)
	s.setCheckpoint(0)
	s.StartHash = ""
	s.EndHash = ""
}

// validate checks the segment's local invariants.
func (s *Segment) validate() error {
	if s.Start < 0 || s.FinalOffset() < s.Start {
		return fmt.Errorf("%w: segment range [%d, %d]", ErrInvariantViolated, s.Start, s.FinalOffset())
	}
	if d := s.Read(); d < 0 || d > s.ExpectedSize() {
		return fmt.Errorf("%w: downloaded %d outside [0, %d]", ErrInvariantViolated, d, s.ExpectedSize())
	}
	if s.Checkpointed() > s.Read() {
		return fmt.Errorf("%w: checkpoint %d ahead of downloaded %d", ErrInvariantViolated, s.Checkpointed(), s.Read())
	}
	return nil
}

// snapshot returns a plain copy safe for persistence.
func (s *Segment) snapshot() Segment {
	return Segment{
		Start:      s.Start,
		End:        s.FinalOffset(),
		Downloaded: s.Read(),
		Checkpoint: s.Checkpointed(),
		StartHash:  s.StartHash,
		EndHash:    s.EndHash,
		PartNumber: s.PartNumber,
	}
}
