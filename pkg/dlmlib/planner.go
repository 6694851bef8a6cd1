package dlmlib

// Planning thresholds for the initial segment count.
const (
	twoSegmentThreshold   = 20 * MB
	fourSegmentThreshold  = 100 * MB
	eightSegmentThreshold = 1 * GB
)

// SegmentCount returns the initial number of segments for a file of the
// given size. Unknown sizes and non-resumable origins always get one.
func SegmentCount(size int64, resumable bool) int {
	if !resumable || size <= 0 {
		return 1
	}
	switch {
	case size < twoSegmentThreshold:
		return 1
	case size < fourSegmentThreshold:
		return 2
	case size < eightSegmentThreshold:
		return 4
	default:
		return 8
	}
}

// PlanSegments divides [0, size-1] into n near-equal contiguous ranges.
// The last segment absorbs the remainder so the plan always covers the
// file exactly.
func PlanSegments(size int64, n int) []*Segment {
	if n < 1 {
		n = 1
	}
	if size <= 0 {
		return []*Segment{{Start: 0, End: 0}}
	}
	if int64(n) > size {
		n = 1
	}
	per := size / int64(n)
	segs := make([]*Segment, 0, n)
	var start int64
	for i := 0; i < n; i++ {
		end := start + per - 1
		if i == n-1 {
			end = size - 1
		}
		segs = append(segs, &Segment{Start: start, End: end})
		start = end + 1
	}
	return segs
}

// PlanTask fills a task's segment list from its probed size and range
// capability and raises MaxConnections to the planned count when the
// user asked for less. An unknown-size task gets a single open segment
// whose end is settled when the stream finishes.
func PlanTask(t *Task) {
	if t.TotalSize <= 0 {
		t.Segments = []*Segment{{Start: 0, End: 0}}
		return
	}
	n := SegmentCount(t.TotalSize, t.Resumable)
	if t.MaxConnections < n {
		t.MaxConnections = n
	}
	t.Segments = PlanSegments(t.TotalSize, n)
}

// SplitSegment shrinks a live segment at the midpoint of its remaining
// range and returns the newly spawned right half, or nil when the
// remainder is too small to be worth a second connection. The caller
// must hold the engine's task lock while calling this; the running
// worker observes the shrink through FinalOffset before its next chunk.
func SplitSegment(s *Segment) *Segment {
	end := s.FinalOffset()
	done := s.Read()
	remaining := end - (s.Start + done) + 1
	if remaining < MIN_SPLIT_REMAINDER {
		return nil
	}
	mid := s.Start + done + remaining/2
	spawn := &Segment{Start: mid, End: end}
	s.SetFinalOffset(mid - 1)
	return spawn
}
