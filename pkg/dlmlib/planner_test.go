package dlmlib

import "testing"

func TestSegmentCount(t *testing.T) {
	cases := []struct {
		name      string
		size      int64
		resumable bool
		want      int
	}{
		{"unknown size", 0, true, 1},
		{"negative size", -1, true, 1},
		{"non-resumable", 5 * GB, false, 1},
		{"small", 10 * MB, true, 1},
		{"just below 20MB", 20*MB - 1, true, 1},
		{"exactly 20MB", 20 * MB, true, 2},
		{"just below 100MB", 100*MB - 1, true, 2},
		{"exactly 100MB", 100 * MB, true, 4},
		{"just below 1GB", 1*GB - 1, true, 4},
		{"exactly 1GB", 1 * GB, true, 8},
		{"huge", 50 * GB, true, 8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SegmentCount(c.size, c.resumable); got != c.want {
				t.Errorf("SegmentCount(%d, %v) = %d; want %d", c.size, c.resumable, got, c.want)
			}
		})
	}
}

func TestPlanSegmentsCoverage(t *testing.T) {
	sizes := []int64{1, 7, 1000, 20 * MB, 100*MB + 3, 1*GB + 1}
	for _, size := range sizes {
		n := SegmentCount(size, true)
		segs := PlanSegments(size, n)
		if len(segs) != n {
			t.Fatalf("size %d: got %d segments, want %d", size, len(segs), n)
		}
		if segs[0].Start != 0 {
			t.Errorf("size %d: first segment starts at %d", size, segs[0].Start)
		}
		for i := 1; i < len(segs); i++ {
			if segs[i].Start != segs[i-1].End+1 {
				t.Errorf("size %d: gap between segment %d and %d", size, i-1, i)
			}
		}
		if last := segs[len(segs)-1].End; last != size-1 {
			t.Errorf("size %d: last segment ends at %d, want %d", size, last, size-1)
		}
	}
}

func TestPlanSegmentsTinyFile(t *testing.T) {
	// More requested segments than bytes collapses to one.
	segs := PlanSegments(3, 8)
	if len(segs) != 1 {
		t.Fatalf("got %d segments, want 1", len(segs))
	}
	if segs[0].Start != 0 || segs[0].End != 2 {
		t.Errorf("segment range [%d, %d]; want [0, 2]", segs[0].Start, segs[0].End)
	}
}

func TestPlanTaskUnknownSize(t *testing.T) {
	task := NewTask("http://example.com/f")
	PlanTask(task)
	if len(task.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(task.Segments))
	}
	if task.Segments[0].Start != 0 || task.Segments[0].End != 0 {
		t.Errorf("open segment range [%d, %d]; want [0, 0]", task.Segments[0].Start, task.Segments[0].End)
	}
}

func TestPlanTaskDerivesConnections(t *testing.T) {
	cases := []struct {
		name     string
		size     int64
		maxConns int
		want     int
	}{
		{"default raised to plan", 24 * MB, 1, 2},
		{"large default", 2 * GB, 1, 8},
		{"user asked for more", 24 * MB, 6, 6},
		{"small file stays single", 10 * MB, 1, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			task := NewTask("http://example.com/f")
			task.TotalSize = c.size
			task.Resumable = true
			task.MaxConnections = c.maxConns
			PlanTask(task)
			if task.MaxConnections != c.want {
				t.Errorf("MaxConnections = %d; want %d", task.MaxConnections, c.want)
			}
			if want := SegmentCount(c.size, true); len(task.Segments) != want {
				t.Errorf("got %d segments, want %d", len(task.Segments), want)
			}
		})
	}
}

func TestSplitSegmentMidpoint(t *testing.T) {
	s := &Segment{Start: 0, End: 100*MB - 1}
	s.setRead(20 * MB)

	spawn := SplitSegment(s)
	if spawn == nil {
		t.Fatal("expected a spawned segment")
	}
	// remaining 80MB, midpoint at 20MB + 40MB.
	wantMid := int64(60 * MB)
	if spawn.Start != wantMid {
		t.Errorf("spawn.Start = %d; want %d", spawn.Start, wantMid)
	}
	if spawn.End != 100*MB-1 {
		t.Errorf("spawn.End = %d; want %d", spawn.End, 100*MB-1)
	}
	if s.FinalOffset() != wantMid-1 {
		t.Errorf("shrunk segment end = %d; want %d", s.FinalOffset(), wantMid-1)
	}
}

func TestSplitSegmentSmallRemainder(t *testing.T) {
	s := &Segment{Start: 0, End: MIN_SPLIT_REMAINDER + 100}
	s.setRead(200)
	if spawn := SplitSegment(s); spawn != nil {
		t.Errorf("expected nil for remainder below threshold, got [%d, %d]", spawn.Start, spawn.End)
	}
	if s.FinalOffset() != MIN_SPLIT_REMAINDER+100 {
		t.Error("declined split must not shrink the segment")
	}
}

func TestSplitThenValidate(t *testing.T) {
	task := NewTask("http://example.com/f")
	task.TotalSize = 200 * MB
	task.Resumable = true
	PlanTask(task)

	spawn := SplitSegment(task.Segments[0])
	if spawn == nil {
		t.Fatal("expected split to happen")
	}
	task.AppendSegment(spawn)
	if err := task.Validate(); err != nil {
		t.Fatalf("plan invalid after split: %v", err)
	}
}
