package cmd

import (
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
)

// SpeedCounter smooths streamed progress samples into bar increments.
// The daemon reports absolute downloaded totals once per second; the
// counter feeds the delta to the bar on its own faster cycle so the
// EWMA speed decorator stays responsive.
type SpeedCounter struct {
	ticker *time.Ticker
	mu     *sync.RWMutex
	// latest absolute downloaded total
	cur int64
	// last value flushed to the bar
	flushed int64
	// refresh rate
	refreshRate time.Duration
	bar         *mpb.Bar
}

func NewSpeedCounter(refreshRate time.Duration) *SpeedCounter {
	sc := SpeedCounter{
		ticker:      time.NewTicker(refreshRate),
		mu:          &sync.RWMutex{},
		refreshRate: refreshRate,
	}
	return &sc
}

func (s *SpeedCounter) SetBar(bar *mpb.Bar) {
	s.bar = bar
}

func (s *SpeedCounter) Start() {
	go s.worker()
}

// Report records the latest absolute downloaded total.
func (s *SpeedCounter) Report(downloaded int64) {
	s.mu.Lock()
	s.cur = downloaded
	s.mu.Unlock()
}

func (s *SpeedCounter) Stop() {
	s.ticker.Stop()
}

func (s *SpeedCounter) worker() {
	for range s.ticker.C {
		if s.bar == nil {
			continue
		}
		s.mu.Lock()
		delta := s.cur - s.flushed
		if delta > 0 {
			s.bar.EwmaIncrInt64(delta, s.refreshRate)
			s.flushed = s.cur
		}
		s.mu.Unlock()
	}
}
