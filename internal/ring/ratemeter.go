package ring

import (
	"math"
	"sync"
	"time"
)

// rateMeter computes an exponentially weighted moving average of the commit
// rate with a half-life of approximately one second, sampled on the
// controller's ~0.5s status cadence (spec.md §4.1, §9). Idle buffers report
// a rate of zero rather than decaying forever toward it.
type rateMeter struct {
	mu sync.Mutex

	alpha          float64
	lastSampleTime time.Time
	lastCount      uint64
	rate           float64
}

// newRateMeter builds a meter whose alpha gives a 1s half-life when sampled
// every sampleInterval seconds: (1-alpha)^(1s/sampleInterval) = 0.5.
func newRateMeter(sampleInterval time.Duration) *rateMeter {
	samplesPerHalfLife := time.Second.Seconds() / sampleInterval.Seconds()
	alpha := 1 - math.Pow(0.5, 1/samplesPerHalfLife)
	return &rateMeter{alpha: alpha}
}

// sample folds in the elapsed time and event count since the previous
// sample and returns the updated rate in events/sec. The first call seeds
// the meter and returns 0.
func (m *rateMeter) sample(now time.Time, totalCount uint64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastSampleTime.IsZero() {
		m.lastSampleTime = now
		m.lastCount = totalCount
		return 0
	}

	dt := now.Sub(m.lastSampleTime).Seconds()
	if dt <= 0 {
		return m.rate
	}

	instantaneous := float64(totalCount-m.lastCount) / dt
	m.rate = m.alpha*instantaneous + (1-m.alpha)*m.rate
	m.lastSampleTime = now
	m.lastCount = totalCount

	// Clamp away float noise so a long-idle buffer reads exactly 0, not a
	// vanishingly small positive number.
	if m.rate < 1e-9 {
		m.rate = 0
	}
	return m.rate
}

func (m *rateMeter) current() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}
