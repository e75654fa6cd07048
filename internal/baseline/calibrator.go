package baseline

import "sync"

const (
	// DefaultNormalizationFactor is used until the first sample arrives.
	DefaultNormalizationFactor = 1.25

	// DefaultMaxSamples bounds the calibration ring.
	DefaultMaxSamples = 500

	// MinSampleRatio and MaxSampleRatio bound the routed/straight-line
	// ratio a sample may have. Roads are never shorter than the great
	// circle, and a detour past 3x is a bad route or bad input.
	MinSampleRatio = 1.0
	MaxSampleRatio = 3.0

	// MinSampleMinutes is the shortest straight-line estimate sampled.
	// Below it fixed overheads dominate the ratio.
	MinSampleMinutes = 1.0
)

// Sample pairs a straight-line estimate with the routed duration for the same trip.
type Sample struct {
	HaversineMinutes float64
	RoutedMinutes    float64
}

// Calibrator keeps the most recent samples and derives the ratio between
// routed and straight-line travel times. It is safe for concurrent use.
type Calibrator struct {
	mu      sync.RWMutex
	samples []Sample
	next    int
	full    bool
	sum     float64
	deflt   float64
}

// NewCalibrator creates a calibrator holding up to maxSamples samples. A
// non-positive maxSamples uses DefaultMaxSamples and a non-positive
// defaultFactor uses DefaultNormalizationFactor.
func NewCalibrator(maxSamples int, defaultFactor float64) *Calibrator {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	if defaultFactor <= 0 {
		defaultFactor = DefaultNormalizationFactor
	}
	return &Calibrator{
		samples: make([]Sample, maxSamples),
		deflt:   defaultFactor,
	}
}

// AddSample records a trip. Trips shorter than MinSampleMinutes and ratios
// outside [MinSampleRatio, MaxSampleRatio] are ignored and reported as false.
func (c *Calibrator) AddSample(haversineMinutes, routedMinutes float64) bool {
	if haversineMinutes < MinSampleMinutes || routedMinutes <= 0 {
		return false
	}
	if ratio := routedMinutes / haversineMinutes; ratio < MinSampleRatio || ratio > MaxSampleRatio {
		return false
	}
	s := Sample{HaversineMinutes: haversineMinutes, RoutedMinutes: routedMinutes}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.full {
		old := c.samples[c.next]
		c.sum -= old.RoutedMinutes / old.HaversineMinutes
	}
	c.samples[c.next] = s
	c.sum += routedMinutes / haversineMinutes
	c.next = (c.next + 1) % len(c.samples)
	if c.next == 0 {
		c.full = true
	}
	return true
}

// Len returns the number of samples held.
func (c *Calibrator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.len()
}

func (c *Calibrator) len() int {
	if c.full {
		return len(c.samples)
	}
	return c.next
}

// NormalizationFactor returns the mean routed/haversine ratio, or the default
// factor when no samples are held.
func (c *Calibrator) NormalizationFactor() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := c.len()
	if n == 0 {
		return c.deflt
	}
	return c.sum / float64(n)
}
