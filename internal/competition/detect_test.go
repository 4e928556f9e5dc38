package competition

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

func TestProximityPresent(t *testing.T) {
	tests := []struct {
		name     string
		reading  protocol.Range
		expected bool
	}{
		{"object well inside range", protocol.Range{Range: 9.5, MaxRange: 10}, true},
		{"gap below threshold", protocol.Range{Range: 9.995, MaxRange: 10}, false},
		{"at max range", protocol.Range{Range: 10, MaxRange: 10}, false},
		{"gap half the threshold", protocol.Range{Range: 0.995, MaxRange: 1}, false},
		{"very close object", protocol.Range{Range: 0.05, MaxRange: 1.5}, true},
		{"reading beyond max range", protocol.Range{Range: 11, MaxRange: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProximityPresent(tt.reading))
		})
	}
}

func TestLaserDetected(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name     string
		ranges   protocol.Samples
		expected bool
	}{
		{"mixed finite and non-finite", protocol.Samples{1.0, nan, 2.0, inf}, true},
		{"only non-finite", protocol.Samples{nan, inf, math.Inf(-1)}, false},
		{"empty scan", protocol.Samples{}, false},
		{"nil scan", nil, false},
		{"single zero sample", protocol.Samples{0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LaserDetected(protocol.LaserScan{Ranges: tt.ranges}))
		})
	}
}

func TestDetectorsThrottleLogging(t *testing.T) {
	clock := newFakeClock()
	slogger, logBuf := NewTestSlogger()
	d := NewDetectors(slogger, clock.Now)

	near := protocol.Range{Range: 0.2, MaxRange: 1}
	far := protocol.Range{Range: 1, MaxRange: 1}
	hit := protocol.LaserScan{Ranges: protocol.Samples{0.4, math.NaN()}}
	miss := protocol.LaserScan{Ranges: protocol.Samples{math.NaN()}}

	for range 5 {
		d.HandleProximity(near)
		d.HandleLaserProfiler(hit)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 1, logBuf.Count(t, "proximity sensor sees something"))
	assert.Equal(t, 1, logBuf.Count(t, "laser profiler sees something"))

	clock.Advance(time.Second)
	d.HandleProximity(far)
	d.HandleLaserProfiler(miss)
	assert.Equal(t, 1, logBuf.Count(t, "proximity sensor sees something"), "no detection must not log")
	assert.Equal(t, 1, logBuf.Count(t, "laser profiler sees something"))

	d.HandleProximity(near)
	d.HandleLaserProfiler(hit)
	assert.Equal(t, 2, logBuf.Count(t, "proximity sensor sees something"))
	assert.Equal(t, 2, logBuf.Count(t, "laser profiler sees something"))
	assert.Contains(t, logBuf.String(), `"valid_ranges":1`)
}
