package competition

import (
	"log/slog"
	"time"

	"github.com/mattjoyce/cellnode/internal/log"
	"github.com/mattjoyce/cellnode/internal/protocol"
)

const (
	// ProximityThreshold is the minimum gap between max range and the reading,
	// in sensor distance units, that counts as an object in front of the sensor.
	ProximityThreshold = 0.01

	// detectorLogInterval spaces detector log lines.
	detectorLogInterval = time.Second
)

// ProximityPresent reports whether a proximity reading sees an object.
func ProximityPresent(r protocol.Range) bool {
	return r.MaxRange-r.Range > ProximityThreshold
}

// LaserDetected reports whether any laser sample returned.
func LaserDetected(s protocol.LaserScan) bool {
	return s.Ranges.Finite() > 0
}

// Detectors evaluates every proximity and laser reading. Only logging is
// rate-limited; the throttles are the sole state.
type Detectors struct {
	logger       *slog.Logger
	proximityLog *log.Throttle
	laserLog     *log.Throttle
}

// NewDetectors creates the detector handlers. now may be nil.
func NewDetectors(logger *slog.Logger, now func() time.Time) *Detectors {
	return &Detectors{
		logger:       logger,
		proximityLog: log.NewThrottleWithClock(detectorLogInterval, now),
		laserLog:     log.NewThrottleWithClock(detectorLogInterval, now),
	}
}

// HandleProximity is the proximity sensor callback.
func (d *Detectors) HandleProximity(r protocol.Range) {
	if ProximityPresent(r) && d.proximityLog.Allow() {
		d.logger.Info("proximity sensor sees something", "range", r.Range, "max_range", r.MaxRange)
	}
}

// HandleLaserProfiler is the laser profiler callback.
func (d *Detectors) HandleLaserProfiler(s protocol.LaserScan) {
	if LaserDetected(s) && d.laserLog.Allow() {
		d.logger.Info("laser profiler sees something", "valid_ranges", s.Ranges.Finite(), "samples", len(s.Ranges))
	}
}
