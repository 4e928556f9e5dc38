package competition

import (
	"github.com/mattjoyce/cellnode/internal/protocol"
	"github.com/mattjoyce/cellnode/internal/transport"
)

// Register subscribes the aggregator and detectors to their channels.
// Call it before the bus starts spinning.
func Register(bus *transport.Bus, c *Competition, d *Detectors) {
	transport.Subscribe(bus, protocol.ChannelScore, c.HandleScore)
	transport.Subscribe(bus, protocol.ChannelCompetitionState, c.HandlePhase)
	transport.Subscribe(bus, protocol.ChannelOrders, c.HandleOrder)
	transport.Subscribe(bus, protocol.ChannelJointStates, c.HandleJointState)
	transport.Subscribe(bus, protocol.ChannelProximitySensor, d.HandleProximity)
	transport.Subscribe(bus, protocol.ChannelBreakBeam, c.HandleBreakBeam)
	transport.Subscribe(bus, protocol.ChannelLogicalCamera, c.HandleLogicalCamera)
	transport.Subscribe(bus, protocol.ChannelLaserProfiler, d.HandleLaserProfiler)
	transport.Subscribe(bus, protocol.ChannelGripperState, c.HandleGripperState)
}
