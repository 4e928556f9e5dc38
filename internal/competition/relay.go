package competition

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mattjoyce/cellnode/internal/protocol"
	"github.com/mattjoyce/cellnode/internal/transport"
)

// RelayControls advertises the gripper, conveyor and drone services on the
// bus and forwards every call to the controller through client. With the
// bridge serving the bus registry, tools reach the controller via the node.
func RelayControls(bus *transport.Bus, client ServiceClient, logger *slog.Logger) {
	bus.Advertise(protocol.ServiceGripperControl, relay(func(ctx context.Context, req protocol.GripperControlRequest) (bool, error) {
		return ControlGripper(ctx, client, req.Enable, logger)
	}))
	bus.Advertise(protocol.ServiceConveyorControl, relay(func(ctx context.Context, req protocol.ConveyorControlRequest) (bool, error) {
		return ControlConveyor(ctx, client, req.Power, logger)
	}))
	bus.Advertise(protocol.ServiceDroneControl, relay(func(ctx context.Context, req protocol.DroneControlRequest) (bool, error) {
		return ControlDrone(ctx, client, req.ShipmentType, logger)
	}))
}

func relay[T any](call func(context.Context, T) (bool, error)) transport.ServiceHandler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		req, err := protocol.Decode[T](raw)
		if err != nil {
			return nil, err
		}
		ok, err := call(ctx, req)
		if err != nil {
			return nil, err
		}
		return protocol.ControlResponse{Success: ok}, nil
	}
}
