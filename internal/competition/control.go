package competition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/cellnode/internal/protocol"
)

// StartCompetition waits for the start service, then asks the controller to
// start the competition exactly once.
//
// The wait has no timeout because the controller may come up long after this
// node. A failed start is logged and swallowed so the caller still enters the
// event loop. The only error returned is ctx's, when shutdown interrupts the
// wait or the call.
func StartCompetition(ctx context.Context, client ServiceClient, logger *slog.Logger) error {
	var resp protocol.TriggerResponse
	err := callWhenReady(ctx, client, protocol.ServiceStartCompetition, protocol.TriggerRequest{}, &resp, logger)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("failed to start the competition", "error", err)
		return nil
	}
	if !resp.Success {
		logger.Error("failed to start the competition", "reason", resp.Message)
		return nil
	}
	logger.Info("competition started")
	return nil
}

// ControlGripper enables or disables the vacuum gripper.
func ControlGripper(ctx context.Context, client ServiceClient, enable bool, logger *slog.Logger) (bool, error) {
	return control(ctx, client, protocol.ServiceGripperControl, protocol.GripperControlRequest{Enable: enable}, logger)
}

// ControlConveyor sets the conveyor belt power.
func ControlConveyor(ctx context.Context, client ServiceClient, power float64, logger *slog.Logger) (bool, error) {
	if power < 0 || power > 100 {
		return false, fmt.Errorf("conveyor power must be within [0, 100], got %v", power)
	}
	return control(ctx, client, protocol.ServiceConveyorControl, protocol.ConveyorControlRequest{Power: power}, logger)
}

// ControlDrone dispatches the delivery drone for a shipment.
func ControlDrone(ctx context.Context, client ServiceClient, shipmentType string, logger *slog.Logger) (bool, error) {
	return control(ctx, client, protocol.ServiceDroneControl, protocol.DroneControlRequest{ShipmentType: shipmentType}, logger)
}

func control(ctx context.Context, client ServiceClient, name string, req any, logger *slog.Logger) (bool, error) {
	var resp protocol.ControlResponse
	if err := callWhenReady(ctx, client, name, req, &resp, logger); err != nil {
		logger.Error("service call failed", "service", name, "error", err)
		return false, err
	}
	if !resp.Success {
		logger.Error("service reported failure", "service", name)
		return false, nil
	}
	logger.Info("service call succeeded", "service", name)
	return true, nil
}

// callWhenReady blocks until name is reachable and then calls it once.
func callWhenReady(ctx context.Context, client ServiceClient, name string, req, resp any, logger *slog.Logger) error {
	if !client.Exists(ctx, name) {
		logger.Info("waiting for service to be ready", "service", name)
		if err := client.WaitForService(ctx, name); err != nil {
			return fmt.Errorf("wait for %s: %w", name, err)
		}
		logger.Info("service is now ready", "service", name)
	}
	logger.Info("requesting service call", "service", name)
	if err := client.Call(ctx, name, req, resp); err != nil {
		return err
	}
	return nil
}
