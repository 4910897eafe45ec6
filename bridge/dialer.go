package bridge

import (
	"context"

	"go.uber.org/multierr"

	"go.viam.com/rtdebridge/components/arm/universalrobots"
	"go.viam.com/rtdebridge/config"
	"go.viam.com/rtdebridge/logging"
)

// Dialer opens the command and feedback channels to the target named by cfg. Both channels must
// be connected to the same robot.
type Dialer func(ctx context.Context, cfg *config.Config, logger logging.Logger) (ControlInterface, ReceiveInterface, error)

// DialUR opens both channels on the realtime interface of a UR controller. The command channel
// paces the loop at the configured frequency.
func DialUR(ctx context.Context, cfg *config.Config, logger logging.Logger) (ControlInterface, ReceiveInterface, error) {
	receive, err := universalrobots.NewReceiveClient(ctx, universalrobots.ReceiveConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Priority: cfg.ReceivePriority,
	}, logger.Sublogger("receive"))
	if err != nil {
		return nil, nil, err
	}
	logger.CDebugw(ctx, "feedback channel connected", "address", cfg.Address())

	command, err := universalrobots.NewControlClient(ctx, universalrobots.ControlConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Frequency: cfg.Frequency,
		Priority:  cfg.ControlPriority,
	}, receive, logger.Sublogger("control"))
	if err != nil {
		return nil, nil, multierr.Combine(err, receive.Close())
	}
	logger.CDebugw(ctx, "command channel connected", "address", cfg.Address())
	return command, receive, nil
}
