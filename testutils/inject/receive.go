package inject

import (
	"context"

	"go.viam.com/rtdebridge/bridge"
	"go.viam.com/rtdebridge/spatialmath"
)

// Receive is an injected feedback channel.
type Receive struct {
	bridge.ReceiveInterface
	ActualTCPPoseFunc func(ctx context.Context) (spatialmath.AxisAnglePose, error)
	CloseFunc         func() error
}

// ActualTCPPose calls the injected ActualTCPPose or the real version.
func (r *Receive) ActualTCPPose(ctx context.Context) (spatialmath.AxisAnglePose, error) {
	if r.ActualTCPPoseFunc == nil {
		return r.ReceiveInterface.ActualTCPPose(ctx)
	}
	return r.ActualTCPPoseFunc(ctx)
}

// Close calls the injected Close or the real version.
func (r *Receive) Close() error {
	if r.CloseFunc == nil {
		if r.ReceiveInterface == nil {
			return nil
		}
		return r.ReceiveInterface.Close()
	}
	return r.CloseFunc()
}
