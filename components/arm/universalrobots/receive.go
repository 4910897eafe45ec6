package universalrobots

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/realtime"
	"go.viam.com/rtdebridge/spatialmath"
	"go.viam.com/rtdebridge/utils"
)

// RealtimePort is the controller port that streams realtime packets and accepts URScript.
const RealtimePort = 30003

// ErrStaleState is returned when the newest realtime packet is older than the configured limit.
var ErrStaleState = errors.New("ur realtime state is stale")

var (
	connectTimeout     = 5 * time.Second
	respondTimeout     = 2 * time.Second
	readDeadline       = time.Second
	reconnectInterval  = time.Second
	defaultMaxStateAge = time.Second
)

// ReceiveConfig configures the feedback channel.
type ReceiveConfig struct {
	Host string
	// Port defaults to RealtimePort.
	Port int
	// Priority is the SCHED_FIFO priority of the reader thread; 0 keeps the default.
	Priority int
	// MaxStateAge bounds how old the newest packet may be when read. Defaults to one second.
	MaxStateAge time.Duration
}

func address(host string, port int) string {
	if port == 0 {
		port = RealtimePort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ReceiveClient keeps the latest robot state streamed on the realtime interface. A background
// reader decodes every packet and reconnects when the stream drops.
type ReceiveClient struct {
	logger      logging.Logger
	addr        string
	priority    int
	maxStateAge time.Duration
	workers     utils.StoppableWorkers

	mu        sync.Mutex
	conn      net.Conn
	state     RobotState
	stateTime time.Time
	connected bool
	closed    bool
}

// NewReceiveClient connects to the realtime interface and returns once the first packet has been
// decoded.
func NewReceiveClient(ctx context.Context, cfg ReceiveConfig, logger logging.Logger) (*ReceiveClient, error) {
	// this is to speed up failure if the controller is not reachable
	ctx, cancel := context.WithDeadline(ctx, time.Now().Add(connectTimeout))
	defer cancel()

	addr := address(cfg.Host, cfg.Port)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("can't connect to ur realtime interface (%s): %w", addr, err)
	}

	maxStateAge := cfg.MaxStateAge
	if maxStateAge <= 0 {
		maxStateAge = defaultMaxStateAge
	}
	rc := &ReceiveClient{
		logger:      logger,
		addr:        addr,
		priority:    cfg.Priority,
		maxStateAge: maxStateAge,
		conn:        conn,
		connected:   true,
	}

	onData := make(chan struct{})
	var onDataOnce sync.Once
	rc.workers = utils.NewStoppableWorkers(func(cancelCtx context.Context) {
		rc.readLoop(cancelCtx, func() {
			onDataOnce.Do(func() {
				close(onData)
			})
		})
	})

	timer := time.NewTimer(respondTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, multierr.Combine(ctx.Err(), rc.Close())
	case <-timer.C:
		return nil, multierr.Combine(errors.Errorf("ur realtime interface failed to respond in time (%s)", respondTimeout), rc.Close())
	case <-onData:
		return rc, nil
	}
}

func (rc *ReceiveClient) readLoop(ctx context.Context, onHaveData func()) {
	realtime.LockThread(rc.priority, "ur_receive", rc.logger)
	for {
		rc.mu.Lock()
		conn := rc.conn
		rc.mu.Unlock()

		err := rc.read(ctx, conn, onHaveData)
		if ctx.Err() != nil || rc.isClosed() {
			return
		}
		if isConnectionError(err) {
			rc.logger.CDebugw(ctx, "ur realtime stream dropped", "addr", rc.addr, "error", err)
		} else {
			// A fresh connection resynchronizes the packet framing.
			rc.logger.CErrorw(ctx, "ur realtime reader failed, reconnecting", "addr", rc.addr, "error", err)
		}
		goutils.UncheckedError(conn.Close())
		rc.setConnected(false)
		if !rc.reconnect(ctx) {
			return
		}
	}
}

func (rc *ReceiveClient) reconnect(ctx context.Context) bool {
	var d net.Dialer
	for {
		if !goutils.SelectContextOrWait(ctx, reconnectInterval) {
			return false
		}
		rc.logger.CDebugw(ctx, "attempting to reconnect to ur realtime interface", "addr", rc.addr)
		conn, err := d.DialContext(ctx, "tcp", rc.addr)
		if err != nil {
			continue
		}

		rc.mu.Lock()
		if rc.closed {
			rc.mu.Unlock()
			goutils.UncheckedError(conn.Close())
			return false
		}
		rc.conn = conn
		rc.connected = true
		rc.mu.Unlock()
		rc.logger.CInfow(ctx, "reconnected to ur realtime interface", "addr", rc.addr)
		return true
	}
}

func (rc *ReceiveClient) read(ctx context.Context, conn net.Conn, onHaveData func()) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return err
		}

		sizeBuf, err := goutils.ReadBytes(ctx, conn, headerLen)
		if err != nil {
			return err
		}
		msgSize := binary.BigEndian.Uint32(sizeBuf)
		if msgSize <= headerLen || msgSize > maxPacketLen {
			return errors.Errorf("invalid msg size: %d", msgSize)
		}

		body, err := goutils.ReadBytes(ctx, conn, int(msgSize-headerLen))
		if err != nil {
			return err
		}
		state, err := parseRealtimePacket(body)
		if err != nil {
			return err
		}
		rc.setState(state)
		onHaveData()
	}
}

func isConnectionError(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		os.IsTimeout(err)
}

func (rc *ReceiveClient) setState(state RobotState) {
	rc.mu.Lock()
	rc.state = state
	rc.stateTime = time.Now()
	rc.mu.Unlock()
}

func (rc *ReceiveClient) setConnected(connected bool) {
	rc.mu.Lock()
	rc.connected = connected
	rc.mu.Unlock()
}

func (rc *ReceiveClient) isClosed() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.closed
}

// Connected returns whether the realtime stream is currently up.
func (rc *ReceiveClient) Connected() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.connected
}

// State returns the newest robot state. It fails with ErrStaleState if that state is older than
// the configured limit.
func (rc *ReceiveClient) State(ctx context.Context) (RobotState, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if age := time.Since(rc.stateTime); age > rc.maxStateAge {
		return rc.state, errors.Wrapf(ErrStaleState, "newest packet is %v old, from %v", age, rc.stateTime)
	}
	return rc.state, nil
}

// ActualTCPPose returns the actual tool pose from the newest robot state.
func (rc *ReceiveClient) ActualTCPPose(ctx context.Context) (spatialmath.AxisAnglePose, error) {
	state, err := rc.State(ctx)
	if err != nil {
		return spatialmath.AxisAnglePose{}, err
	}
	return state.TCPPose, nil
}

// ActualJointPositions returns the actual joint angles in radians from the newest robot state.
func (rc *ReceiveClient) ActualJointPositions(ctx context.Context) ([]float64, error) {
	state, err := rc.State(ctx)
	if err != nil {
		return nil, err
	}
	return state.JointPositions[:], nil
}

// Close stops the reader and closes the connection. It is safe to call more than once.
func (rc *ReceiveClient) Close() error {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil
	}
	rc.closed = true
	rc.connected = false
	err := rc.conn.Close()
	rc.mu.Unlock()

	rc.workers.Stop()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
