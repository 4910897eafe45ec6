package universalrobots

import (
	"bufio"
	"context"
	"encoding/binary"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/rtdebridge/utils"
)

const testPacketLen = 1108

// encodePacket builds a realtime packet carrying tool, joints and the given time.
func encodePacket(robotTime float64, joints, tool [6]float64) []byte {
	buf := make([]byte, testPacketLen)
	binary.BigEndian.PutUint32(buf, testPacketLen)
	putDouble := func(offset int, v float64) {
		binary.BigEndian.PutUint64(buf[offset:], math.Float64bits(v))
	}
	putDouble(offsetTime, robotTime)
	for i := 0; i < 6; i++ {
		putDouble(offsetJointsActual+8*i, joints[i])
		putDouble(offsetToolVector+8*i, tool[i])
	}
	putDouble(offsetRobotMode, float64(RobotModeRunning))
	putDouble(offsetSafetyMode, 1)
	putDouble(offsetProgramState, 2)
	return buf
}

// fakeController streams realtime packets to every client and records the URScript lines it
// receives. A movel line moves the tool to its target immediately unless frozen.
type fakeController struct {
	listener net.Listener
	workers  utils.StoppableWorkers

	mu       sync.Mutex
	tool     [6]float64
	joints   [6]float64
	commands []string
	conns    []net.Conn
	paused   bool
	frozen   bool
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)

	fc := &fakeController{listener: listener, tool: [6]float64{0.1, 0.2, 0.3, 0, 0, 0}}
	fc.workers = utils.NewStoppableWorkers(fc.acceptLoop)
	t.Cleanup(fc.close)
	return fc
}

func (fc *fakeController) port() int {
	return fc.listener.Addr().(*net.TCPAddr).Port
}

func (fc *fakeController) acceptLoop(ctx context.Context) {
	for {
		conn, err := fc.listener.Accept()
		if err != nil {
			return
		}
		fc.mu.Lock()
		fc.conns = append(fc.conns, conn)
		fc.mu.Unlock()
		fc.workers.AddWorkers(
			func(ctx context.Context) { fc.stream(ctx, conn) },
			func(ctx context.Context) { fc.readCommands(conn) },
		)
	}
}

func (fc *fakeController) stream(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		fc.mu.Lock()
		paused := fc.paused
		packet := encodePacket(time.Since(start).Seconds(), fc.joints, fc.tool)
		fc.mu.Unlock()
		if paused {
			continue
		}
		if _, err := conn.Write(packet); err != nil {
			return
		}
	}
}

func (fc *fakeController) readCommands(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		fc.mu.Lock()
		fc.commands = append(fc.commands, line)
		if strings.HasPrefix(line, "movel(") && !fc.frozen {
			if target, ok := parseScriptPose(line); ok {
				fc.tool = target
			}
		}
		fc.mu.Unlock()
	}
}

// parseScriptPose extracts the values of the first p[...] literal in line.
func parseScriptPose(line string) ([6]float64, bool) {
	var out [6]float64
	start := strings.Index(line, "p[")
	end := strings.Index(line, "]")
	if start < 0 || end < start {
		return out, false
	}
	fields := strings.Split(line[start+2:end], ",")
	if len(fields) != 6 {
		return out, false
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, false
		}
		out[i] = v
	}
	return out, true
}

func (fc *fakeController) setTool(tool [6]float64) {
	fc.mu.Lock()
	fc.tool = tool
	fc.mu.Unlock()
}

func (fc *fakeController) setPaused(paused bool) {
	fc.mu.Lock()
	fc.paused = paused
	fc.mu.Unlock()
}

func (fc *fakeController) setFrozen(frozen bool) {
	fc.mu.Lock()
	fc.frozen = frozen
	fc.mu.Unlock()
}

func (fc *fakeController) received() []string {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]string(nil), fc.commands...)
}

// dropConnections closes every client connection but keeps listening.
func (fc *fakeController) dropConnections() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, conn := range fc.conns {
		conn.Close()
	}
	fc.conns = nil
}

func (fc *fakeController) close() {
	fc.listener.Close()
	fc.dropConnections()
	fc.workers.Stop()
}

// waitForCommand polls until a received line has the given prefix.
func waitForCommand(t *testing.T, fc *fakeController, prefix string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, line := range fc.received() {
			if strings.HasPrefix(line, prefix) {
				return line
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no command starting with %q, got %v", prefix, fc.received())
	return ""
}
