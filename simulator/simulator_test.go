package simulator

import (
	"strings"
	"testing"
	"time"

	"github.com/dustwave-cnc/cncstream/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLineWithin(t *testing.T, s *Simulator, timeout time.Duration) string {
	t.Helper()
	line, ok, err := s.ReadLine(timeout)
	require.NoError(t, err)
	require.True(t, ok, "expected a line within %s", timeout)
	return line
}

func TestSimulatorEmitsBannerOnConnect(t *testing.T) {
	s := New()
	defer s.Close()

	line := readLineWithin(t, s, time.Second)
	assert.True(t, protocol.IsBanner(line))
}

func TestSimulatorAcksGCodeLines(t *testing.T) {
	s := New()
	defer s.Close()
	readLineWithin(t, s, time.Second) // banner

	_, err := s.Write([]byte("G1 X10 F500\n"))
	require.NoError(t, err)

	line := readLineWithin(t, s, time.Second)
	assert.Equal(t, "ok", line)
}

func TestSimulatorStatusQueryRoundTrips(t *testing.T) {
	s := New()
	defer s.Close()
	readLineWithin(t, s, time.Second) // banner

	require.NoError(t, s.WriteByte(protocol.CmdStatusQuery))
	line := readLineWithin(t, s, time.Second)

	status := protocol.ParseStatusReport(line)
	assert.Equal(t, protocol.StateIdle, status.State)
}

func TestSimulatorMotionAdvancesTowardTarget(t *testing.T) {
	s := New()
	defer s.Close()
	readLineWithin(t, s, time.Second) // banner

	_, err := s.Write([]byte("G1 X10 F6000\n")) // 100 mm/s
	require.NoError(t, err)
	readLineWithin(t, s, time.Second) // ok for the move

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.WriteByte(protocol.CmdStatusQuery))
	line := readLineWithin(t, s, time.Second)
	status := protocol.ParseStatusReport(line)
	assert.Greater(t, status.MachinePos.X, 0.0)
	assert.LessOrEqual(t, status.MachinePos.X, 10.0)
}

func TestSimulatorHandlesSettingsQuery(t *testing.T) {
	s := New()
	defer s.Close()
	readLineWithin(t, s, time.Second) // banner

	_, err := s.Write([]byte("$$\n"))
	require.NoError(t, err)

	var sawSetting0 bool
	for i := 0; i < 50; i++ {
		line, ok, err := s.ReadLine(time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		if strings.HasPrefix(line, "$0=") {
			sawSetting0 = true
		}
		if line == "ok" {
			break
		}
	}
	assert.True(t, sawSetting0)
}

func TestSimulatorUnlockCommand(t *testing.T) {
	s := New()
	defer s.Close()
	readLineWithin(t, s, time.Second) // banner

	_, err := s.Write([]byte("$X\n"))
	require.NoError(t, err)
	assert.Equal(t, "[MSG:'$X' unlock]", readLineWithin(t, s, time.Second))
	assert.Equal(t, "ok", readLineWithin(t, s, time.Second))
}

func TestSimulatorSoftResetReemitsBanner(t *testing.T) {
	s := New()
	defer s.Close()
	readLineWithin(t, s, time.Second) // banner

	require.NoError(t, s.WriteByte(protocol.CmdSoftReset))
	line := readLineWithin(t, s, time.Second)
	assert.True(t, protocol.IsBanner(line))
}
