package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newPTYPair is the harness every serial-transport test drives against: a
// PTY pair standing in for a real /dev/ttyUSB0, with the master end
// playing the part of the firmware.
func newPTYPair(t *testing.T) (master *Port, slaveDevice string) {
	t.Helper()
	m, s, err := OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("PTY unavailable in this sandbox: %v", err)
	}
	name, err := m.PTSName()
	require.NoError(t, err)
	s.Close()
	t.Cleanup(func() { m.Close() })
	return m, name
}

func TestSerialTransportReadLine(t *testing.T) {
	master, device := newPTYPair(t)
	st, err := OpenSerial(device, 115200)
	require.NoError(t, err)
	defer st.Close()

	_, err = master.Write([]byte("ok\r\n"))
	require.NoError(t, err)

	line, ok, err := st.ReadLine(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ok", line)
}

func TestSerialTransportReadLineTimesOutCleanly(t *testing.T) {
	_, device := newPTYPair(t)
	st, err := OpenSerial(device, 115200)
	require.NoError(t, err)
	defer st.Close()

	_, ok, err := st.ReadLine(50 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
}
