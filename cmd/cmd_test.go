package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/internal/config"
	"github.com/allbin/serialmon/internal/logging"
	"github.com/allbin/serialmon/internal/testing/fakes/faketransport"
	"github.com/allbin/serialmon/session"
)

func quietSession(provider session.Provider, sink session.Sink) *session.Session {
	return session.New(provider, sink, session.WithLogger(logging.NewNop()))
}

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
}

func TestPrintSink(t *testing.T) {
	var buf bytes.Buffer
	sink := newPrintSink(&buf, true, false, false)
	sink.now = fixedClock

	sink.OnLine("OK", session.KindIncoming)
	sink.OnLine("two\rrows", session.KindInfo)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[10:30:00.000]")
	assert.True(t, strings.HasSuffix(lines[0], "OK"))
	assert.True(t, strings.HasSuffix(lines[2], "rows"))
}

func TestPrintSinkRaw(t *testing.T) {
	var buf bytes.Buffer
	sink := newPrintSink(&buf, true, false, true)

	sink.OnLine("Connected to /dev/ttyUSB0", session.KindSuccess)
	sink.OnLine("AT", session.KindOutgoing)
	sink.OnLine("OK", session.KindIncoming)

	assert.Equal(t, "OK\n", buf.String())
}

func TestPrintSinkLost(t *testing.T) {
	sink := newPrintSink(io.Discard, false, false, false)

	sink.OnDisconnect(session.ReasonUserRequested, nil)
	select {
	case <-sink.Lost():
		t.Fatal("user disconnect reported as lost")
	default:
	}

	sink.OnDisconnect(session.ReasonDeviceRemoved, nil)
	sink.OnDisconnect(session.ReasonReadFault, session.ErrReadFault)
	d := <-sink.Lost()
	assert.EqualError(t, d.err(), "connection lost: device-removed")

	fault := lostConnection{reason: session.ReasonReadFault, cause: session.ErrReadFault}
	assert.ErrorIs(t, fault.err(), session.ErrReadFault)
}

func TestListenUntilCancelled(t *testing.T) {
	tr := faketransport.New("/dev/ttyUSB0")
	sink := newPrintSink(io.Discard, false, false, false)
	s := quietSession(faketransport.NewProvider(tr), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listen(ctx, s, sink, 115200) }()

	require.Eventually(t, func() bool { return s.State() == session.StateConnected }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return")
	}
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.Equal(t, 1, tr.CloseCount())
}

func TestListenConnectionLost(t *testing.T) {
	tr := faketransport.New("/dev/ttyUSB0")
	sink := newPrintSink(io.Discard, false, false, false)
	s := quietSession(faketransport.NewProvider(tr), sink)

	done := make(chan error, 1)
	go func() { done <- listen(context.Background(), s, sink, 115200) }()

	require.Eventually(t, func() bool { return s.State() == session.StateConnected }, 2*time.Second, 5*time.Millisecond)
	tr.Fail(errors.New("input/output error"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, session.ErrReadFault)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return")
	}
}

func TestListenConnectFails(t *testing.T) {
	sink := newPrintSink(io.Discard, false, false, false)
	s := quietSession(faketransport.NewProvider(), sink)

	err := listen(context.Background(), s, sink, 115200)
	assert.ErrorIs(t, err, session.ErrPortSelectionCancelled)
}

func TestSendAll(t *testing.T) {
	tr := faketransport.New("/dev/ttyUSB0")
	var buf bytes.Buffer
	sink := newPrintSink(&buf, false, false, false)
	s := quietSession(faketransport.NewProvider(tr), sink)

	err := sendAll(context.Background(), s, sink, 115200, []string{"AT", "ATI"}, time.Second, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []string{"AT\r\n", "ATI\r\n"}, tr.Writes())
	assert.Equal(t, session.StateDisconnected, s.State())
	assert.Contains(t, buf.String(), "ATI")
}

func TestSendAllWriteFault(t *testing.T) {
	tr := faketransport.New("/dev/ttyUSB0").SetWriteError(errors.New("broken pipe"))
	sink := newPrintSink(io.Discard, false, false, false)
	s := quietSession(faketransport.NewProvider(tr), sink)

	err := sendAll(context.Background(), s, sink, 115200, []string{"AT", "ATI"}, time.Second, time.Millisecond)
	assert.ErrorIs(t, err, session.ErrWriteFault)
	assert.Contains(t, err.Error(), `send "AT"`)
}

func TestReadCommands(t *testing.T) {
	cmds, err := readCommands([]string{"AT+CWJAP=", `"ssid"`}, strings.NewReader("ignored"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{`AT+CWJAP= "ssid"`}, cmds)

	cmds, err = readCommands(nil, strings.NewReader("AT\n\n  ATI \r\nAT+GMR"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"AT", "ATI", "AT+GMR"}, cmds)

	cmds, err = readCommands(nil, strings.NewReader("first\nsecond\n"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, cmds)
}

func TestStdinIsTerminal(t *testing.T) {
	assert.False(t, stdinIsTerminal(strings.NewReader("")))

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, stdinIsTerminal(f))
}

func TestTeeSink(t *testing.T) {
	var a, b bytes.Buffer
	first := newPrintSink(&a, false, false, true)
	second := newPrintSink(&b, false, false, true)
	tee := teeSink{first, second}

	tee.OnLine("hello", session.KindIncoming)
	tee.OnStateChange(session.StateConnected)
	tee.OnDisconnect(session.ReasonDeviceRemoved, nil)

	assert.Equal(t, "hello\n", a.String())
	assert.Equal(t, "hello\n", b.String())
	assert.Len(t, first.Lost(), 1)
	assert.Len(t, second.Lost(), 1)
}

func TestPromptPortWithoutTerminal(t *testing.T) {
	stdin := os.Stdin
	defer func() { os.Stdin = stdin }()

	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()
	os.Stdin = f

	_, err = promptPort(context.Background(), []serial.PortInfo{{Path: "/dev/ttyUSB0"}, {Path: "/dev/ttyUSB1"}})
	assert.ErrorContains(t, err, "--port")
}

func TestFilterPorts(t *testing.T) {
	ports := []serial.PortInfo{
		{Name: "ttyUSB0", Path: "/dev/ttyUSB0"},
		{Name: "ttyACM0", Path: "/dev/ttyACM0"},
		{Name: "ttyS0", Path: "/dev/ttyS0"},
		{Name: "ttyAMA0", Path: "/dev/ttyAMA0"},
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyS0", "/dev/ttyAMA0"}},
		{"all", []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyS0", "/dev/ttyAMA0"}},
		{"usb", []string{"/dev/ttyUSB0", "/dev/ttyACM0"}},
		{"USB", []string{"/dev/ttyUSB0", "/dev/ttyACM0"}},
		{"standard", []string{"/dev/ttyS0"}},
		{"arm", []string{"/dev/ttyAMA0"}},
		{"bogus", nil},
	}

	for _, tt := range tests {
		var got []string
		for _, p := range filterPorts(ports, tt.filter) {
			got = append(got, p.Path)
		}
		assert.Equal(t, tt.want, got, "filter %q", tt.filter)
	}
}

func TestGetPortType(t *testing.T) {
	assert.Equal(t, "USB Serial", getPortType("ttyUSB0"))
	assert.Equal(t, "USB CDC/ACM", getPortType("ttyACM3"))
	assert.Equal(t, "Standard Serial", getPortType("ttyS1"))
	assert.Equal(t, "Serial Port", getPortType("rfcomm0"))
}

func TestPortInfosFallback(t *testing.T) {
	infos := portInfos([]string{"/dev/ttyUSB99-missing"})
	require.Len(t, infos, 1)
	assert.Equal(t, "ttyUSB99-missing", infos[0].Name)
	assert.Equal(t, "USB Serial", infos[0].Description)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, []serial.PortInfo{{Name: "ttyUSB0", Path: "/dev/ttyUSB0", Description: "USB Serial Port"}})

	assert.Contains(t, buf.String(), "Found 1 serial port(s)")
	assert.Contains(t, buf.String(), "/dev/ttyUSB0")
	assert.Contains(t, buf.String(), "USB Serial Port")
}

func TestPrintInfo(t *testing.T) {
	var buf bytes.Buffer
	printInfo(&buf, &serial.PortInfo{Name: "ttyS0", Path: "/dev/ttyS0", Description: "Standard Serial Port"})
	assert.Contains(t, buf.String(), "Port Information: /dev/ttyS0")
	assert.NotContains(t, buf.String(), "USB Device Information")

	buf.Reset()
	printInfo(&buf, &serial.PortInfo{Name: "ttyUSB0", Path: "/dev/ttyUSB0", VendorID: "10c4", ProductID: "ea60", Product: "CP2102"})
	assert.Contains(t, buf.String(), "Vendor ID:    10c4")
	assert.Contains(t, buf.String(), "Product:      CP2102")
}

// newTestCommand returns a command carrying the same flags as the root
func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := &cobra.Command{Use: "test"}
	config.AddFlags(c.Flags())
	config.AddLogFlags(c.Flags())
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestLoadApp(t *testing.T) {
	c := newTestCommand(t, "--baud", "9600", "--parity", "even", "--encoding", "latin1")

	a, err := loadApp(c, "/dev/ttyACM1", true)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "/dev/ttyACM1", a.cfg.Port)
	info := a.connectionInfo()
	assert.Equal(t, "9600 8E1 latin1", info.String())

	s, err := a.newSession(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, session.StateDisconnected, s.State())
}

func TestLoadAppLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serialmon.log")
	c := newTestCommand(t, "--log-file", path, "--log-level", "debug")

	a, err := loadApp(c, "", true)
	require.NoError(t, err)
	a.logger.Debug("hello", "error", errors.New("boom"))
	a.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, string(data), "err=boom")
}

func TestLoadAppInvalid(t *testing.T) {
	c := newTestCommand(t, "--baud", "12", "--stop-bits", "3")

	_, err := loadApp(c, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baud:")
	assert.Contains(t, err.Error(), "stop-bits:")
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"capture", "connect", "info", "list", "listen", "send", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "serialmon 1.2.3\n", buf.String())
}
