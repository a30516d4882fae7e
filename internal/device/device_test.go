package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/internal/logging"
	"github.com/allbin/serialmon/session"
)

func openPTY(t *testing.T) (*os.File, string) {
	t.Helper()

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pseudo-terminals not available: %v", err)
	}
	name := tty.Name()
	tty.Close()
	t.Cleanup(func() { ptmx.Close() })
	return ptmx, name
}

func TestCheck(t *testing.T) {
	p := &Provider{}
	if runtime.GOOS != "linux" {
		assert.Error(t, p.Check())
		return
	}
	assert.NoError(t, p.Check())

	old := devDir
	devDir = filepath.Join(t.TempDir(), "missing")
	defer func() { devDir = old }()
	assert.Error(t, p.Check())
}

func TestRequestPortFixedPath(t *testing.T) {
	p := &Provider{Path: "/dev/ttyUSB7", Logger: logging.NewNop()}

	tr, err := p.RequestPort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB7", tr.Name())
}

func TestRequestPortDiscovery(t *testing.T) {
	tests := []struct {
		name    string
		ports   []string
		choose  Chooser
		want    string
		wantErr error
	}{
		{
			name:    "nothing found",
			ports:   nil,
			wantErr: ErrNoPorts,
		},
		{
			name:  "single port without chooser",
			ports: []string{"/dev/ttyACM0"},
			want:  "/dev/ttyACM0",
		},
		{
			name:  "chooser picks",
			ports: []string{"/dev/ttyACM0", "/dev/ttyUSB0"},
			choose: func(_ context.Context, ports []serial.PortInfo) (string, error) {
				return ports[1].Path, nil
			},
			want: "/dev/ttyUSB0",
		},
		{
			name:  "chooser aborted",
			ports: []string{"/dev/ttyACM0", "/dev/ttyUSB0"},
			choose: func(context.Context, []serial.PortInfo) (string, error) {
				return "", session.ErrPortSelectionCancelled
			},
			wantErr: session.ErrPortSelectionCancelled,
		},
		{
			name:  "chooser returns nothing",
			ports: []string{"/dev/ttyACM0"},
			choose: func(context.Context, []serial.PortInfo) (string, error) {
				return "", nil
			},
			wantErr: session.ErrPortSelectionCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Provider{
				Ports:  func() ([]string, error) { return tt.ports, nil },
				Choose: tt.choose,
				Logger: logging.NewNop(),
			}

			tr, err := p.RequestPort(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.Name())
		})
	}
}

func TestRequestPortAmbiguousWithoutChooser(t *testing.T) {
	p := &Provider{Ports: func() ([]string, error) { return []string{"/dev/ttyS0", "/dev/ttyS1"}, nil }}

	_, err := p.RequestPort(context.Background())
	assert.ErrorContains(t, err, "--port")
}

func TestRequestPortDiscoveryError(t *testing.T) {
	boom := errors.New("boom")
	p := &Provider{Ports: func() ([]string, error) { return nil, boom }}

	_, err := p.RequestPort(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRequestPortCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Provider{Path: "/dev/ttyS0"}).RequestPort(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{serial.ErrDeviceInUse, session.ErrPortAlreadyOpen},
		{serial.ErrInvalidBaudRate, session.ErrUnsupportedConfiguration},
		{serial.ErrInvalidConfig, session.ErrUnsupportedConfiguration},
		{serial.ErrDeviceNotFound, session.ErrTransportUnavailable},
		{serial.ErrPermissionDenied, session.ErrTransportUnavailable},
		{errors.New("other"), session.ErrTransportUnavailable},
	}

	for _, tt := range tests {
		got := classify(tt.err)
		assert.ErrorIs(t, got, tt.want, tt.err.Error())
		assert.ErrorIs(t, got, tt.err)
	}
}

func TestTransportOpenMissingDevice(t *testing.T) {
	tr := NewTransport("/dev/nonexistent_serial_port", logging.NewNop())

	err := tr.Open(context.Background(), session.OpenConfig{Rate: 9600})
	assert.ErrorIs(t, err, session.ErrTransportUnavailable)
	assert.ErrorIs(t, err, serial.ErrDeviceNotFound)
}

func TestTransportOpenUnsupportedRate(t *testing.T) {
	_, name := openPTY(t)
	tr := NewTransport(name, logging.NewNop())

	err := tr.Open(context.Background(), session.OpenConfig{Rate: 12345})
	assert.ErrorIs(t, err, session.ErrUnsupportedConfiguration)
}

func TestTransportOpenTwice(t *testing.T) {
	_, name := openPTY(t)

	first := NewTransport(name, logging.NewNop())
	require.NoError(t, first.Open(context.Background(), session.OpenConfig{Rate: 115200}))
	defer first.Close()

	second := NewTransport(name, logging.NewNop())
	err := second.Open(context.Background(), session.OpenConfig{Rate: 115200})
	assert.ErrorIs(t, err, session.ErrPortAlreadyOpen)
}

func TestTransportReadWrite(t *testing.T) {
	ptmx, name := openPTY(t)

	tr := NewTransport(name, logging.NewNop(), serial.WithFlushOnOpen())
	require.NoError(t, tr.Open(context.Background(), session.OpenConfig{Rate: 115200}))
	defer tr.Close()

	_, err := ptmx.Write([]byte("OK\r\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	buf := make([]byte, 64)
	n, err := tr.ReadContext(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(buf[:n]))

	n, err = tr.WriteContext(ctx, []byte("AT\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got := make([]byte, 64)
	n, err = ptmx.Read(got)
	require.NoError(t, err)
	assert.Equal(t, "AT\r\n", string(got[:n]))
}

func TestTransportReadCancelled(t *testing.T) {
	_, name := openPTY(t)

	tr := NewTransport(name, logging.NewNop())
	require.NoError(t, tr.Open(context.Background(), session.OpenConfig{Rate: 9600}))
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := tr.ReadContext(ctx, make([]byte, 16))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransportCloseUnblocksRead(t *testing.T) {
	_, name := openPTY(t)

	tr := NewTransport(name, logging.NewNop())
	require.NoError(t, tr.Open(context.Background(), session.OpenConfig{Rate: 9600}))

	result := make(chan error, 1)
	go func() {
		_, err := tr.ReadContext(context.Background(), make([]byte, 16))
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-result:
		assert.ErrorIs(t, err, serial.ErrPortClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after close")
	}
}

func TestTransportUnopened(t *testing.T) {
	tr := NewTransport("/dev/ttyS9", logging.NewNop())

	_, err := tr.ReadContext(context.Background(), make([]byte, 1))
	assert.ErrorIs(t, err, serial.ErrPortClosed)
	_, err = tr.WriteContext(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, serial.ErrPortClosed)
	assert.NoError(t, tr.Close())
}

func TestNotifyDisconnect(t *testing.T) {
	node := filepath.Join(t.TempDir(), "ttyFAKE0")
	require.NoError(t, os.WriteFile(node, nil, 0o600))

	tr := NewTransport(node, logging.NewNop())
	removed := tr.NotifyDisconnect(context.Background())

	require.NoError(t, os.Remove(node))

	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("removal not reported")
	}
}

func TestNotifyDisconnectUnavailable(t *testing.T) {
	tr := NewTransport("/nonexistent/dir/ttyUSB0", logging.NewNop())
	removed := tr.NotifyDisconnect(context.Background())

	select {
	case <-removed:
		t.Fatal("channel closed without a removal")
	case <-time.After(20 * time.Millisecond):
	}
}
