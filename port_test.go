package serial

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaudRate != 115200 {
		t.Errorf("Expected BaudRate 115200, got %d", config.BaudRate)
	}

	if config.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.DataBits)
	}

	if config.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", config.StopBits)
	}

	if config.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Parity)
	}

	if config.FlowControl != FlowControlNone {
		t.Errorf("Expected FlowControl None, got %v", config.FlowControl)
	}

	if config.InitialDTR != nil || config.InitialRTS != nil {
		t.Error("Expected initial modem lines to be left alone by default")
	}
}

func TestGetBaudRate(t *testing.T) {
	tests := []struct {
		input    int
		hasError bool
	}{
		{115200, false},
		{9600, false},
		{300, false},
		{4000000, false},
		{123456, true}, // Invalid baud rate
		{0, true},
	}

	for _, test := range tests {
		result, err := getBaudRate(test.input)
		if test.hasError {
			if !errors.Is(err, ErrInvalidBaudRate) {
				t.Errorf("Expected ErrInvalidBaudRate for %d, got %v", test.input, err)
			}
		} else {
			if err != nil {
				t.Errorf("Unexpected error for baud rate %d: %v", test.input, err)
			}
			if result == 0 {
				t.Errorf("Got zero result for valid baud rate %d", test.input)
			}
		}
	}
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent")
	if err == nil {
		t.Fatal("Expected error when opening non-existent device")
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestOpenNonTerminal(t *testing.T) {
	_, err := Open("/dev/null")
	if err == nil {
		t.Fatal("Expected error when opening a device that is not a terminal")
	}
}

func TestOpenRejectsInvalidOption(t *testing.T) {
	_, err := Open("/dev/nonexistent", WithBaudRate(12345))
	if !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("Expected ErrInvalidBaudRate before touching the device, got %v", err)
	}
}

// openPTY returns the master side of a pseudo-terminal and the path of its
// slave, which behaves enough like a serial line for these tests.
func openPTY(t *testing.T) (*os.File, string) {
	t.Helper()

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pseudo-terminals not available: %v", err)
	}
	name := tty.Name()
	// Only the master is needed; the slave is reopened through Open.
	tty.Close()
	t.Cleanup(func() { ptmx.Close() })
	return ptmx, name
}

func TestPortReadWrite(t *testing.T) {
	ptmx, name := openPTY(t)

	p, err := Open(name, WithBaudRate(9600), WithFlushOnOpen())
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", name, err)
	}
	defer p.Close()

	if p.Name() != name {
		t.Errorf("Name() = %q, want %q", p.Name(), name)
	}

	if _, err := ptmx.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write to master failed: %v", err)
	}

	got := make([]byte, 0, 6)
	buf := make([]byte, 16)
	for len(got) < 6 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		n, err := p.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			t.Fatalf("ReadContext failed after %q: %v", got, err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "hello\n" {
		t.Errorf("read %q, want %q", got, "hello\n")
	}

	if _, err := p.Write([]byte("AT\r\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	echo := make([]byte, 4)
	if _, err := io.ReadFull(ptmx, echo); err != nil {
		t.Fatalf("read from master failed: %v", err)
	}
	if string(echo) != "AT\r\n" {
		t.Errorf("master read %q, want %q", echo, "AT\r\n")
	}
}

func TestPortExclusiveOpen(t *testing.T) {
	_, name := openPTY(t)

	p, err := Open(name)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", name, err)
	}
	defer p.Close()

	_, err = Open(name)
	if !errors.Is(err, ErrDeviceInUse) {
		t.Errorf("second Open error = %v, want ErrDeviceInUse", err)
	}
}

func TestReadContextCancelled(t *testing.T) {
	_, name := openPTY(t)

	p, err := Open(name)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", name, err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	buf := make([]byte, 8)
	_, err = p.ReadContext(ctx, buf)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadContext error = %v, want context.DeadlineExceeded", err)
	}

	// An already-cancelled context never reaches the device
	_, err = p.WriteContext(ctx, []byte("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WriteContext error = %v, want context.DeadlineExceeded", err)
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	_, name := openPTY(t)

	p, err := Open(name)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", name, err)
	}

	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 8)
		_, err := p.Read(buf)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPortClosed) {
			t.Errorf("Read after Close returned %v, want ErrPortClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read was not unblocked by Close")
	}

	if err := p.Close(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("second Close = %v, want ErrPortClosed", err)
	}
	if err := p.FlushOutput(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("FlushOutput after Close = %v, want ErrPortClosed", err)
	}
}

func TestReadDeadline(t *testing.T) {
	_, name := openPTY(t)

	p, err := Open(name)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", name, err)
	}
	defer p.Close()

	if err := p.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}
	_, err = p.Read(make([]byte, 4))
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("Read error = %v, want os.ErrDeadlineExceeded", err)
	}
}
