package serial

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Port represents a serial port connection interface
type Port interface {
	Name() string
	Close() error
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)
	WriteContext(ctx context.Context, data []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	FlushInput() error
	FlushOutput() error
}

// port is the concrete implementation of the Port interface.
//
// The descriptor is wrapped in a non-blocking *os.File so reads and writes
// park on the runtime poller. That makes deadlines work and lets Close
// unblock a Read running in another goroutine; os.File keeps the descriptor
// alive until every in-flight call has returned.
type port struct {
	mu     sync.RWMutex
	name   string
	file   *os.File
	config Config
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// setDTR sets DTR signal state
func setDTR(fd int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_DTR)
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, unix.TIOCM_DTR)
}

// setRTSSignal sets RTS signal state
func setRTSSignal(fd int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, unix.TIOCM_RTS)
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, unix.TIOCM_RTS)
}

// Open opens a serial port with the given device path and options.
// The port is locked with an exclusive advisory lock; a second Open of the
// same device fails with ErrDeviceInUse.
func Open(device string, opts ...Option) (Port, error) {
	// Apply default configuration
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, openError(device, err)
	}

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return nil, openError(device, err)
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Apply initial signal states if configured
	if config.InitialRTS != nil {
		if err := setRTSSignal(fd, *config.InitialRTS); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial RTS: %w", err)
		}
	}
	if config.InitialDTR != nil {
		if err := setDTR(fd, *config.InitialDTR); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial DTR: %w", err)
		}
	}

	if config.FlushOnOpen {
		if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to flush input: %w", err)
		}
	}

	// fd is non-blocking, so NewFile registers it with the runtime poller
	f := os.NewFile(uintptr(fd), device)
	if f == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to wrap descriptor for %s", device)
	}

	return &port{
		name:   device,
		file:   f,
		config: config,
	}, nil
}

// configurePort puts the terminal in raw mode and applies the line settings
func configurePort(fd int, config Config) error {
	// Get current termios settings
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	// Configure for raw mode, 8N1 by default
	termios.Cflag = unix.CS8 | unix.CREAD | unix.CLOCAL
	termios.Iflag = 0 // No input processing
	termios.Oflag = 0 // No output processing
	termios.Lflag = 0 // No line processing (raw mode)

	// Return as soon as one byte is available; the poller does the waiting
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	baudRate, err := getBaudRate(config.BaudRate)
	if err != nil {
		return err
	}

	// Set speed directly in termios structure
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	// Data bits
	if config.DataBits != 8 {
		termios.Cflag &^= unix.CSIZE
		switch config.DataBits {
		case 5:
			termios.Cflag |= unix.CS5
		case 6:
			termios.Cflag |= unix.CS6
		case 7:
			termios.Cflag |= unix.CS7
		}
	}

	// Stop bits
	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	// Parity
	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}

	// Flow control
	if config.FlowControl == FlowControlRTSCTS {
		termios.Cflag |= unix.CRTSCTS
	}

	// Apply settings immediately
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}

	return nil
}

// Name returns the device path the port was opened with
func (p *port) Name() string {
	return p.name
}

// handle returns the underlying file, or ErrPortClosed.
// The lock is not held across I/O so Close can interrupt a blocked call.
func (p *port) handle() (*os.File, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPortClosed
	}
	return p.file, nil
}

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	p.closed = true
	return p.file.Close()
}

// Read reads data from the serial port. It blocks until at least one byte
// arrives, the read deadline passes, or the port is closed. A hang-up
// (device gone) surfaces as io.EOF or EIO.
func (p *port) Read(buf []byte) (int, error) {
	f, err := p.handle()
	if err != nil {
		return 0, err
	}

	n, err := f.Read(buf)
	return n, translate(err)
}

// Write writes data to the serial port
func (p *port) Write(data []byte) (int, error) {
	f, err := p.handle()
	if err != nil {
		return 0, err
	}

	n, err := f.Write(data)
	return n, translate(err)
}

// ReadContext reads data with context cancellation support
func (p *port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	f, err := p.handle()
	if err != nil {
		return 0, err
	}

	return withContext(ctx, f.SetReadDeadline, func() (int, error) {
		return f.Read(buf)
	})
}

// WriteContext writes data with context cancellation support
func (p *port) WriteContext(ctx context.Context, data []byte) (int, error) {
	f, err := p.handle()
	if err != nil {
		return 0, err
	}

	return withContext(ctx, f.SetWriteDeadline, func() (int, error) {
		return f.Write(data)
	})
}

// withContext runs op, expiring the given deadline when ctx is done so a
// blocked op returns early. The deadline is cleared again afterwards.
func withContext(ctx context.Context, setDeadline func(time.Time) error, op func() (int, error)) (int, error) {
	// Check if context is already cancelled
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		setDeadline(aLongTimeAgo)
	})

	n, err := op()
	if !stop() {
		<-interrupted
		setDeadline(time.Time{})
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return n, ctx.Err()
		}
	}
	return n, translate(err)
}

// SetReadDeadline sets the deadline for pending and future reads
func (p *port) SetReadDeadline(t time.Time) error {
	f, err := p.handle()
	if err != nil {
		return err
	}
	return f.SetReadDeadline(t)
}

// SetWriteDeadline sets the deadline for pending and future writes
func (p *port) SetWriteDeadline(t time.Time) error {
	f, err := p.handle()
	if err != nil {
		return err
	}
	return f.SetWriteDeadline(t)
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	return p.control(func(fd int) error {
		return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
	})
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	return p.control(func(fd int) error {
		return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCOFLUSH)
	})
}

// control runs fn against the raw descriptor without taking it out of
// non-blocking mode (which os.File.Fd would do).
func (p *port) control(fn func(fd int) error) error {
	f, err := p.handle()
	if err != nil {
		return err
	}

	rc, err := f.SyscallConn()
	if err != nil {
		return translate(err)
	}

	var opErr error
	if err := rc.Control(func(fd uintptr) {
		opErr = fn(int(fd))
	}); err != nil {
		return translate(err)
	}
	return opErr
}

// translate maps errors from a concurrently closed file to ErrPortClosed
func translate(err error) error {
	if err != nil && errors.Is(err, os.ErrClosed) {
		return ErrPortClosed
	}
	return err
}
