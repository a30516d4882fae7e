// Package serial provides a clean, idiomatic Go library for serial port communication
// on Linux.
//
// Ports are opened non-blocking and wrapped in the runtime poller, so reads and writes
// can be interrupted with a context or a deadline and a blocked Read returns when the
// port is closed. The session package builds its line-oriented console on top of it.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, no flow control):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	// Simple I/O
//	n, err := port.Write([]byte("AT\r\n"))
//	buffer := make([]byte, 256)
//	n, err = port.Read(buffer)
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(9600),
//	    serial.WithParity(serial.ParityEven),
//	    serial.WithFlowControl(serial.FlowControlRTSCTS),
//	    serial.WithInitialDTR(false),
//	    serial.WithFlushOnOpen(),
//	)
//
// The port is locked with flock(2) while open; a second Open of the same device fails
// with ErrDeviceInUse.
//
// # Port Discovery
//
// List available serial ports and get USB device metadata:
//
//	ports, err := serial.ListPorts()
//	for _, portPath := range ports {
//	    info, _ := serial.GetPortInfo(portPath)
//	    fmt.Printf("%s: %s (VID=%s PID=%s Serial=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID, info.SerialNumber)
//	}
//
// # Device Removal
//
// WatchRemoval closes its channel when the device node disappears, e.g. when a USB
// adapter is unplugged:
//
//	removed, err := serial.WatchRemoval(ctx, "/dev/ttyUSB0")
//	<-removed
//
// # Context Support
//
// All I/O operations support context for timeout and cancellation control:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	n, err := port.WriteContext(ctx, data)
//	n, err = port.ReadContext(ctx, buffer)
//
// # Error Handling
//
// Use errors.Is() for error type checking:
//
//	if errors.Is(err, serial.ErrDeviceInUse) {
//	    // Another process holds the port
//	}
//
// # Default Configuration
//
//   - BaudRate: 115200
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - FlowControl: None
package serial
