// Package device connects the session to real serial ports through package
// serial.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/session"
)

// devDir is probed by Check
var devDir = "/dev"

// Chooser picks one of the discovered ports and returns its path. It returns
// an error wrapping session.ErrPortSelectionCancelled when the user backs out.
type Chooser func(ctx context.Context, ports []serial.PortInfo) (string, error)

// ErrNoPorts is returned by RequestPort when discovery finds nothing
var ErrNoPorts = errors.New("no serial ports found")

// Provider hands out Transports for serial devices
type Provider struct {
	// Path skips selection when set
	Path string
	// Options are applied on every open, before the session's baud rate
	Options []serial.Option
	// Ports lists candidate device paths (serial.ListPorts if nil)
	Ports func() ([]string, error)
	// Choose is asked when there is more than one candidate. Without it the
	// only candidate is taken and several candidates are an error.
	Choose Chooser
	Logger *slog.Logger
}

var _ session.Provider = (*Provider)(nil)

// Check reports whether serial devices can be used on this host
func (p *Provider) Check() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("serial devices are only supported on linux, not %s", runtime.GOOS)
	}
	if _, err := os.ReadDir(devDir); err != nil {
		return fmt.Errorf("cannot read %s: %w", devDir, err)
	}
	return nil
}

// RequestPort returns a Transport for the configured path or for the port
// the Chooser picks among the discovered ones.
func (p *Provider) RequestPort(ctx context.Context) (session.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Path != "" {
		return p.transport(p.Path), nil
	}

	list := p.Ports
	if list == nil {
		list = serial.ListPorts
	}
	paths, err := list()
	if err != nil {
		return nil, fmt.Errorf("port discovery failed: %w", err)
	}
	if len(paths) == 0 {
		return nil, ErrNoPorts
	}

	if p.Choose == nil {
		if len(paths) > 1 {
			return nil, fmt.Errorf("found %d serial ports, pick one with --port", len(paths))
		}
		return p.transport(paths[0]), nil
	}

	infos := make([]serial.PortInfo, 0, len(paths))
	for _, path := range paths {
		info, err := serial.GetPortInfo(path)
		if err != nil {
			info = &serial.PortInfo{Name: path, Path: path}
		}
		infos = append(infos, *info)
	}

	path, err := p.Choose(ctx, infos)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, session.ErrPortSelectionCancelled
	}
	return p.transport(path), nil
}

func (p *Provider) transport(path string) *Transport {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return NewTransport(path, logger, p.Options...)
}
