/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/internal/config"
	"github.com/allbin/serialmon/internal/device"
	"github.com/allbin/serialmon/internal/logging"
	"github.com/allbin/serialmon/internal/tui/components"
	"github.com/allbin/serialmon/session"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialmon",
	Short: "Talk to serial devices from the terminal",
	Long: `serialmon opens a serial port, shows what the device sends line by line and
sends commands terminated with CR+LF.

Settings come from flags, SERIALMON_* environment variables and an optional
YAML file ($XDG_CONFIG_HOME/serialmon/config.yaml), in that order.

Example usage:
  serialmon list
  serialmon connect /dev/ttyUSB0 --baud 9600
  serialmon listen --port /dev/ttyACM0
  serialmon send --port /dev/ttyUSB0 AT+GMR`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/serialmon/config.yaml)")
	config.AddFlags(rootCmd.PersistentFlags())
	config.AddLogFlags(rootCmd.PersistentFlags())
}

// app is what every port command needs
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// loadApp resolves the configuration and sets up logging. With quiet set
// nothing is logged unless a log file is configured, since the terminal
// belongs to the TUI.
func loadApp(cmd *cobra.Command, port string, quiet bool) (*app, error) {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	if port != "" {
		cfg.Port = port
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	var out io.Writer = os.Stderr
	switch {
	case cfg.Log.File != "":
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		out, a.closer = f, f
	case quiet:
		out = io.Discard
	}

	a.logger, err = logging.New(logging.Options{Level: level, Format: cfg.Log.Format, Output: out})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newSession wires a session to real serial ports
func (a *app) newSession(sink session.Sink, choose device.Chooser, extra ...session.Option) (*session.Session, error) {
	serialOpts, err := a.cfg.SerialOptions()
	if err != nil {
		return nil, err
	}
	enc, err := a.cfg.TextEncoding()
	if err != nil {
		return nil, err
	}

	provider := &device.Provider{
		Path:    a.cfg.Port,
		Options: serialOpts,
		Choose:  choose,
		Logger:  a.logger,
	}
	opts := append([]session.Option{
		session.WithLogger(a.logger),
		session.WithEncoding(enc),
	}, extra...)
	return session.New(provider, sink, opts...), nil
}

// connectionInfo is the status bar summary of the line settings
func (a *app) connectionInfo() components.ConnectionInfo {
	return components.ConnectionInfo{
		BaudRate:    a.cfg.Baud,
		DataBits:    a.cfg.DataBits,
		Parity:      a.cfg.Parity,
		StopBits:    a.cfg.StopBits,
		FlowControl: a.cfg.FlowControl,
		Encoding:    a.cfg.Encoding,
	}
}

// promptPort asks on the terminal which of several ports to use
func promptPort(ctx context.Context, ports []serial.PortInfo) (string, error) {
	if stat, err := os.Stdin.Stat(); err != nil || stat.Mode()&os.ModeCharDevice == 0 {
		return "", errors.New("several serial ports found and stdin is not a terminal, choose one with --port")
	}

	options := make([]huh.Option[string], 0, len(ports))
	for _, p := range ports {
		label := p.Path
		if p.Description != "" {
			label = fmt.Sprintf("%-16s %s", p.Path, p.Description)
		}
		options = append(options, huh.NewOption(label, p.Path))
	}

	var path string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Select a serial port").
			Options(options...).
			Value(&path),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", session.ErrPortSelectionCancelled
		}
		return "", err
	}
	return path, nil
}
