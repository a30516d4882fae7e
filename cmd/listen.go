/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/serialmon/internal/tui/components"
	"github.com/allbin/serialmon/session"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen [port]",
	Short: "Print lines received on a serial port",
	Long: `Print every line received on a serial port to stdout until interrupted.

Lines are reassembled across reads and decoded with --encoding. Status
messages are printed too unless --raw is given. The command exits with an
error if the connection is lost.

Example usage:
  serialmon listen /dev/ttyUSB0
  serialmon listen /dev/ttyUSB0 --baud 9600 --no-timestamps
  serialmon listen --raw /dev/ttyACM0 > capture.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var port string
		if len(args) == 1 {
			port = args[0]
		}
		noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")
		raw, _ := cmd.Flags().GetBool("raw")
		hex, _ := cmd.Flags().GetBool("hex")

		a, err := loadApp(cmd, port, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink := newPrintSink(cmd.OutOrStdout(), !noTimestamps, hex, raw)
		s, err := a.newSession(sink, promptPort)
		if err != nil {
			return err
		}
		return listen(ctx, s, sink, a.cfg.Baud)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().Bool("no-timestamps", false, "Hide timestamps from output")
	listenCmd.Flags().Bool("hex", false, "Show received lines as hex")
	listenCmd.Flags().Bool("raw", false, "Raw output mode: received text only, no timestamps or status lines")
}

// connector is the part of the session listen and send use
type connector interface {
	Connect(ctx context.Context, rate int) error
	Send(ctx context.Context, command string) error
	Disconnect()
}

// listen keeps the connection open until ctx ends or the connection is lost
func listen(ctx context.Context, s connector, sink *printSink, rate int) error {
	if err := s.Connect(ctx, rate); err != nil {
		return err
	}
	defer s.Disconnect()

	select {
	case <-ctx.Done():
		return nil
	case d := <-sink.Lost():
		return d.err()
	}
}

type lostConnection struct {
	reason session.DisconnectReason
	cause  error
}

func (l lostConnection) err() error {
	if l.cause == nil {
		return fmt.Errorf("connection lost: %s", l.reason)
	}
	return fmt.Errorf("connection lost: %s: %w", l.reason, l.cause)
}

// printSink writes session lines to a stream
type printSink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter *components.DataFormatter
	raw       bool
	now       func() time.Time

	lost chan lostConnection
}

func newPrintSink(out io.Writer, timestamps, hex, raw bool) *printSink {
	return &printSink{
		out:       out,
		formatter: components.NewDataFormatter(hex, timestamps),
		raw:       raw,
		now:       time.Now,
		lost:      make(chan lostConnection, 1),
	}
}

func (p *printSink) OnLine(text string, kind session.LineKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.raw {
		if kind == session.KindIncoming {
			fmt.Fprintln(p.out, text)
		}
		return
	}
	for _, row := range p.formatter.FormatEntry(components.Entry{Timestamp: p.now(), Text: text, Kind: kind}) {
		fmt.Fprintln(p.out, row)
	}
}

func (p *printSink) OnStateChange(session.State) {}

// OnDisconnect reports teardowns the user did not ask for on Lost
func (p *printSink) OnDisconnect(reason session.DisconnectReason, cause error) {
	if reason == session.ReasonUserRequested {
		return
	}
	select {
	case p.lost <- lostConnection{reason: reason, cause: cause}:
	default:
	}
}

func (p *printSink) Lost() <-chan lostConnection {
	return p.lost
}
