/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allbin/serialmon/session"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture [port] <output-file>",
	Short: "Capture received lines to a file",
	Long: `Capture incoming lines to a file for later parsing.

Every complete line received is decoded and appended to the output file.
Runs continuously until interrupted (Ctrl+C) or the connection is lost.

The output file is opened in append mode, allowing you to resume captures
without overwriting existing data.

Example usage:
  serialmon capture /dev/ttyUSB0 data.log
  serialmon capture /dev/ttyUSB0 output.txt --baud 9600
  serialmon capture --port /dev/ttyUSB0 capture.log --console`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var port string
		outputPath := args[len(args)-1]
		if len(args) == 2 {
			port = args[0]
		}
		bufferSize, _ := cmd.Flags().GetInt("buffer")
		showConsole, _ := cmd.Flags().GetBool("console")

		a, err := loadApp(cmd, port, false)
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening output file: %w", err)
		}
		defer f.Close()

		file := newPrintSink(f, false, false, true)
		var sink session.Sink = file
		if showConsole {
			sink = teeSink{file, newPrintSink(cmd.OutOrStdout(), true, false, false)}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := a.newSession(sink, promptPort, session.WithChunkSize(bufferSize))
		if err != nil {
			return err
		}
		return listen(ctx, s, file, a.cfg.Baud)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Int("buffer", 4096, "Read buffer size")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

// teeSink hands every callback to each of its sinks
type teeSink []session.Sink

func (t teeSink) OnLine(text string, kind session.LineKind) {
	for _, s := range t {
		s.OnLine(text, kind)
	}
}

func (t teeSink) OnStateChange(state session.State) {
	for _, s := range t {
		s.OnStateChange(state)
	}
}

func (t teeSink) OnDisconnect(reason session.DisconnectReason, cause error) {
	for _, s := range t {
		if o, ok := s.(session.DisconnectObserver); ok {
			o.OnDisconnect(reason, cause)
		}
	}
}
