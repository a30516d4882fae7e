/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/serialmon/internal/tui/colors"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [command...]",
	Short: "Send commands to a serial port and print the replies",
	Long: `Send one or more commands to a serial port, each terminated with CR+LF, and
print what the device answers.

Commands can be provided as:
- Command line arguments: serialmon send --port /dev/ttyUSB0 AT+GMR
- From stdin (pipe), one command per line: printf 'AT\nATI\n' | serialmon send -p /dev/ttyUSB0
- Interactive mode: serialmon send -p /dev/ttyUSB0 (prompts for input)

After each command the replies are printed for --wait before the next one is
sent.

Example usage:
  serialmon send -p /dev/ttyUSB0 AT+GMR
  serialmon send -p /dev/ttyUSB0 --wait 3s "AT+CWLAP"
  cat script.txt | serialmon send -p /dev/ttyACM0 --raw`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetDuration("wait")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		noTimestamps, _ := cmd.Flags().GetBool("no-timestamps")
		raw, _ := cmd.Flags().GetBool("raw")

		commands, err := readCommands(args, cmd.InOrStdin(), stdinIsTerminal(cmd.InOrStdin()))
		if err != nil {
			return err
		}
		if len(commands) == 0 {
			return errors.New("nothing to send")
		}

		a, err := loadApp(cmd, "", false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sink := newPrintSink(cmd.OutOrStdout(), !noTimestamps, false, raw)
		s, err := a.newSession(sink, promptPort)
		if err != nil {
			return err
		}
		return sendAll(ctx, s, sink, a.cfg.Baud, commands, timeout, wait)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().DurationP("wait", "w", time.Second, "How long to print replies after each command")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for writing one command")
	sendCmd.Flags().Bool("no-timestamps", false, "Hide timestamps from output")
	sendCmd.Flags().Bool("raw", false, "Raw output mode: replies only, no timestamps or status lines")
}

// sendAll connects, sends every command in order and lets replies arrive for
// wait after each one.
func sendAll(ctx context.Context, s connector, sink *printSink, rate int, commands []string, timeout, wait time.Duration) error {
	if err := s.Connect(ctx, rate); err != nil {
		return err
	}
	defer s.Disconnect()

	for _, command := range commands {
		wctx, cancel := context.WithTimeout(ctx, timeout)
		err := s.Send(wctx, command)
		cancel()
		if err != nil {
			return fmt.Errorf("send %q: %w", command, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case d := <-sink.Lost():
			timer.Stop()
			return d.err()
		case <-timer.C:
		}
	}
	return nil
}

// readCommands takes the commands from the arguments, from piped stdin or
// from a prompt.
func readCommands(args []string, in io.Reader, interactive bool) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}

	if interactive {
		promptStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve)
		fmt.Print(promptStyle.Render("Enter command to send: "))
	}

	var commands []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			commands = append(commands, line)
		}
		if interactive {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	return commands, nil
}

func stdinIsTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}
