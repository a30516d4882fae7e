/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/allbin/serialmon/internal/tui/components"
	"github.com/allbin/serialmon/internal/tui/models"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect [port]",
	Short: "Open an interactive console on a serial port",
	Long: `Open an interactive console on a serial port.

Incoming data is shown line by line with timestamps. Commands typed in insert
mode are sent with a CR+LF terminator. Without a port the available ones are
listed in a picker. Features include:
- Connect (o) and disconnect (x) without leaving the console
- Command history (up/down in insert mode)
- Hex and timestamp display toggles
- Status bar with connection state and why the last connection ended

Logs go to --log-file, if set, since the terminal is taken by the console.

Example usage:
  serialmon connect /dev/ttyUSB0
  serialmon connect /dev/ttyUSB0 --baud 9600
  serialmon connect --encoding iso-8859-1 --log-file /tmp/serialmon.log`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var port string
		if len(args) == 1 {
			port = args[0]
		}
		noConnect, _ := cmd.Flags().GetBool("no-connect")
		scrollback, _ := cmd.Flags().GetInt("scrollback")

		a, err := loadApp(cmd, port, true)
		if err != nil {
			return err
		}
		defer a.Close()

		return runConnectTUI(cmd, a, !noConnect, scrollback)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().Bool("no-connect", false, "Start disconnected (press o to connect)")
	connectCmd.Flags().Int("scrollback", components.DefaultScrollback, "Number of lines kept in the console")
}

func runConnectTUI(cmd *cobra.Command, a *app, autoConnect bool, scrollback int) error {
	bridge := models.NewBridge()
	defer bridge.Close()

	s, err := a.newSession(bridge, bridge.Choose)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	m := models.NewSerialModel(s, bridge, models.Options{
		Rate:        a.cfg.Baud,
		Port:        a.cfg.Port,
		Info:        a.connectionInfo(),
		Scrollback:  scrollback,
		AutoConnect: autoConnect,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	_, err = p.Run()
	return err
}
