/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	serial "github.com/allbin/serialmon"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display detailed information about a serial port including USB metadata.

Examples:
  serialmon info /dev/ttyUSB0
  serialmon info /dev/ttyACM0

For USB devices, this displays vendor/product IDs, serial numbers and the
manufacturer and product strings extracted from sysfs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := serial.GetPortInfo(args[0])
		if err != nil {
			return fmt.Errorf("getting port info: %w", err)
		}
		printInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printInfo(out io.Writer, info *serial.PortInfo) {
	fmt.Fprintf(out, "Port Information: %s\n\n", info.Path)
	fmt.Fprintf(out, "  Name:        %s\n", info.Name)
	fmt.Fprintf(out, "  Description: %s\n", info.Description)

	if !info.IsUSB() {
		return
	}
	fmt.Fprintln(out, "\nUSB Device Information:")
	fmt.Fprintf(out, "  Vendor ID:    %s\n", info.VendorID)
	if info.ProductID != "" {
		fmt.Fprintf(out, "  Product ID:   %s\n", info.ProductID)
	}
	if info.SerialNumber != "" {
		fmt.Fprintf(out, "  Serial:       %s\n", info.SerialNumber)
	}
	if info.Manufacturer != "" {
		fmt.Fprintf(out, "  Manufacturer: %s\n", info.Manufacturer)
	}
	if info.Product != "" {
		fmt.Fprintf(out, "  Product:      %s\n", info.Product)
	}
}
