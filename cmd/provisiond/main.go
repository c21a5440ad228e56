// Provisiond is the boot-time provisioning daemon of a SwartNinja device.
//
// On every start it loads the broker configuration from the device volume,
// checks for the double-reset gesture and either joins the known network or
// opens a configuration portal on a temporary access point. Once a usable
// broker address is in place it keeps servicing the update announcer and
// the reset detector until it is stopped.
//
// Usage:
//
//	provisiond [command] [flags]
//
// See 'provisiond --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swartninja/provisioner/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "provisiond",
	Short: "SwartNinja provisioning daemon",
	Long: `Boot-time provisioning daemon for SwartNinja devices.

Decides at start-up whether the device joins its known network or opens a
configuration portal, persists what the operator submits and restarts the
boot sequence until a usable MQTT broker is configured.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("provisiond %s\n", version.Full())
	},
}
