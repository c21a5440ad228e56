// Provision-cfg is the operator tool for SwartNinja provisioning portals.
//
// It finds devices that are serving their configuration portal, shows what
// they offer and submits WiFi and MQTT broker settings, either through an
// interactive wizard or with direct commands suitable for scripts.
//
// Usage:
//
//	provision-cfg [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'provision-cfg --help' for available commands.
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
	Use:   "provision-cfg",
	Short: "SwartNinja Provisioning Utility",
	Long: `A utility for configuring SwartNinja devices through their provisioning portal.

Connect to the device's access point (SwartNinjaNoT<id>), then discover the
portal, review the networks it can see and submit WiFi and MQTT broker
settings.

If no command is specified, the interactive wizard will launch automatically.`,
	Version:      version.Version,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("provision-cfg %s\n", version.Full())
	},
}
