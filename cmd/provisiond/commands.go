package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/swartninja/provisioner/internal/brokerconfig"
	"github.com/swartninja/provisioner/internal/config"
	"github.com/swartninja/provisioner/internal/logging"
	"github.com/swartninja/provisioner/internal/ui"
)

// Daemon flags
var (
	settingsPath string
	logLevel     string
	dataDir      string
	radioBackend string
	once         bool
	assumeYes    bool
	force        bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (default: $XDG_CONFIG_HOME/provisioner/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory backing the config volume (overrides storage.data_dir)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(settingsCmd)
}

// loadSettings reads the settings file and applies flag overrides
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(settingsPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		s.Storage.DataDir = dataDir
	}
	if logLevel != "" {
		s.Log.Level = logLevel
	}
	if radioBackend != "" {
		s.Radio.Backend = radioBackend
	}
	if errs := s.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return s, nil
}

// runCmd is the daemon entry point
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the provisioning sequence and service loop",
	Long: `Run one boot pass and then the service loop.

The boot pass loads the broker configuration, checks for a double reset and
either joins the known network or opens the configuration portal. When no
usable broker address results, the boot sequence is restarted according to
restart.mode: "exec" re-executes the binary, "loop" reruns the pass in-process.

Once provisioned, the daemon services the update announcer and the reset
detector until it receives SIGINT or SIGTERM.`,
	Example: `  # Run with the settings file in the default location
  provisiond run

  # Simulated radio, debug logging
  provisiond run --radio sim --log-level debug

  # Stop after the boot pass (for scripted checks)
  provisiond run --once`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	runCmd.Flags().StringVar(&radioBackend, "radio", "", "Radio backend: sim or nmcli (overrides radio.backend)")
	runCmd.Flags().BoolVar(&once, "once", false, "Exit after the boot pass instead of running the service loop")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	if err := logging.Initialize(s.Log.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	d, err := newDaemon(s)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := d.boot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logging.Info("Interrupted during boot")
			return nil
		}
		return err
	}
	logging.Info("Boot pass complete",
		zap.String("outcome", report.Outcome.String()),
		zap.String("mode", report.Mode.String()),
		zap.Bool("persisted", report.Persisted),
	)

	if once {
		return nil
	}
	logging.Info("Entering service loop", zap.Duration("interval", s.ServiceLoop.Interval))
	return d.controller.Serve(ctx)
}

// configCmd groups the config record commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or clear the stored broker configuration",
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configClearCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored broker configuration",
	Long: `Read the config record from the device volume and display it.

The password is masked. When the record is missing or unreadable the
compiled-in defaults that the next boot would use are shown instead.`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	store, dir, err := openStore(s)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Stored Configuration", "provisiond config show",
		ui.KV{Key: "Volume", Value: dir},
		ui.KV{Key: "Record", Value: store.Path()},
	)

	cfg, err := store.Load()
	if err != nil {
		p.PrintFailure("Config record unavailable", err, storeTroubleshooting(err))
		details := append(ui.ConfigDetails(brokerconfig.Defaults()), ui.KV{Key: "Source", Value: "compiled-in defaults"})
		p.PrintWarning("Next boot will use defaults", details...)
		return nil
	}

	details := ui.ConfigDetails(cfg)
	if cfg.Usable() {
		p.PrintSuccess("Broker configured", details...)
		return nil
	}
	p.PrintWarning("Broker address or port missing", append(details,
		ui.KV{Key: "Next boot", Value: "forced restart into the portal"})...)
	return nil
}

var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored broker configuration",
	Long: `Delete the config record from the device volume.

The next boot falls back to the compiled-in broker defaults. Double-reset the
device afterwards to enter new values through the configuration portal.`,
	Example: `  # Interactive confirmation
  provisiond config clear

  # Non-interactive
  provisiond config clear --yes`,
	RunE: runConfigClear,
}

func init() {
	configClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runConfigClear(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	store, _, err := openStore(s)
	if err != nil {
		return err
	}

	if !assumeYes && !ui.ClearConfigConfirmation(store.Path()).Ask(cmd.InOrStdin(), cmd.OutOrStdout()) {
		return nil
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if err := store.Remove(); err != nil {
		p.PrintFailure("Failed to clear configuration", err, storeTroubleshooting(err))
		return err
	}
	p.PrintSuccess("Configuration cleared", ui.KV{Key: "Record", Value: store.Path()})
	return nil
}

func storeTroubleshooting(err error) []string {
	switch {
	case brokerconfig.IsNotFound(err):
		return []string{
			"No configuration has been submitted yet",
			"Double-reset the device to open the configuration portal",
		}
	case brokerconfig.IsNotMounted(err):
		return []string{
			"Check that storage.data_dir exists and is readable",
			"Pass --data-dir to point at the device volume",
		}
	case brokerconfig.IsMalformed(err), brokerconfig.IsTooLarge(err):
		return []string{
			"The record is damaged and will be ignored on boot",
			"Run 'provisiond config clear' and submit the portal form again",
		}
	case brokerconfig.IsWriteFailed(err):
		return []string{"Check that the data directory is writable by this user"}
	default:
		return nil
	}
}

// settingsCmd groups the settings file commands
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the daemon settings file",
}

func init() {
	settingsCmd.AddCommand(settingsInitCmd)
	settingsCmd.AddCommand(settingsShowCmd)
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with default values",
	RunE:  runSettingsInit,
}

func init() {
	settingsInitCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing settings file")
}

func runSettingsInit(cmd *cobra.Command, args []string) error {
	path := settingsPath
	if path == "" {
		p, err := config.GetSettingsPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("settings file %s already exists (use --force to overwrite)", path)
	}

	if err := config.NewSettings().Save(path); err != nil {
		return err
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Settings written", ui.KV{Key: "Path", Value: path})
	return nil
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as YAML",
	RunE:  runSettingsShow,
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
