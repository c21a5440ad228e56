package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/swartninja/provisioner/internal/discovery"
	"github.com/swartninja/provisioner/internal/portal"
	"github.com/swartninja/provisioner/internal/portalclient"
	"github.com/swartninja/provisioner/internal/ui"
	"github.com/swartninja/provisioner/internal/wizard/tui"
)

// Portal command flags
var (
	portalAddr  string
	scanTimeout int
	retries     int

	ssid         string
	passphrase   string
	brokerServer string
	brokerPort   string
	username     string
	password     string
	waitClose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&portalAddr, "portal", "", "Portal address as ip, ip:port or URL (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&scanTimeout, "timeout", 10, "Discovery timeout in seconds")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", portalclient.DefaultMaxRetries, "Retry attempts for portal requests")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(wizardCmd)
}

// scanCmd discovers portals on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for provisioning portals",
	Long: `Scan for provisioning portals using mDNS/DNS-SD discovery.

Devices advertise their portal while it is open. Join the device's access
point first; the portal is not visible from other networks.`,
	Example: `  # Scan for 10 seconds (default)
  provision-cfg scan

  # Quick 3-second scan
  provision-cfg scan --timeout 3`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Portal Discovery", "provision-cfg scan",
		ui.KV{Key: "Timeout", Value: fmt.Sprintf("%ds", scanTimeout)})

	portals, err := scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(portals) == 0 {
		p.PrintFailure("No portals found", nil, []string{
			"Join the device's access point (SwartNinjaNoT<id>)",
			"Reset the device twice within 10 seconds to open the portal",
			"Try increasing --timeout for slower networks",
			"Use --portal 10.42.0.1 if discovery is blocked",
		})
		return nil
	}

	p.PrintPortals(portals)
	p.Newline()
	p.Println("Use 'provision-cfg info --portal <ip>' to see what a portal offers")
	p.Println("Use 'provision-cfg wizard' for interactive configuration")
	return nil
}

func scan(ctx context.Context) ([]*discovery.Portal, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	return ui.Spin(ctx, ui.NewSpinner("Listening for portal advertisements"), scanner.Scan)
}

// infoCmd shows what a portal offers
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show portal details and visible networks",
	Long: `Fetch the portal description: device id, access point, the editable
fields with their current values and the networks the device can see.

Secret values are masked.`,
	Example: `  # Info with auto-discovery
  provision-cfg info

  # Info for a specific portal
  provision-cfg info --portal 10.42.0.1`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target, err := resolvePortal(ctx)
	if err != nil {
		return err
	}
	client := newClient(target)

	info, err := ui.Spin(ctx, ui.NewSpinner("Fetching portal details"), client.Info)
	p := ui.NewPrinter(cmd.OutOrStdout())
	if err != nil {
		p.PrintFailure("Failed to read portal", err, hintLines(err))
		return err
	}
	p.PrintInfo(info)
	return nil
}

// submitCmd sends configuration values to a portal
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit WiFi and broker settings",
	Long: `Submit WiFi credentials and MQTT broker settings to a portal.

Only the broker fields passed on the command line are sent; the others keep
the values the portal shows. Leaving --ssid out keeps the network the device
already knows.`,
	Example: `  # Join a network and set the broker
  provision-cfg submit --ssid HomeNet --passphrase secret --server 10.0.1.50 --port 1883

  # Change only the broker address and wait for the portal to close
  provision-cfg submit --portal 10.42.0.1 --server broker.local --wait`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&ssid, "ssid", "", "WiFi network to join")
	submitCmd.Flags().StringVar(&passphrase, "passphrase", "", "WiFi passphrase")
	submitCmd.Flags().StringVar(&brokerServer, "server", "", "MQTT broker address")
	submitCmd.Flags().StringVar(&brokerPort, "mqtt-port", "", "MQTT broker port")
	submitCmd.Flags().StringVar(&username, "username", "", "MQTT username")
	submitCmd.Flags().StringVar(&password, "password", "", "MQTT password")
	submitCmd.Flags().BoolVar(&waitClose, "wait", false, "Wait until the portal closes after accepting")
}

// submissionFromFlags builds the submission from the flags that were set
func submissionFromFlags(cmd *cobra.Command) portalclient.Submission {
	sub := portalclient.Submission{SSID: ssid, Passphrase: passphrase}
	set := func(name string, value string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &value
	}
	sub.BrokerAddress = set("server", brokerServer)
	sub.BrokerPort = set("mqtt-port", brokerPort)
	sub.Username = set("username", username)
	sub.Password = set("password", password)
	return sub
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	target, err := resolvePortal(ctx)
	if err != nil {
		return err
	}
	client := newClient(target)
	sub := submissionFromFlags(cmd)

	steps := []string{"Reach portal", "Submit configuration"}
	if waitClose {
		steps = append(steps, "Wait for portal to close")
	}

	params := []ui.KV{{Key: "Portal", Value: target.BaseURL()}}
	if sub.SSID != "" {
		params = append(params, ui.KV{Key: "SSID", Value: sub.SSID})
	}
	if sub.BrokerAddress != nil {
		params = append(params, ui.KV{Key: "Server", Value: *sub.BrokerAddress})
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:           "Submit Configuration",
		Command:         "provision-cfg submit",
		Params:          params,
		Steps:           steps,
		Output:          cmd.OutOrStdout(),
		Troubleshooting: hintLines,
	})

	return runner.Run(func(onStep ui.StepCallback) ([]ui.KV, error) {
		onStep(0, ui.StepRunning, target.BaseURL())
		if err := client.Ping(ctx); err != nil {
			onStep(0, ui.StepFailed, portalclient.GetShortErrorMessage(err))
			return nil, err
		}
		onStep(0, ui.StepComplete, "")

		onStep(1, ui.StepRunning, "")
		if err := client.Submit(ctx, sub); err != nil {
			onStep(1, ui.StepFailed, portalclient.GetShortErrorMessage(err))
			return nil, err
		}
		onStep(1, ui.StepComplete, "accepted")

		details := []ui.KV{{Key: "Portal", Value: target.BaseURL()}}
		if sub.SSID != "" {
			details = append(details, ui.KV{Key: "Network", Value: sub.SSID})
		} else {
			details = append(details, ui.KV{Key: "Network", Value: "unchanged"})
		}
		if !waitClose {
			return details, nil
		}

		onStep(2, ui.StepRunning, "")
		closed := false
		err := client.Watch(ctx, func(msg portal.Message) error {
			if msg.Type == portal.MessageClosed {
				closed = true
			}
			return nil
		})
		if err != nil && !portalclient.IsNetworkError(err) {
			onStep(2, ui.StepFailed, portalclient.GetShortErrorMessage(err))
			return nil, err
		}
		msg := "closed"
		if !closed {
			msg = "connection dropped"
		}
		onStep(2, ui.StepComplete, msg)
		return details, nil
	})
}

// watchCmd follows the portal event stream
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow portal events",
	Long: `Stream portal events until the portal closes or Ctrl+C is pressed.

Events show when the portal starts, when a configuration is submitted and
when the device tears the portal down.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := resolvePortal(ctx)
	if err != nil {
		return err
	}
	client := newClient(target)

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Portal Events", "provision-cfg watch", ui.KV{Key: "Portal", Value: target.BaseURL()})

	err = client.Watch(ctx, func(msg portal.Message) error {
		p.PrintMessage(msg)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		p.PrintFailure("Event stream failed", err, hintLines(err))
		return err
	}
	return nil
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch interactive configuration wizard",
	Long: `Launch an interactive TUI wizard for portal configuration.

The wizard provides a user-friendly interface for:
- Discovering portals on the network
- Picking a network the device can see
- Editing the MQTT broker settings
- Submitting and confirming the result

This is the recommended way to provision devices for most users.`,
	Example: `  # Launch wizard with auto-discovery
  provision-cfg wizard
  # Or simply (wizard is default):
  provision-cfg

  # Launch wizard for specific portal
  provision-cfg wizard --portal 10.42.0.1`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second

	opts := tui.Options{
		Scan:        scanner.Scan,
		ScanTimeout: scanner.Timeout,
		NewClient:   newClient,
	}

	var start *discovery.Portal
	if portalAddr != "" {
		p, err := portalFromFlag(portalAddr)
		if err != nil {
			return err
		}
		start = p
	}

	program := tea.NewProgram(tui.NewAppModel(opts, start), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	return nil
}

func newClient(p *discovery.Portal) *portalclient.Client {
	client := portalclient.NewClientWithURL(p.BaseURL())
	client.SetRetry(retries, portalclient.DefaultRetryDelay)
	return client
}

// portalFromFlag accepts ip, ip:port or an http URL
func portalFromFlag(addr string) (*discovery.Portal, error) {
	if !strings.Contains(addr, "://") {
		return tui.ManualPortal(addr, time.Now())
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid portal URL %q: %w", addr, err)
	}
	if u.Scheme != "http" || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid portal URL %q (expected http://host[:port]/)", addr)
	}
	port := discovery.DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port in %q", addr)
		}
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return &discovery.Portal{
		DeviceID:     "manual",
		IP:           u.Hostname(),
		Port:         port,
		Metadata:     map[string]string{"path": path},
		DiscoveredAt: time.Now(),
	}, nil
}

// resolvePortal returns the --portal target or the single discovered portal
func resolvePortal(ctx context.Context) (*discovery.Portal, error) {
	if portalAddr != "" {
		return portalFromFlag(portalAddr)
	}

	fmt.Println("No portal specified, attempting auto-discovery...")
	portals, err := scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	if len(portals) == 0 {
		return nil, fmt.Errorf("no portals found. Use --portal flag to specify the address manually")
	}

	if len(portals) > 1 {
		fmt.Printf("Found %d portals:\n", len(portals))
		for i, p := range portals {
			fmt.Printf("%d. %s (%s)\n", i+1, p.Instance, net.JoinHostPort(p.IP, strconv.Itoa(p.Port)))
		}
		return nil, fmt.Errorf("multiple portals found. Use --portal flag to specify which one")
	}

	p := portals[0]
	fmt.Printf("Found portal: %s (%s)\n\n", p.Instance, p.IP)
	return p, nil
}

// hintLines turns a troubleshooting hint into result box lines
func hintLines(err error) []string {
	var lines []string
	for _, line := range strings.Split(portalclient.GetTroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
