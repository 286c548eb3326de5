// Package commands implements the godbus-monitor CLI: connect to a bus,
// subscribe to every signal, and print them as they arrive.
package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/godbus/dbus"
	"github.com/marmos91/godbus/internal/cli/output"
	"github.com/marmos91/godbus/internal/cli/timeutil"
	"github.com/marmos91/godbus/internal/config"
	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/dbustype"
	"github.com/marmos91/godbus/internal/dbuswire"
	"github.com/marmos91/godbus/internal/logger"
	"github.com/marmos91/godbus/internal/telemetry"
	"github.com/marmos91/godbus/pkg/metrics"
	metricsprom "github.com/marmos91/godbus/pkg/metrics/prometheus"
)

const (
	busServiceName = "org.freedesktop.DBus"
	busObjectPath  = "/org/freedesktop/DBus"
	busInterface   = "org.freedesktop.DBus"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile      string
	matchRule    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "godbus-monitor",
	Short: "Subscribe to D-Bus signals and print them as they arrive",
	Long: `godbus-monitor connects to a D-Bus bus, registers a match rule with
org.freedesktop.DBus.AddMatch, and prints every inbound SIGNAL message
until interrupted (Ctrl+C).

Examples:
  # Watch every signal on the configured bus
  godbus-monitor

  # Narrow to a specific interface
  godbus-monitor --rule "type='signal',interface='org.freedesktop.DBus'"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMonitor,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/godbus/config.yaml)")
	rootCmd.Flags().StringVar(&matchRule, "rule", "type='signal'", "match rule passed to org.freedesktop.DBus.AddMatch")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table|json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.ToTelemetryConfig("godbus-monitor", Version))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	dbusCfg, err := cfg.ToDBusConfig()
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		dbusCfg.Metrics = metricsprom.New(prometheus.DefaultRegisterer)
		go serveMetrics(cfg.Metrics.Port)
	} else {
		dbusCfg.Metrics = metrics.NoOp()
	}

	conn := dbus.New(dbusCfg)

	printed := 0
	conn.SubscribeSignals(func(msg *dbusmsg.Message) {
		printed++
		printSignal(format, msg)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := addMatch(ctx, conn, dbusCfg.CallTimeout, matchRule); err != nil {
		return fmt.Errorf("register match rule: %w", err)
	}

	logger.Info("monitoring signals", "rule", matchRule, "bus", dbusCfg.Bus)
	fmt.Fprintf(os.Stderr, "monitoring signals (rule: %s) — press Ctrl+C to stop\n", matchRule)

	<-sigCh
	logger.Info("interrupted, shutting down", "signals_printed", printed)
	return nil
}

// addMatch registers rule with the bus daemon so broadcast signals start
// reaching this connection (§4.8 — without a match rule the daemon
// never routes unaddressed signals to a non-eavesdropping client).
func addMatch(ctx context.Context, conn *dbus.Connection, timeout time.Duration, rule string) error {
	ruleStr, err := dbustype.NewString(rule)
	if err != nil {
		return err
	}
	msg := dbusmsg.NewMethodCall(dbuswire.NativeByteOrder, dbustype.ObjectPath(busObjectPath), busInterface, "AddMatch", busServiceName)
	msg.SetBody(ruleStr)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err = conn.SendRequest(callCtx, msg)
	return err
}

type signalResult struct {
	Path      string `json:"path" yaml:"path"`
	Interface string `json:"interface" yaml:"interface"`
	Member    string `json:"member" yaml:"member"`
	Sender    string `json:"sender,omitempty" yaml:"sender,omitempty"`
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty"`
}

func printSignal(format output.Format, msg *dbusmsg.Message) {
	result := signalResult{
		Path:      string(msg.Path),
		Interface: msg.Interface,
		Member:    msg.Member,
		Sender:    msg.Sender,
		Signature: msg.Signature.String(),
	}
	switch format {
	case output.FormatJSON:
		_ = output.PrintJSON(os.Stdout, result)
	default:
		fmt.Printf("[%s] %s: %s.%s (sender=%s", time.Now().Local().Format(timeutil.LocalTimeFormat),
			result.Path, result.Interface, result.Member, result.Sender)
		if result.Signature != "" {
			fmt.Printf(", signature=%s", result.Signature)
		}
		fmt.Println(")")
	}
}

func serveMetrics(port int) {
	addr := fmt.Sprintf(":%d", port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}
