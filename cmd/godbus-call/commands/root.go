// Package commands implements the godbus-call CLI: connect to a bus,
// send exactly one method call, and print the reply.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/godbus/dbus"
	"github.com/marmos91/godbus/internal/cli/output"
	"github.com/marmos91/godbus/internal/cli/prompt"
	"github.com/marmos91/godbus/internal/config"
	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/dbustype"
	"github.com/marmos91/godbus/internal/dbuswire"
	"github.com/marmos91/godbus/internal/logger"
	"github.com/marmos91/godbus/internal/telemetry"
	"github.com/marmos91/godbus/pkg/metrics"
	metricsprom "github.com/marmos91/godbus/pkg/metrics/prometheus"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile      string
	destination  string
	objectPath   string
	iface        string
	member       string
	noReply      bool
	printConfig  bool
	confirm      bool
	outputFormat string
)

// rootCmd sends one D-Bus method call and prints the reply.
var rootCmd = &cobra.Command{
	Use:   "godbus-call",
	Short: "Send a single D-Bus method call and print the reply",
	Long: `godbus-call connects to a D-Bus bus, sends one method call, and prints
the resulting METHOD_RETURN or ERROR body, then disconnects.

Arguments after the flags are the call's body, each spelled TYPE:VALUE
(the dbus-send convention), e.g.:

  godbus-call --dest=org.freedesktop.DBus --path=/org/freedesktop/DBus \
      --interface=org.freedesktop.DBus --member=GetId

  godbus-call --dest=org.freedesktop.Notifications \
      --path=/org/freedesktop/Notifications \
      --interface=org.freedesktop.Notifications --member=Notify \
      string:godbus-call string:hello

Use --config to specify a configuration file, or it will use the default
location at $XDG_CONFIG_HOME/godbus/config.yaml. Environment variables
GODBUS_* override keys that the file sets; no flag overrides a config key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCall,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/godbus/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table|json|yaml)")

	rootCmd.Flags().StringVar(&destination, "dest", "", "destination bus name to call")
	rootCmd.Flags().StringVar(&objectPath, "path", "", "object path to call")
	rootCmd.Flags().StringVar(&iface, "interface", "", "interface of the method")
	rootCmd.Flags().StringVar(&member, "member", "", "method name to call")
	rootCmd.Flags().BoolVar(&noReply, "no-reply", false, "send with NO_REPLY_EXPECTED and don't wait for a reply")
	rootCmd.Flags().BoolVar(&printConfig, "print-config", false, "print the resolved configuration as YAML and exit")
	rootCmd.Flags().BoolVar(&confirm, "confirm", false, "prompt for confirmation before sending the call")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	if printConfig {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if destination == "" || objectPath == "" || iface == "" || member == "" {
		return fmt.Errorf("--dest, --path, --interface and --member are all required")
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	body, err := parseArgs(args)
	if err != nil {
		return err
	}

	if confirm {
		ok, err := prompt.Confirm(fmt.Sprintf("Send %s.%s to %s%s", iface, member, destination, objectPath), false)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.ToTelemetryConfig("godbus-call", Version))
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

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("interrupted, aborting call")
		cancel()
	}()
	defer signal.Stop(sigCh)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	path, err := dbustype.NewObjectPath(objectPath)
	if err != nil {
		return fmt.Errorf("--path: %w", err)
	}

	msg := dbusmsg.NewMethodCall(dbuswire.NativeByteOrder, path, iface, member, destination)
	if noReply {
		msg.Flags |= dbusmsg.FlagNoReplyExpected
	}
	if len(body) > 0 {
		msg.SetBody(body...)
	}

	callCtx, callCancel := context.WithTimeout(ctx, dbusCfg.CallTimeout)
	defer callCancel()

	reply, err := conn.SendRequest(callCtx, msg)
	if err != nil {
		return printCallError(format, err)
	}
	if reply == nil {
		return nil // NO_REPLY_EXPECTED
	}
	return printReply(format, reply)
}

// callResult is the JSON/YAML/table-friendly rendering of a reply.
type callResult struct {
	Type      string `json:"type" yaml:"type"`
	ErrorName string `json:"error_name,omitempty" yaml:"error_name,omitempty"`
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty"`
	Body      []any  `json:"body,omitempty" yaml:"body,omitempty"`
}

func printReply(format output.Format, reply *dbusmsg.Message) error {
	result := callResult{
		Type:      reply.Type.String(),
		Signature: reply.Signature.String(),
		Body:      renderBody(reply.Body),
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, result)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, result)
	default:
		fmt.Printf("%s\n", result.Type)
		if result.Signature != "" {
			fmt.Printf("signature: %s\n", result.Signature)
		}
		for _, v := range result.Body {
			fmt.Printf("  %v\n", v)
		}
		return nil
	}
}

func printCallError(format output.Format, err error) error {
	var derr *dbuserr.Error
	result := callResult{Type: "ERROR"}
	if errors.As(err, &derr) && derr.Kind == dbuserr.KindRemoteError {
		result.ErrorName = derr.Name
	}
	switch format {
	case output.FormatJSON:
		_ = output.PrintJSON(os.Stdout, result)
	case output.FormatYAML:
		_ = output.PrintYAML(os.Stdout, result)
	default:
		fmt.Println("ERROR")
		if result.ErrorName != "" {
			fmt.Printf("  %s\n", result.ErrorName)
		}
	}
	return err
}

// renderBody flattens dbustype.Value bodies into plain Go values so the
// table/JSON/YAML printers don't need to know about the wire type system.
func renderBody(values []dbustype.Value) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = renderValue(v)
	}
	return out
}

func renderValue(v dbustype.Value) any {
	switch tv := v.(type) {
	case dbustype.Array:
		items := make([]any, len(tv.Items))
		for i, it := range tv.Items {
			items[i] = renderValue(it)
		}
		return items
	case dbustype.Struct:
		fields := make([]any, len(tv.Fields))
		for i, f := range tv.Fields {
			fields[i] = renderValue(f)
		}
		return fields
	case dbustype.Variant:
		return renderValue(tv.Inner)
	case dbustype.DictEntry:
		return map[string]any{"key": renderValue(tv.Key), "value": renderValue(tv.Val)}
	default:
		return v
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
