package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/acudp-mock/internal/config"
	"github.com/acudp-mock/internal/logging"
	"github.com/acudp-mock/internal/probe"
	"github.com/acudp-mock/internal/server"
	"github.com/acudp-mock/internal/state"
)

type serveFlags struct {
	configPath string
	host       string
	port       int
	intervalMs int
	logFile    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags serveFlags

	root := &cobra.Command{
		Use:   "acudpmock",
		Short: "Synthetic vehicle telemetry over UDP",
		Long: "acudpmock answers the handshake/subscribe protocol of a racing " +
			"telemetry feed and streams synthetic car-info frames, so a " +
			"visualizer can be exercised without a running simulator.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, &flags)
		},
	}
	addServeFlags(root, &flags)

	serve := &cobra.Command{
		Use:          "serve",
		Short:        "Run the telemetry server (default)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, &flags)
		},
	}
	addServeFlags(serve, &flags)

	root.AddCommand(serve, newProbeCommand())
	return root
}

func addServeFlags(cmd *cobra.Command, flags *serveFlags) {
	cmd.Flags().StringVar(&flags.configPath, "config", "", "YAML config file (overrides ACUDP_MOCK_CONFIG)")
	cmd.Flags().StringVar(&flags.host, "host", "", "bind address")
	cmd.Flags().IntVar(&flags.port, "port", 0, "UDP port")
	cmd.Flags().IntVar(&flags.intervalMs, "interval", 0, "milliseconds between frames")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "also write logs to this rotated file")
}

// loadConfig layers flags over config.Load.
func loadConfig(cmd *cobra.Command, flags *serveFlags) (*config.Config, error) {
	if flags.configPath != "" {
		os.Setenv("ACUDP_MOCK_CONFIG", flags.configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("host") {
		cfg.Network.UDP.Host = flags.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Network.UDP.Port = flags.port
	}
	if cmd.Flags().Changed("interval") {
		cfg.Stream.IntervalMs = flags.intervalMs
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Logging.File = flags.logFile
	}

	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, flags *serveFlags) error {
	log.Println("Starting AC UDP telemetry mock...")

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	log.Printf("Starting AC UDP telemetry mock with config: %+v", cfg)

	session := state.NewSession(nil)
	telemetryServer := server.NewServer(cfg, session)

	// Bind before serving so a bind failure is fatal up front
	if err := telemetryServer.Listen(); err != nil {
		log.Fatalf("Telemetry server failed: %v", err)
	}

	go func() {
		if err := telemetryServer.Serve(); err != nil {
			log.Fatalf("Telemetry server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down telemetry server...")

	if err := telemetryServer.Close(); err != nil {
		log.Printf("Telemetry server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

func newProbeCommand() *cobra.Command {
	var (
		addr     string
		count    int
		duration time.Duration
		every    int
		opts     = probe.DefaultOptions()
	)

	cmd := &cobra.Command{
		Use:          "probe",
		Short:        "Handshake, subscribe and summarize frames from a running server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := probe.Dial(addr, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = probe.Run(ctx, client, probe.RunOptions{
				Count:      count,
				Duration:   duration,
				PrintEvery: every,
			}, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9996", "server address")
	cmd.Flags().IntVar(&count, "count", 100, "frames to collect (0 = until duration or interrupt)")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "maximum capture time (0 = unlimited)")
	cmd.Flags().IntVar(&every, "every", 20, "print every Nth frame (0 = summary only)")
	cmd.Flags().Int32Var(&opts.Identifier, "id", opts.Identifier, "header identifier")
	cmd.Flags().Int32Var(&opts.Version, "version", opts.Version, "header version")
	cmd.Flags().DurationVar(&opts.HandshakeTimeout, "handshake-timeout", opts.HandshakeTimeout, "handshake reply wait")

	return cmd
}
