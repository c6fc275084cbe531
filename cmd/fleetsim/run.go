package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relaygrid/fleetsim/pkg/config"
	"github.com/relaygrid/fleetsim/pkg/control"
	"github.com/relaygrid/fleetsim/pkg/dashboard"
	"github.com/relaygrid/fleetsim/pkg/log"
	"github.com/relaygrid/fleetsim/pkg/metrics"
	"github.com/relaygrid/fleetsim/pkg/node"
	"github.com/relaygrid/fleetsim/pkg/recorder"
	"github.com/relaygrid/fleetsim/pkg/scheduler"
	"github.com/relaygrid/fleetsim/pkg/workload"
	"github.com/spf13/cobra"
)

// node0SpeedBoost gives node 0 a 20% speed advantage over the rest of
// the fleet, exposing heterogeneity in the placement policies.
const node0SpeedBoost = 1.2

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the fleet simulator",
	RunE:  runSimulator,
}

func init() {
	runCmd.Flags().String("addr", ":8765", "Control transport (WebSocket + dashboard) bind address")
	runCmd.Flags().String("metrics-addr", ":9465", "Prometheus /metrics bind address")
	runCmd.Flags().Int("fleet-size", 4, "Number of nodes in the fleet")
	runCmd.Flags().String("policy", "round_robin", "Initial placement policy")
	runCmd.Flags().Float64("rate-low", 0.3, "Lower bound of the generator inter-arrival range, seconds")
	runCmd.Flags().Float64("rate-high", 0.8, "Upper bound of the generator inter-arrival range, seconds")
	runCmd.Flags().String("config", "", "Optional YAML config file")
}

func runSimulator(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// Re-init logging now that a YAML-supplied log_level/log_json has
	// had a chance to override the --log-level/--log-json defaults
	// initLogging already applied from flags alone.
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	logger := log.WithComponent("runtime")

	policy, err := scheduler.ParsePolicy(cfg.Policy)
	if err != nil {
		return fmt.Errorf("invalid --policy %q: %w", cfg.Policy, err)
	}

	nodes := make([]*node.Node, cfg.FleetSize)
	for i := range nodes {
		speed := 1.0
		if i == 0 {
			speed = node0SpeedBoost
		}
		nodes[i] = node.New(i, speed)
	}

	sched := scheduler.New(nodes, policy)
	gen := workload.New(sched, time.Now().UnixNano())
	gen.SetRate(cfg.RateLow, cfg.RateHigh)
	rec := recorder.New("data_logs")

	health := metrics.NewHealth()
	health.SetVersion(Version)

	hub := control.New(sched, gen, rec)
	collector := metrics.NewCollector(func() metrics.FleetSnapshot { return sched.Snapshot() })

	sched.Start()
	health.RegisterComponent("scheduler", true, "")

	genCtx, cancelGen := context.WithCancel(context.Background())
	go gen.Run(genCtx)
	health.RegisterComponent("generator", true, "")

	hub.Start()
	health.RegisterComponent("control", true, "")

	collector.Start(500 * time.Millisecond)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/", dashboard.Handler())
	mux.HandleFunc("/healthz", health.HealthHandler())
	mux.HandleFunc("/healthz/ready", health.ReadyHandler())
	mux.HandleFunc("/healthz/live", health.LivenessHandler())

	controlSrv := &http.Server{Addr: cfg.Addr, Handler: mux}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}

	errCh := make(chan error, 2)
	go func() {
		if err := controlSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("control server: %w", err)
		}
	}()
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	logger.Info().
		Str("addr", cfg.Addr).
		Str("metrics_addr", cfg.MetricsAddr).
		Int("fleet_size", cfg.FleetSize).
		Str("policy", policy.String()).
		Msg("fleetsim running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = controlSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	collector.Stop()
	hub.Stop()
	cancelGen()
	gen.Stop()
	sched.Stop()
	rec.Close()

	logger.Info().Msg("shutdown complete")
	return nil
}

func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	fileCfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	cfg := config.Config{
		Addr:        flagOrFile(cmd, "addr", fileCfg.Addr),
		MetricsAddr: flagOrFile(cmd, "metrics-addr", fileCfg.MetricsAddr),
		Policy:      flagOrFile(cmd, "policy", fileCfg.Policy),
	}

	if cmd.Flags().Changed("fleet-size") || fileCfg.FleetSize == 0 {
		cfg.FleetSize, _ = cmd.Flags().GetInt("fleet-size")
	} else {
		cfg.FleetSize = fileCfg.FleetSize
	}

	if cmd.Flags().Changed("rate-low") || fileCfg.RateLow == 0 {
		cfg.RateLow, _ = cmd.Flags().GetFloat64("rate-low")
	} else {
		cfg.RateLow = fileCfg.RateLow
	}

	if cmd.Flags().Changed("rate-high") || fileCfg.RateHigh == 0 {
		cfg.RateHigh, _ = cmd.Flags().GetFloat64("rate-high")
	} else {
		cfg.RateHigh = fileCfg.RateHigh
	}

	cfg.LogLevel = flagOrFile(cmd, "log-level", fileCfg.LogLevel)
	cfg.LogJSON = boolOrFile(cmd, "log-json", fileCfg.LogJSON)

	return cfg, nil
}

// flagOrFile applies flag > YAML > built-in default precedence for a
// single string flag: an explicitly-passed flag always wins, otherwise
// a non-empty YAML value is used, otherwise the flag's default stands.
func flagOrFile(cmd *cobra.Command, name, fileVal string) string {
	if cmd.Flags().Changed(name) || fileVal == "" {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fileVal
}

// boolOrFile is flagOrFile's bool counterpart: an explicitly-passed
// flag always wins, otherwise a true YAML value is used, otherwise the
// flag's default stands. A YAML value of false is indistinguishable
// from "not supplied", matching the same zero-value convention the
// numeric fields above use.
func boolOrFile(cmd *cobra.Command, name string, fileVal bool) bool {
	if cmd.Flags().Changed(name) || !fileVal {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return fileVal
}
