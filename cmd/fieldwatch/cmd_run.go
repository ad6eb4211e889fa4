package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/itohio/fieldwatch/pkg/api"
	"github.com/itohio/fieldwatch/pkg/cache"
	"github.com/itohio/fieldwatch/pkg/history"
	"github.com/itohio/fieldwatch/pkg/link"
	"github.com/itohio/fieldwatch/pkg/metrics"
	"github.com/itohio/fieldwatch/pkg/publish"
	"github.com/itohio/fieldwatch/pkg/telemetry"
	"github.com/itohio/fieldwatch/pkg/weather"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect reports from a board and serve them",
	Long: `Read record lines from a board (or a simulated one), store every report,
publish it over MQTT, cache the latest status in Redis and serve the HTTP API.
Sinks without configuration are skipped.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runFlags struct {
	mock bool
	port string
	kind string
	addr string
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.mock, "mock", false, "Use a simulated board instead of the serial port")
	runCmd.Flags().StringVarP(&runFlags.port, "port", "p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
	runCmd.Flags().StringVar(&runFlags.kind, "kind", "", "Simulated board kind: industrial or irrigation")
	runCmd.Flags().StringVar(&runFlags.addr, "http", "", "API listen address override; \"off\" disables the API")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.port != "" {
		cfg.Serial.Port = runFlags.port
	}
	if runFlags.kind != "" {
		cfg.Mock.Kind = runFlags.kind
	}
	switch runFlags.addr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = runFlags.addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	st, err := openStore(ctx, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	p := newPipeline(log, st)
	p.metrics = m

	var latest api.LatestCache
	if cfg.Cache.Addr != "" {
		c, err := cache.Dial(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer c.Close()
		p.cache = c
		latest = c
	}

	if cfg.MQTT.Broker != "" {
		pub, err := publish.Dial(cfg.MQTT)
		if err != nil {
			return err
		}
		defer pub.Close()
		p.publisher = pub
		log.Info("publishing", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.Prefix)
	}

	if cfg.Weather.APIKey != "" {
		p.advisor = newAdvisor(weather.NewClient(cfg.Weather), cfg.Weather, log)
	}

	var device link.Device
	if runFlags.mock {
		device = link.NewMock(cfg, log)
	} else {
		device = link.New(cfg.Serial.Port, cfg.Serial.BaudRate, link.DefaultBufferSize, log)
	}
	if err := device.Connect(); err != nil {
		return fmt.Errorf("failed to connect to board: %w", err)
	}
	log.Info("connected", "mock", runFlags.mock, "port", cfg.Serial.Port)

	h := history.New(cfg.History.Window)

	// Sinks outlive the signal so reports drained during shutdown are kept.
	sinkCtx := context.WithoutCancel(ctx)
	forwarded := make(chan telemetry.Report, link.DefaultBufferSize)
	go p.run(sinkCtx, device.Reports(), forwarded)

	historyDone := make(chan struct{})
	go func() {
		defer close(historyDone)
		h.ProcessReports(forwarded)
	}()

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.HTTP.Addr != "" {
		server = &http.Server{
			Addr:         cfg.HTTP.Addr,
			Handler:      api.New(st, h, latest, m, log).WithSupplies(st).Handler(os.Stdout),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		log.Info("api listening", "addr", cfg.HTTP.Addr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("api server failed: %w", err)
	case <-historyDone:
		log.Warn("board stopped sending reports")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("api shutdown failed", "error", err)
		}
		cancel()
	}

	if err := device.Close(); err != nil {
		log.Warn("failed to close board", "error", err)
	}
	<-historyDone
	log.Info("stopped")

	return runErr
}
