package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/threefoldtech/vaultbridge/pkg"
	"github.com/threefoldtech/vaultbridge/pkg/bridge"
	"github.com/threefoldtech/vaultbridge/pkg/events"
	"github.com/threefoldtech/vaultbridge/pkg/store/disk"
)

func main() {
	var (
		configPath  string
		dbPath      string
		natsURL     string
		metricsAddr string
		logLevel    string
		pretty      bool
	)

	flag.StringVar(&configPath, "config", "", "path to the yaml configuration, it has to list the validators")
	flag.StringVar(&dbPath, "db", "", "directory of the bridge database, overrides the configuration")
	flag.StringVar(&natsURL, "nats", "", "nats server url, overrides the configuration")
	flag.StringVar(&metricsAddr, "metrics", "", "address to serve prometheus metrics on, overrides the configuration")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&pretty, "pretty", false, "human readable logs")

	flag.Parse()

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if configPath == "" {
		log.Fatal().Msg("a configuration file is required")
	}
	cfg, err := pkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if natsURL != "" {
		cfg.NATS.URL = natsURL
	}
	if metricsAddr != "" {
		cfg.Metrics.Address = metricsAddr
	}
	if cfg.Store.Path == "" {
		log.Fatal().Msg("a database directory is required")
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("bridge exited")
	}
}

func run(cfg pkg.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := disk.Open(cfg.Store.Path, &pebble.Options{})
	if err != nil {
		return err
	}

	emitters := events.Multi{events.Log{}}
	if cfg.NATS.URL != "" {
		conn, err := events.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return err
		}
		publisher := events.NewNATS(conn, cfg.NATS.SubjectPrefix)
		defer publisher.Close()
		emitters = append(emitters, publisher)
	}

	br, err := bridge.NewBridge(ctx, cfg, st, bridge.WithEmitter(emitters))
	if err != nil {
		st.Close()
		return err
	}
	defer br.Close()

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("address", cfg.Metrics.Address).Msg("serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("metrics server stopped")
		}
	}()

	state, err := br.State(ctx)
	if err != nil {
		return err
	}
	log.Info().Uint64("chain", state.ChainID).Uint64("version", state.Version).Bool("paused", state.Paused).Msg("bridge started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("shutting down")

	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	return server.Shutdown(shutdown)
}
