package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	pebbledb "github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	_ "ordermgmt/docs"
	"ordermgmt/pkg/api"
	"ordermgmt/pkg/config"
	"ordermgmt/pkg/events"
	"ordermgmt/pkg/logger"
	"ordermgmt/pkg/otel"
	"ordermgmt/pkg/persistence"
	"ordermgmt/pkg/persistence/file"
	"ordermgmt/pkg/persistence/pebble"
	"ordermgmt/pkg/persistence/postgres"
	"ordermgmt/pkg/persistence/redis"
	"ordermgmt/pkg/service"
)

// @title Order Management API
// @version 1.0
// @description API for managing products and orders
// @BasePath /
func main() {
	serveFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides HTTP_ADDR"},
		}
	}

	app := &cli.App{
		Name:   "ordermgmt",
		Usage:  "product and order management service",
		Flags:  serveFlags(),
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  serveFlags(),
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "load the persisted state and report its size",
				Action: check,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.HTTPAddr = c.String("addr")
	}

	log, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := otel.InitTracing(log, otel.Config{
		ServiceName: cfg.ServiceName,
		Host:        cfg.OtelHost,
		Probability: cfg.OtelProbability,
	})
	if err != nil {
		log.Error(ctx, "init tracing", "error", err)
		return err
	}
	defer shutdownTracing(context.Background())

	backend, closeBackend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		log.Error(ctx, "open storage", "backend", cfg.Storage.Backend, "error", err)
		return err
	}
	defer closeBackend()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info(ctx, "publishing events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	svc := service.New(backend, publisher, log, service.Options{
		ClearOnEmptyProducts: cfg.ClearOrderOnEmptyProducts,
	})
	if err := svc.Load(ctx); err != nil {
		log.Error(ctx, "load state", "error", err)
		return errors.Wrap(err, "load state")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(svc, log, tp.Tracer(cfg.ServiceName)).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "listening", "addr", cfg.HTTPAddr, "tls", cfg.TLSCert != "", "storage", cfg.Storage.Backend)
		var err error
		if cfg.TLSCert != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Error(context.Background(), "server stopped", "error", err)
		return err
	}
	log.Info(context.Background(), "server stopped")
	return nil
}

func check(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	backend, closeBackend, err := openBackend(c.Context, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeBackend()

	svc := service.New(backend, nil, log, service.Options{})
	if err := svc.Load(c.Context); err != nil {
		return errors.Wrap(err, "load state")
	}
	products, orders := svc.Stats()
	fmt.Fprintf(c.App.Writer, "backend=%s products=%d orders=%d\n", cfg.Storage.Backend, products, orders)
	return nil
}

func newLogger(cfg config.Config, w *os.File) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "LOG_LEVEL %q", cfg.LogLevel)
	}
	return logger.New(w, level, cfg.ServiceName, otel.GetTraceID), nil
}

func openBackend(ctx context.Context, cfg config.Storage) (persistence.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		b, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.BackendRedis:
		b, err := redis.Open(ctx, &goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case config.BackendPebble:
		b, err := pebble.Open(cfg.PebbleDir, &pebbledb.Options{})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		b := file.New(filepath.Clean(cfg.DataDir), map[string]string{
			persistence.ProductsArtifact: cfg.ProductsFile,
			persistence.OrdersArtifact:   cfg.OrdersFile,
		})
		return b, func() error { return nil }, nil
	}
}
