package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vetcare/account"
	"vetcare/config"
	"vetcare/credential"
	"vetcare/db"
	"vetcare/endpoint"
	"vetcare/logging"
	"vetcare/mq"
	"vetcare/professional"
	"vetcare/profile"
	"vetcare/rating"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain runs the process and returns its exit code. Deferred cleanup runs
// before main exits.
func realMain(args []string) int {
	fs := flag.NewFlagSet("vetcare", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to optional YAML config")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("load config: %v", err)
		return 1
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Printf("build logger: %v", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vetcare stopped", zap.Error(err))
		return 1
	}
	logger.Info("vetcare stopped")
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := db.NewPool(ctx, cfg.Database.URL, db.Options{
		MaxConns:    cfg.Database.MaxConns,
		MaxConnIdle: cfg.Database.MaxConnIdle,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	creds, err := credential.NewManager(cfg.Auth.TokenSecret, cfg.Auth.HashCost, cfg.Auth.HashConcurrency)
	if err != nil {
		return err
	}

	repo := profile.NewRepository()
	accounts := account.NewService(pool, repo, creds, logger)
	professionals := professional.NewBuilder(pool, repo, creds, logger)
	ratings := rating.NewAggregator(pool, repo, logger)

	api := endpoint.NewAPI(accounts, professionals, ratings, logger)
	logger.Info("operation boundary ready", zap.Bool("api", api != nil), zap.String("env", cfg.Env))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Broker.Enabled() {
		consumer, err := mq.NewConsumer(cfg.Broker.URL, cfg.Broker.Exchange, cfg.Broker.Queue, rating.RoutingKeys, 8)
		if err != nil {
			return err
		}
		defer consumer.Close()

		g.Go(func() error {
			logger.Info("rating consumer started",
				zap.String("exchange", cfg.Broker.Exchange),
				zap.String("queue", cfg.Broker.Queue))
			return rating.NewConsumer(ratings, logger).Run(gctx, consumer)
		})
	} else {
		logger.Warn("AMQP_URL not set; rating events will not be consumed")
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}
