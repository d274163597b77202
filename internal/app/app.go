package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pointride/dispatch/config"
	httpserver "github.com/pointride/dispatch/internal/adapter/http/server"
	repo "github.com/pointride/dispatch/internal/adapter/postgres"
	rabbitadapter "github.com/pointride/dispatch/internal/adapter/rabbit"
	redisadapter "github.com/pointride/dispatch/internal/adapter/redis"
	"github.com/pointride/dispatch/internal/adapter/ws"
	"github.com/pointride/dispatch/internal/service/auth"
	"github.com/pointride/dispatch/internal/service/dispatch"
	"github.com/pointride/dispatch/internal/service/lifecycle"
	"github.com/pointride/dispatch/internal/service/notify"
	"github.com/pointride/dispatch/internal/service/queue"
	"github.com/pointride/dispatch/internal/service/recovery"
	"github.com/pointride/dispatch/pkg/logger"
	"github.com/pointride/dispatch/pkg/metrics"
	postgresclient "github.com/pointride/dispatch/pkg/postgres"
	rabbitclient "github.com/pointride/dispatch/pkg/rabbit"
	"github.com/pointride/dispatch/pkg/trm"
	"github.com/pointride/dispatch/pkg/wshub"
)

// App owns every long-lived component of the dispatch service and tears
// them down in reverse order on shutdown.
type App struct {
	postgresDB  *postgresclient.Client
	redisClient *redis.Client
	rabbitMQ    *rabbitclient.RabbitMQ
	hub         *wshub.Hub
	notifier    *notify.Service
	sweeper     *recovery.Sweeper
	httpServer  *httpserver.API

	cfg config.Config
	log logger.Logger
}

func NewApplication(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	postgresDB, err := postgresclient.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "failed to setup database", err)
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error(ctx, "failed to connect to redis", err)
		return nil, err
	}

	rabbitMQ, err := rabbitclient.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		log.Error(ctx, "failed to connect to rabbitmq", err)
		return nil, err
	}

	broker, err := rabbitadapter.NewEventBroker(ctx, rabbitMQ, log)
	if err != nil {
		log.Error(ctx, "failed to setup event broker", err)
		return nil, err
	}

	// repositories
	rideRepo := repo.NewRideRepo(postgresDB.Pool)
	historyRepo := repo.NewHistoryRepo(postgresDB.Pool)
	statsRepo := repo.NewStatsRepo(postgresDB.Pool)
	queueRepo := repo.NewQueueRepo(postgresDB.Pool)
	presence := redisadapter.NewPresenceStore(redisClient)
	txm := trm.New(postgresDB.Pool)

	// Presence survives a restart in redis; the in-process gauge does not.
	if n, err := presence.CountOnline(ctx); err != nil {
		log.Warn(ctx, "failed to count online drivers", "err", err.Error())
	} else {
		metrics.DriversOnlineGauge.Set(float64(n))
	}

	// services
	hub := wshub.NewHub(log)
	notifier := notify.NewService(hub, broker, notify.Config{
		AckWait:      cfg.Notify.AckWait,
		RetryDelay:   cfg.Notify.RetryDelay,
		MaxAttempts:  cfg.Notify.MaxAttempts,
		OfflineLimit: cfg.Notify.OfflineLimit,
	}, log)

	queueSvc := queue.NewService(queueRepo, txm, log, cfg.Dispatch.MinutesPerRide)

	lifecycleSvc := lifecycle.NewService(
		rideRepo, historyRepo, statsRepo,
		queueSvc, presence, notifier, txm, log,
	)

	dispatchSvc := dispatch.NewService(
		rideRepo, presence, queueSvc, notifier, lifecycleSvc,
		dispatch.Config{
			CommissionRate:       cfg.Dispatch.CommissionRate,
			DefaultPaymentMethod: cfg.Dispatch.DefaultPaymentMethod,
		}, log,
	)

	sweeper := recovery.NewSweeper(rideRepo, lifecycleSvc, recovery.Config{
		Interval:           cfg.Recovery.Interval,
		PendingTimeout:     cfg.Recovery.PendingTimeout,
		AssignedTimeout:    cfg.Recovery.AssignedTimeout,
		StartedTimeout:     cfg.Recovery.StartedTimeout,
		EndedTimeout:       cfg.Recovery.EndedTimeout,
		ForcePaymentMethod: cfg.Dispatch.DefaultPaymentMethod,
	}, log)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.OperatorTokTTL)

	gateway := ws.NewGateway(hub, dispatchSvc, notifier, tokens, log)

	server, err := httpserver.New(
		cfg.HTTP,
		dispatchSvc,
		dispatchSvc,
		lifecycleSvc,
		queueSvc,
		tokens,
		gateway.HandleWS,
		log,
	)
	if err != nil {
		log.Error(ctx, "failed to setup http server", err)
		return nil, err
	}

	return &App{
		postgresDB:  postgresDB,
		redisClient: redisClient,
		rabbitMQ:    rabbitMQ,
		hub:         hub,
		notifier:    notifier,
		sweeper:     sweeper,
		httpServer:  server,
		cfg:         cfg,
		log:         log,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		a.close(ctx)
		a.log.Info(ctx, "dispatch service closed")
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	a.httpServer.Run(ctx, errCh)

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info(ctx, "dispatch service started", "addr", a.cfg.HTTP.Port)

	select {
	case errRun := <-errCh:
		return errRun
	case sig := <-shutdownCh:
		a.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

func (a *App) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error(ctx, "failed to shutdown HTTP server", err)
	}

	// Let in-flight admin deliveries finish before the hub goes away.
	a.notifier.Wait()
	a.hub.Close()

	if err := a.rabbitMQ.Close(ctx); err != nil {
		a.log.Error(ctx, "failed to close rabbitmq connection", err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.log.Error(ctx, "failed to close redis client", err)
	}

	a.postgresDB.Pool.Close()
}
