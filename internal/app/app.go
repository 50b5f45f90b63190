package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/esched/internal/alert"
	"github.com/MrSnakeDoc/esched/internal/checkin"
	"github.com/MrSnakeDoc/esched/internal/classify"
	"github.com/MrSnakeDoc/esched/internal/config"
	"github.com/MrSnakeDoc/esched/internal/httpclient"
	"github.com/MrSnakeDoc/esched/internal/httpserver"
	"github.com/MrSnakeDoc/esched/internal/httpserver/deps"
	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/redis"
	"github.com/MrSnakeDoc/esched/internal/retry"
	"github.com/MrSnakeDoc/esched/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/esched/internal/store/redis"
	"github.com/MrSnakeDoc/esched/internal/subscription"
	"github.com/MrSnakeDoc/esched/internal/template"
	"github.com/MrSnakeDoc/esched/internal/version"
)

// Job names, also accepted by POST /reload?job=.
const (
	JobTemplate     = "template"
	JobSubscription = "subscription"
	JobCheckin      = "checkin"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	scheduler   *scheduler.Scheduler
	httpClient  *httpclient.Client
	redisClient *goredis.Client
}

// New loads the configuration and builds every component. ctx bounds the
// Redis connection attempts.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLog,
		Mode:   string(cfg.Mode),
	})

	// Redis first - nothing can be served without it
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.Connect(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient)

	httpClient, err := httpclient.New(httpclient.Options{
		Timeout:         cfg.HTTPTimeout,
		MaxConnsPerHost: cfg.HTTPMaxConnsPerHost,
		KeepAlive:       cfg.HTTPKeepAlive,
		ProxyURL:        cfg.HTTPProxy,
	}, loggerClient)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to build http client: %w", err)
	}

	retrier := retry.New(loggerClient)
	notifier := alert.New(httpClient, cfg.WecomWebhook, string(cfg.Mode), loggerClient)
	if cfg.WecomWebhook == "" {
		loggerClient.Warn("no alert webhook configured, failures will only be logged")
	}

	sched := scheduler.New(notifier, loggerClient)
	if err := registerJobs(cfg, sched, httpClient, retrier, store, loggerClient); err != nil {
		httpClient.Close()
		_ = redisClient.Close()
		return nil, err
	}

	d := deps.Deps{
		Logger:     loggerClient,
		StartTime:  time.Now(),
		Version:    version.Version,
		Commit:     version.Commit,
		BuildDate:  version.BuildDate,
		GoVersion:  version.GoVersion,
		TimeNow:    time.Now,
		AdminToken: cfg.AdminToken,
		AdminCIDRs: cfg.AdminCIDRs,
		TrustProxy: cfg.TrustProxy,
		Cache:      store,
		Jobs:       sched,
	}
	if cfg.AdminToken == "" {
		loggerClient.Warn("ESCHED_ADMIN_TOKEN is empty, /reload and /subscription are unauthenticated")
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		scheduler:   sched,
		httpClient:  httpClient,
		redisClient: redisClient,
	}, nil
}

func registerJobs(
	cfg *config.Config,
	sched *scheduler.Scheduler,
	httpClient *httpclient.Client,
	retrier *retry.Retrier,
	store *redisstore.Store,
	log logger.Logger,
) error {
	templateMissing := !fileExists(cfg.TemplateFile)

	if cfg.TemplateEnabled() {
		refresher := template.NewRefresher(httpClient, retrier, template.Converter{
			Host:     cfg.ConverterHost,
			URL:      cfg.ConverterURL,
			Config:   cfg.ConverterConfig,
			Insecure: cfg.ConverterInsecure,
		}, cfg.TemplateFile, log)

		// The subscription job cannot merge without a template, so build it
		// first when there is none yet.
		if err := sched.Add(scheduler.Job{
			Name:       JobTemplate,
			Trigger:    scheduler.Every(cfg.TemplateInterval),
			RunOnStart: templateMissing,
			Run:        refresher.Refresh,
		}); err != nil {
			return err
		}
	} else {
		log.Info("converter not configured, template job disabled")
		if templateMissing {
			log.Warn("template file is missing and no converter is configured, subscription runs will fail",
				logger.String("file", cfg.TemplateFile))
		}
	}

	fetcher := subscription.NewFetcher(httpClient, retrier, store, cfg.SubscriptionURL, cfg.SubscriptionUserAgent, log)
	refresher := subscription.NewRefresher(fetcher, classify.Default(), store, subscription.Options{
		TemplateFile: cfg.TemplateFile,
		OutputFile:   cfg.OutputFile,
	}, log)
	if err := sched.Add(scheduler.Job{
		Name:       JobSubscription,
		Trigger:    scheduler.Every(cfg.SubscriptionInterval),
		RunOnStart: cfg.RunOnStart,
		Run:        refresher.Refresh,
	}); err != nil {
		return err
	}

	if !cfg.CheckinEnabled() {
		log.Info("airport not configured, check-in job disabled")
		return nil
	}
	checker := checkin.New(httpClient, retrier, checkin.Account{
		Airport:  cfg.AirportURL,
		Email:    cfg.AirportEmail,
		Password: cfg.AirportPassword,
	}, log)
	return sched.Add(scheduler.Job{
		Name:    JobCheckin,
		Trigger: scheduler.DailyAt{Hour: cfg.CheckinHour, Minute: cfg.CheckinMinute},
		Run:     checker.Run,
	})
}

// Run starts the jobs and the HTTP server and blocks until ctx is cancelled
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting esched %s on %s", version.String(), a.cfg.ListenPort)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	// Jobs first: the pool and Redis must outlive every in-flight run.
	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	a.httpClient.Close()

	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ esched stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
