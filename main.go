package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prakriti-service/config"
	"prakriti-service/internal/cache"
	"prakriti-service/internal/handler"
	"prakriti-service/internal/ledger"
	"prakriti-service/internal/logger"
	"prakriti-service/internal/messaging"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/repository"
	"prakriti-service/internal/service"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const serviceName = "prakriti-service"

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.New(serviceName, "").WithError(err).Fatal("failed to load config")
	}

	log := logger.New(serviceName, cfg.Log.Level)
	log.Info("starting up")

	db, err := repository.Open(repository.DBConfig{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(context.Background(), db); err != nil {
			log.WithError(err).Fatal("failed to migrate schema")
		}
		log.Info("schema migrated")
	}

	rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// The leaderboard cache is optional; without Redis the service reads
	// rankings from Postgres.
	var (
		scores      messaging.ScoreBoard
		leaderboard service.LeaderboardCache
	)
	if redisClient := connectRedis(cfg.Redis, log); redisClient != nil {
		defer redisClient.Close()
		lb := cache.NewLeaderboard(redisClient, cfg.Redis.Key)
		scores, leaderboard = lb, lb
	}

	m := metrics.New()

	sseHub := messaging.NewSSEHub()
	go sseHub.Run()

	complaintRepo := repository.NewComplaintRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	awards := ledger.New()

	outboxWorker := messaging.NewOutboxWorker(outboxRepo, rmq, messaging.OutboxConfig{
		Interval:           cfg.Outbox.Interval(),
		BatchSize:          cfg.Outbox.BatchSize,
		PublishedRetention: cfg.Outbox.Retention(),
	}, m, log)
	outboxWorker.Start()

	retry := messaging.RetryConfig{}
	if cfg.RabbitMQ.RetryAttempts > 0 {
		retry.Attempts = uint(cfg.RabbitMQ.RetryAttempts)
	}
	consumer := messaging.NewNotificationConsumer(rmq, notificationRepo, sseHub, scores, retry, m, log)
	consumer.Start()

	complaintService := service.NewComplaintService(complaintRepo, userRepo, outboxRepo, awards, m, log)
	taskService := service.NewTaskService(taskRepo, userRepo, outboxRepo, awards, m, log).
		WithDefaultRadius(cfg.Geo.DefaultRadiusMeters)
	userService := service.NewUserService(userRepo, leaderboard, log)
	notificationService := service.NewNotificationService(notificationRepo, sseHub)
	adminService := service.NewAdminService(outboxRepo)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Handlers{
		Complaint:    handler.NewComplaintHandler(complaintService, log),
		Task:         handler.NewTaskHandler(taskService, log),
		User:         handler.NewUserHandler(userService, log),
		Notification: handler.NewNotificationHandler(notificationService, log),
		Admin:        handler.NewAdminHandler(adminService, db, log),
	}, handler.RouterConfig{
		Auth:    handler.NewAuthenticator(cfg.JWT.Secret),
		Metrics: m,
		Log:     log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	// Open event streams only end when the hub closes their channels.
	sseHub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server did not shut down cleanly")
	}

	outboxWorker.Stop()
	consumer.Stop()
	log.Info("stopped gracefully")
}

// connectRedis returns nil when Redis is not configured or unreachable.
func connectRedis(cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		log.Info("redis not configured, leaderboard served from database")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable, leaderboard served from database")
		client.Close()
		return nil
	}
	log.WithField("addr", cfg.Addr).Info("connected to redis")
	return client
}
