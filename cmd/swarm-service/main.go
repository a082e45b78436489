package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/huntswarm/huntswarm/internal/config"
	"github.com/huntswarm/huntswarm/internal/hunter"
	"github.com/huntswarm/huntswarm/internal/queue"
	"github.com/huntswarm/huntswarm/internal/store"
	"github.com/huntswarm/huntswarm/internal/swarm"
	"github.com/huntswarm/huntswarm/shared/logger"
	"github.com/huntswarm/huntswarm/shared/postgresql"
	"github.com/huntswarm/huntswarm/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("SWARM_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/swarm-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateSwarmConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting swarm service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := dbClient.EnsureSchema(context.Background()); err != nil {
		return err
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Wire the orchestrator over durable storage and broker-backed queues
	agentStore := store.NewPostgresStore(dbClient.GetDB(), appLogger.Logger)
	businessStore := store.NewPostgresBusinessStore(dbClient.GetDB())
	registry := hunter.NewDefaultRegistry()

	queueFactory := func(agentType string) (queue.Queue, error) {
		return queue.NewAMQPQueue(rabbitClient, "hunt."+agentType, cfg.RabbitMQ.Consumer.PrefetchCount, appLogger.Logger)
	}

	orchestrator := swarm.New(
		swarm.Config{
			TotalTarget:          cfg.Swarm.TotalTarget,
			BatchSize:            cfg.Swarm.BatchSize,
			QueueConcurrency:     cfg.Swarm.QueueConcurrency,
			MaxDeliveries:        cfg.Swarm.MaxDeliveries,
			RequeueDelay:         cfg.Swarm.RequeueDelay,
			StallCheckInterval:   cfg.Swarm.StallCheckInterval,
			StallAfter:           cfg.Swarm.StallAfter,
			DegradedFailureRatio: cfg.Swarm.DegradedFailureRatio,
			CriticalFailureRatio: cfg.Swarm.CriticalFailureRatio,
			QueueDepthWarning:    cfg.Swarm.QueueDepthWarning,
		},
		agentStore,
		registry,
		queueFactory,
		hunter.Options{
			RateLimit:        cfg.Agent.RateLimit,
			RateWindow:       cfg.Agent.RateWindow,
			Timeout:          cfg.Agent.Timeout,
			RetryAttempts:    cfg.Agent.RetryAttempts,
			RetryDelay:       cfg.Agent.RetryDelay,
			FailureThreshold: cfg.Agent.FailureThreshold,
			Cooldown:         cfg.Agent.Cooldown,
			UseProxy:         cfg.Agent.UseProxy,
			Proxies:          cfg.Agent.Proxies,
		},
		appLogger.Logger,
	)
	orchestrator.SetRecordSink(businessStore)
	orchestrator.SetExportSource(businessStore)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orchestrator.Run(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	// A distribution in the config deploys on boot; otherwise deployment
	// comes through the control service.
	if len(cfg.Swarm.Targets) > 0 {
		targets := make(map[hunter.AgentType]int, len(cfg.Swarm.Targets))
		for typ, target := range cfg.Swarm.Targets {
			targets[hunter.AgentType(typ)] = target
		}
		if err := orchestrator.Start(ctx, targets); err != nil {
			return fmt.Errorf("failed to deploy swarm: %w", err)
		}
	}

	appLogger.Info("Swarm service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	cancel()

	shutdownTimeout := cfg.Swarm.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		orchestrator.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Orchestrator stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Swarm service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		Service:      service,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
