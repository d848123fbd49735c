// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paygate/cmd"
	"paygate/internal/adaptor"
	"paygate/internal/data/repository"
	"paygate/internal/provider/vnpay"
	"paygate/internal/rate"
	"paygate/internal/trigger"
	"paygate/internal/usecase"
	"paygate/internal/wire"
	"paygate/pkg/cache"
	"paygate/pkg/database"
	"paygate/pkg/mailer"
	"paygate/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	if err := config.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	checks := []adaptor.HealthCheck{{Name: "postgres", Ping: db.Ping}}

	// Rate limits need Redis; without it they are off
	var store rate.Store
	if config.Redis.Addr != "" {
		c, err := cache.New(ctx, config.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer c.Close()
		store = c
		checks = append(checks, adaptor.HealthCheck{Name: "redis", Ping: c.Ping})
		logger.Info("Redis connected", zap.String("addr", config.Redis.Addr))
	} else {
		logger.Warn("REDIS_ADDR not set, OTP rate limits disabled")
	}

	infra := usecase.Infra{
		Gateway: vnpay.New(vnpay.Config{
			TmnCode:     config.VNPay.TmnCode,
			HashSecret:  config.VNPay.HashSecret,
			PayURL:      config.VNPay.PayURL,
			ReturnURL:   config.VNPay.ReturnURL,
			Version:     config.VNPay.Version,
			Command:     config.VNPay.Command,
			CurrCode:    config.VNPay.CurrCode,
			ExpireAfter: time.Duration(config.VNPay.ExpireMinutes) * time.Minute,
		}),
		Mailer:      mailer.New(config.Email, logger),
		SendLimiter: rate.NewSendLimiter(store, config.OTP.MaxSendsPerHour, time.Hour, logger),
		Lockout:     rate.NewLockout(store, config.OTP.MaxFailedAttempts, time.Duration(config.OTP.LockoutMinutes)*time.Minute, logger),
		Clock:       time.Now,
	}

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, infra, checks, config, logger)

	listener := trigger.NewListener(db, config.Trigger, logger,
		trigger.Route{
			Channel: database.ChannelPaymentCreated,
			Handle:  app.Service.Payment.OnCreated,
			Pending: repos.PaymentRequest,
		},
		trigger.Route{
			Channel: database.ChannelEmailCreated,
			Handle:  app.Service.Notification.Deliver,
			Pending: repos.EmailRequest,
		},
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cmd.APIServer(ctx, app.Router, config.App.Port, config.App.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		return listener.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		return
	}
	logger.Info("Application stopped")
}
