// @title Event Registration API
// @version 1.0
// @description Registration pricing, discounts and payment orchestration for events.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventregistration/config"
	_ "eventregistration/docs"
	"eventregistration/internal/adapters/auth"
	"eventregistration/internal/adapters/email"
	"eventregistration/internal/adapters/gateway"
	"eventregistration/internal/database"
	deliveryhttp "eventregistration/internal/delivery/http"
	"eventregistration/internal/delivery/http/controllers"
	"eventregistration/internal/delivery/http/middleware"
	"eventregistration/internal/repository/postgres"
	"eventregistration/internal/services"
	"eventregistration/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger()
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, config.ServiceName, cfg.Environment, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", "err", err)
		}
	}()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.MigrateUp(db, logger); err != nil {
		return err
	}

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Mailer.Provider,
		FromAddress: cfg.Mailer.FromAddress,
		FromName:    cfg.Mailer.FromName,
		SES: email.SESConfig{
			Region:             cfg.Mailer.AWSRegion,
			AccessKeyID:        cfg.Mailer.AWSAccessKeyID,
			SecretAccessKey:    cfg.Mailer.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.Mailer.InsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return err
	}
	paymentGateway, err := gateway.NewGateway(gateway.GatewayConfig{
		Provider:      cfg.Gateway.Provider,
		SecretKey:     cfg.Gateway.SecretKey,
		WebhookSecret: cfg.Gateway.WebhookSecret,
	}, logger)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to verify organizer tokens")
	}

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	orgRepo := postgres.NewOrganizationRepository(db)
	couponRepo := postgres.NewCouponRepository(db)
	registrationRepo := postgres.NewRegistrationRepository(db)
	balanceRepo := postgres.NewPaymentBalanceRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	uow := postgres.NewUnitOfWork(db)

	// Services
	notifier := services.NewEmailNotifier(mailer, email.NewTemplateRenderer(), logger)
	checkout := services.NewCardCheckout(paymentGateway, paymentRepo, orgRepo, services.CheckoutConfig{
		Currency:           cfg.Gateway.Currency,
		PublicBaseURL:      cfg.Gateway.PublicBaseURL,
		PlatformFeePercent: cfg.PlatformFeePercent,
	})
	eventService := services.NewEventService(eventRepo, couponRepo, registrationRepo, cfg.CodeMaxAttempts, cfg.RequestTimeout)
	registrationService := services.NewRegistrationService(eventRepo, registrationRepo, couponRepo, paymentRepo, uow,
		checkout, notifier, cfg.CodeMaxAttempts, logger)
	paymentService := services.NewPaymentService(eventRepo, registrationRepo, balanceRepo, paymentRepo, uow,
		checkout, notifier, logger)

	// HTTP
	router := deliveryhttp.NewRouter(
		controllers.NewRegistrationController(logger, registrationService, paymentService),
		controllers.NewWebhookController(logger, paymentGateway, paymentService),
		controllers.NewAdminController(logger, eventService, paymentService),
		deliveryhttp.RouterConfig{
			Verifier:       auth.NewJWTVerifier(cfg.JWTSecret),
			Limiter:        middleware.NewClientLimiter(cfg.RegistrationRateLimit, cfg.RegistrationRateLimit).TrustForwardedFor(cfg.TrustProxyHeaders),
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Logger:         logger,
		},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
