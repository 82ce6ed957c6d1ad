package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/storefront-service/internal/cache"
	"github.com/kjstillabower/storefront-service/internal/circuitbreaker"
	"github.com/kjstillabower/storefront-service/internal/client"
	"github.com/kjstillabower/storefront-service/internal/clock"
	"github.com/kjstillabower/storefront-service/internal/config"
	httphandler "github.com/kjstillabower/storefront-service/internal/http"
	"github.com/kjstillabower/storefront-service/internal/lifecycle"
	"github.com/kjstillabower/storefront-service/internal/notify"
	"github.com/kjstillabower/storefront-service/internal/observability"
	"github.com/kjstillabower/storefront-service/internal/security"
	"github.com/kjstillabower/storefront-service/internal/service"
	"github.com/kjstillabower/storefront-service/internal/storefront"
)

const inFlightCheckInterval = 50 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	clk := clock.System{}

	var breakers []*circuitbreaker.CircuitBreaker
	clientOpts := func(component string, timeout time.Duration) client.Options {
		opts := client.Options{
			Timeout:        timeout,
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
		}
		if cfg.CircuitBreakerEnabled {
			opts.Breaker = circuitbreaker.New(circuitbreaker.Config{
				FailureThreshold: cfg.CircuitBreakerFailureThreshold,
				SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
				Timeout:          cfg.CircuitBreakerTimeout,
				Component:        component,
				Clock:            clk,
				OnStateChange: func(component string, from, to circuitbreaker.State) {
					logger.Warn("circuit breaker state change",
						zap.String("component", component),
						zap.String("from", from.String()),
						zap.String("to", to.String()))
					observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
				},
			})
			breakers = append(breakers, opts.Breaker)
		}
		return opts
	}

	ratesClient, err := client.NewExchangeRateClient(cfg.ExchangeAPIURL, clientOpts("exchange_api", cfg.ExchangeAPITimeout))
	if err != nil {
		logger.Fatal("exchange rate client", zap.Error(err))
	}
	shippingClient, err := client.NewShippingClient(cfg.ShippingAPIURL, clientOpts("shipping_api", cfg.ShippingAPITimeout))
	if err != nil {
		logger.Fatal("shipping client", zap.Error(err))
	}
	paymentClient, err := client.NewPaymentClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, clientOpts("payment_api", cfg.PaymentAPITimeout))
	if err != nil {
		logger.Fatal("payment client", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var rateCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case config.CacheBackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		rateCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		rateCache = cache.NewInMemoryCache(clk)
		logger.Info("cache backend: in_memory")
	}
	rateService := service.NewRateService(ratesClient, rateCache, cfg.CacheTTL, cfg.CoalesceTimeout, clk)

	if len(cfg.WarmCurrencies) > 0 {
		warmer := cache.NewWarmer(rateService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, cfg.WarmBaseCurrency, cfg.WarmCurrencies); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), cfg.WarmBaseCurrency, cfg.WarmCurrencies, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	emailSender, err := newEmailSender(cfg, logger)
	if err != nil {
		logger.Fatal("email sender", zap.Error(err))
	}

	shop := storefront.New(storefront.Deps{
		Rates:     rateService,
		Shipping:  shippingClient,
		Analytics: observability.NewPageViewTracker(logger),
		Payments:  paymentClient,
		Email:     emailSender,
		Codes:     security.NewGenerator(),
		Clock:     clk,
		Logger:    logger,
	})

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		Breakers:             breakers,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(shop, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	observability.RegisterTrafficGauges(cfg.OverloadWindow)
	lifecycle.MarkStarted(time.Now())

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete", zap.Duration("uptime", lifecycle.Uptime(time.Now())))
}

// newEmailSender picks the delivery backend. The log backend never leaves the process.
func newEmailSender(cfg *config.Config, logger *zap.Logger) (storefront.EmailSender, error) {
	switch cfg.EmailBackend {
	case config.EmailBackendSMTP:
		var auth smtp.Auth
		if cfg.SMTPUsername != "" {
			host, _, err := net.SplitHostPort(cfg.SMTPAddr)
			if err != nil {
				return nil, fmt.Errorf("smtp address: %w", err)
			}
			auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, host)
		}
		sender, err := notify.NewSMTPSender(cfg.SMTPAddr, cfg.EmailFrom, auth)
		if err != nil {
			return nil, err
		}
		logger.Info("email backend: smtp", zap.String("addr", cfg.SMTPAddr))
		return sender, nil
	default:
		logger.Info("email backend: log")
		return notify.NewLogSender(logger), nil
	}
}
