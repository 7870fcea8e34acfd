package main

import (
	"context"
	"errors"
	"gatebot/internal/config"
	"gatebot/internal/engine"
	"gatebot/internal/exchange/gate"
	"gatebot/internal/exchange/gate/rest"
	"gatebot/internal/exchange/gate/ws"
	"gatebot/internal/logger"
	"gatebot/internal/telemetry"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logger.New(logger.Config{
		Level:      cfg.Runtime.Log.Level,
		Format:     cfg.Runtime.Log.Format,
		Output:     cfg.Runtime.Log.File,
		MaxSize:    cfg.Runtime.Log.MaxSize,
		MaxBackups: cfg.Runtime.Log.MaxBackups,
		MaxAge:     cfg.Runtime.Log.MaxAge,
		Compress:   cfg.Runtime.Log.Compress,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.WithError(err).Fatal("Не удалось настроить телеметрию.")
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Ошибка остановки телеметрии.")
		}
	}()

	restClient := rest.New(cfg.Exchange.Domain, cfg.Exchange.Prefix, cfg.Exchange.Settle, cfg.Exchange.ApiKey, cfg.Exchange.Secret, logger,
		rest.WithDebug(cfg.Exchange.Debug),
		rest.WithTimeout(cfg.Exchange.Timeout),
		rest.WithRateLimit(cfg.Exchange.RateLimit, cfg.Exchange.RateBurst),
	)

	stream := ws.New(ws.Config{
		URL:                 ws.Endpoint(cfg.Exchange.WSDomain, cfg.Exchange.Settle),
		Channel:             cfg.Stream.Channel,
		Subscriptions:       cfg.Stream.Subscriptions,
		HeartbeatInterval:   cfg.Stream.HeartbeatInterval,
		ResubscribeInterval: cfg.Stream.ResubscribeInterval,
		RetryDelay:          cfg.Stream.RetryDelay,
		MaxRetryDelay:       cfg.Stream.MaxRetryDelay,
		MaxRetryAttempts:    cfg.Stream.MaxRetryAttempts,
		QueueSize:           cfg.Stream.QueueSize,
		IdleTimeout:         cfg.Stream.IdleTimeout,
		HandshakeTimeout:    cfg.Stream.HandshakeTimeout,
		WriteTimeout:        cfg.Stream.WriteTimeout,
	}, logger)

	client := gate.New(restClient, stream, logger)

	logger.WithFields(map[string]interface{}{
		"domain":        cfg.Exchange.Domain,
		"ws_domain":     cfg.Exchange.WSDomain,
		"settle":        restClient.Settle(),
		"testnet":       cfg.Exchange.Testnet,
		"subscriptions": client.Subscriptions(),
	}).Info("Бот запущен.")

	eng := engine.New(cfg, client, logger)

	done := make(chan error, 1)
	go func() {
		done <- eng.Start(ctx)
	}()

	select {
	case <-sigCh:
		cancel()
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("\"Двигатель\" завершился с ошибкой.")
		}
	}

	logger.Info("Бот остановлен.")
}
