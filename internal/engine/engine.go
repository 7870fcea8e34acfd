package engine

import (
	"context"
	"fmt"
	"gatebot/internal/config"
	"gatebot/internal/exchange"
	"gatebot/internal/exchange/gate/rest"
	"gatebot/internal/logger"
	"gatebot/internal/models"
	"sync"
	"time"
)

type Engine struct {
	cfg    *config.Config
	client exchange.Client
	log    *logger.Logger

	channel       string
	retryAttempts int
	retryBase     time.Duration

	mu            sync.RWMutex
	contracts     map[string]models.Contract
	state         *MarketState
	lastCandleLog map[string]time.Time
}

func New(cfg *config.Config, client exchange.Client, log *logger.Logger) *Engine {
	channel := cfg.Stream.Channel
	if channel == "" {
		channel = "futures.candlesticks"
	}
	return &Engine{
		cfg:           cfg,
		channel:       channel,
		client:        client,
		log:           log,
		retryAttempts: 5,
		retryBase:     time.Second,
		contracts:     make(map[string]models.Contract),
		state:         NewMarketState(),
		lastCandleLog: make(map[string]time.Time),
	}
}

// Start загружает параметры контрактов, подтягивает последние свечи и держит поток до отмены ctx.
func (e *Engine) Start(ctx context.Context) error {
	for _, sub := range e.cfg.Stream.Subscriptions {
		contract, err := e.withRetryContract(ctx, sub.Symbol)
		if err != nil {
			return fmt.Errorf("Не удалось получить контракт %s: %w", sub.Symbol, err)
		}

		e.mu.Lock()
		e.contracts[contract.Name] = contract
		e.mu.Unlock()

		e.logEntry().WithFields(map[string]interface{}{
			"symbol":      contract.Name,
			"price_round": contract.OrderPriceRound.String(),
			"mark_price":  contract.MarkPrice.String(),
			"size_min":    contract.OrderSizeMin,
		}).Info("Получены параметры контракта.")

		e.backfill(ctx, sub)
	}

	e.logEntry().WithField("subscriptions", len(e.cfg.Stream.Subscriptions)).Info("Запуск потока свечей.")

	return e.client.Stream(ctx, e)
}

// backfill не критичен: без истории поток всё равно заполнит состояние.
func (e *Engine) backfill(ctx context.Context, sub exchange.Subscription) {
	candles, err := e.client.Candlesticks(ctx, sub.Symbol, sub.Interval, 1)
	if err != nil {
		e.logEntry().WithError(err).WithField("symbol", sub.Symbol).Warn("Не удалось загрузить последние свечи.")
		return
	}

	for _, c := range candles {
		if c.N == "" {
			c.N = sub.Interval + "_" + sub.Symbol
		}
		e.state.Update(c)
	}
}

func (e *Engine) Contract(name string) (models.Contract, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.contracts[name]
	return c, ok
}

func (e *Engine) State() *MarketState {
	return e.state
}

func (e *Engine) withRetryContract(ctx context.Context, symbol string) (models.Contract, error) {
	var lastErr error
	wait := e.retryBase
	for i := 0; i < e.retryAttempts; i++ {
		contract, err := e.client.Contract(ctx, symbol)
		if err == nil {
			return contract, nil
		}
		lastErr = err

		pause := min(wait, e.retryBase*30)
		if isRateLimitError(err) {
			pause = min(wait*4, e.retryBase*30)
		}
		e.logEntry().WithError(err).WithField("attempt", i+1).Info("Ошибка. Повторяем запрос")

		select {
		case <-ctx.Done():
			return models.Contract{}, ctx.Err()
		case <-time.After(pause):
		}
		wait *= 2
	}
	return models.Contract{}, lastErr
}

func isRateLimitError(err error) bool {
	return rest.IsRateLimit(err)
}
