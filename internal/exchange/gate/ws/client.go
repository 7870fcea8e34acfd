package ws

import (
	"context"
	"errors"
	"fmt"
	"gatebot/internal/exchange"
	"gatebot/internal/logger"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Option func(*Client)

// WithClock подменяет часы для меток времени в кадрах subscribe и ping. Сроки чтения и записи на сокете от них не зависят.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New заполняет нулевые поля конфигурации значениями по умолчанию. IdleTimeout не трогается: 0 его отключает.
func New(cfg Config, log *logger.Logger, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Channel == "" {
		cfg.Channel = def.Channel
	}
	if len(cfg.Subscriptions) == 0 {
		cfg.Subscriptions = def.Subscriptions
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ResubscribeInterval <= 0 {
		cfg.ResubscribeInterval = def.ResubscribeInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = max(def.MaxRetryDelay, cfg.RetryDelay)
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = def.MaxRetryAttempts
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	c := &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log:      log,
		metrics:  newStreamMetrics(),
		now:      time.Now,
		deadline: time.Now,
		wait:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RunFunc(ctx context.Context, fn func(ctx context.Context, text string) error) error {
	return c.Run(ctx, exchange.MessageHandlerFunc(fn))
}

// Run держит сессию до отмены ctx или исчерпания попыток. Кадры передаются handler по одному, в порядке получения.
func (c *Client) Run(ctx context.Context, handler exchange.MessageHandler) error {
	if handler == nil {
		return errors.New("Не задан обработчик сообщений WS")
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	retry := newRetryState(c.cfg.RetryDelay, c.cfg.MaxRetryDelay, c.cfg.MaxRetryAttempts)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cause := c.session(ctx, handler, retry)

		if err := ctx.Err(); err != nil {
			c.logEntry().Info("WS сессия остановлена.")
			return err
		}

		delay, ok := retry.fail()
		if !ok {
			c.logEntry().WithError(cause).WithField("attempts", retry.attempts).Error("Исчерпаны попытки переподключения к WS.")
			return fmt.Errorf("%w (%d): %w", ErrRetriesExhausted, retry.attempts, cause)
		}

		c.logEntry().WithError(cause).WithFields(logrus.Fields{
			"attempt": retry.attempts,
			"delay":   delay.String(),
		}).Warn("Соединение WS потеряно, повтор после паузы.")

		if err := c.wait(ctx, delay); err != nil {
			return err
		}
	}
}

// Send ставит кадр в очередь текущего соединения. Кадр не переживает переподключение.
func (c *Client) Send(ctx context.Context, frame any) error {
	data, err := encodeFrame(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ep := c.current
	c.mu.Unlock()

	if ep == nil {
		return ErrNotConnected
	}
	return ep.enqueue(ctx, data)
}

func (c *Client) Subscriptions() []exchange.Subscription {
	out := make([]exchange.Subscription, len(c.cfg.Subscriptions))
	copy(out, c.cfg.Subscriptions)
	return out
}

// session проводит одно соединение от подключения до разрыва и возвращает причину разрыва.
func (c *Client) session(ctx context.Context, handler exchange.MessageHandler, retry *retryState) error {
	c.logEntry().WithField("url", c.cfg.URL).Info("Подключение к WS.")

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.metrics.disconnected(ctx, "connect")
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	conn.SetReadLimit(readLimit)

	if err := c.subscribeAll(conn); err != nil {
		_ = conn.Close()
		c.metrics.disconnected(ctx, "subscribe")
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}

	retry.reset()
	c.metrics.connected(ctx)

	ep := newEpoch(ctx, c.epochSeq.Add(1), conn, c.cfg.QueueSize)
	ep.log = c.log.WithEpoch(ep.id).WithField("component", "gate.ws")
	ep.log.WithField("subscriptions", len(c.cfg.Subscriptions)).Info("WS соединение установлено, подписки отправлены.")

	c.setCurrent(ep)
	defer c.clearCurrent(ep)

	cause := c.serve(ep, handler)
	c.metrics.disconnected(ctx, reason(cause))
	return cause
}

// subscribeAll пишет подписки синхронно, до запуска любых фоновых задач соединения.
func (c *Client) subscribeAll(conn *websocket.Conn) error {
	for _, sub := range c.cfg.Subscriptions {
		data, err := encodeFrame(c.subscribeFrame(sub))
		if err != nil {
			return err
		}
		if err := conn.SetWriteDeadline(c.deadline().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) subscribeFrame(sub exchange.Subscription) SubscribeFrame {
	return SubscribeFrame{
		Time:    c.now().Unix(),
		Channel: c.cfg.Channel,
		Event:   "subscribe",
		Payload: []string{sub.Interval, sub.Symbol},
	}
}

func (c *Client) pingFrame() PingFrame {
	return PingFrame{Op: "ping", Ping: c.now().Unix()}
}

func (c *Client) setCurrent(ep *epoch) {
	c.mu.Lock()
	c.current = ep
	c.mu.Unlock()
}

func (c *Client) clearCurrent(ep *epoch) {
	c.mu.Lock()
	if c.current == ep {
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *Client) logEntry() *logrus.Entry {
	return c.log.WithComponent("gate.ws")
}

func encodeFrame(frame any) ([]byte, error) {
	switch v := frame.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("Не удалось сериализовать кадр WS: %w", err)
	}
	return data, nil
}

func reason(err error) string {
	switch {
	case err == nil:
		return "cancel"
	case errors.Is(err, ErrIdle):
		return "idle"
	case errors.Is(err, ErrSend):
		return "send"
	case errors.Is(err, ErrReceive):
		return "receive"
	default:
		return "other"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
