package engine

import (
	"context"
	"fmt"
	"gatebot/internal/models"
	"time"

	json "github.com/goccy/go-json"
)

const candleLogInterval = 5 * time.Second

type streamMessage struct {
	Time    int64           `json:"time"`
	TimeMs  int64           `json:"time_ms"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Op      string          `json:"op"`
	Error   *streamError    `json:"error"`
	Result  json.RawMessage `json:"result"`
}

type streamError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handle разбирает кадр потока. Ошибка означает только непонятный кадр, поток при этом продолжается.
func (e *Engine) Handle(ctx context.Context, text string) error {
	var msg streamMessage
	if err := json.Unmarshal([]byte(text), &msg); err != nil {
		return fmt.Errorf("Не удалось разобрать сообщение потока: %w", err)
	}

	if msg.Error != nil {
		e.logEntry().WithFields(map[string]interface{}{
			"channel": msg.Channel,
			"event":   msg.Event,
			"code":    msg.Error.Code,
		}).Warn(fmt.Sprintf("Биржа вернула ошибку: %s", msg.Error.Message))
		return nil
	}

	switch {
	case msg.Event == "subscribe":
		e.logEntry().WithField("channel", msg.Channel).Debug("Подписка подтверждена.")
	case msg.Event == "update" && msg.Channel == e.channel:
		return e.handleCandles(ctx, msg.Result)
	case msg.Op == "pong" || msg.Channel == "futures.pong":
		e.logEntry().Debug("pong")
	}

	return nil
}

func (e *Engine) handleCandles(_ context.Context, raw json.RawMessage) error {
	var candles []models.Candlestick
	if err := json.Unmarshal(raw, &candles); err != nil {
		return fmt.Errorf("Не удалось разобрать свечи: %w", err)
	}

	for _, c := range candles {
		if !e.state.Update(c) {
			continue
		}
		e.logCandle(c)
	}
	return nil
}

// logCandle пишет не чаще раза в candleLogInterval на пару, закрытые свечи всегда.
func (e *Engine) logCandle(c models.Candlestick) {
	now := time.Now()

	e.mu.Lock()
	last := e.lastCandleLog[c.N]
	if !c.Closed && now.Sub(last) < candleLogInterval {
		e.mu.Unlock()
		return
	}
	e.lastCandleLog[c.N] = now
	contract, known := e.contracts[c.Contract()]
	e.mu.Unlock()

	closePrice := c.C.Decimal
	if known {
		closePrice = roundToTick(closePrice, contract.OrderPriceRound.Decimal)
	}

	entry := e.logEntry().WithFields(map[string]interface{}{
		"symbol":   c.Contract(),
		"interval": c.Interval(),
		"ts":       c.Time().Unix(),
		"close":    closePrice.String(),
		"volume":   c.V,
		"change":   changePercent(c).String() + "%",
		"range":    rangePercent(c).String() + "%",
	})
	if c.Closed {
		entry.Info("Свеча закрыта.")
		return
	}
	entry.Debug("Свеча обновлена.")
}
