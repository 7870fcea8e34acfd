package ws

import (
	"gatebot/internal/exchange"
)

// dispatch вызывается только из reader: обработчик получает кадры последовательно.
// Ошибка обработчика не рвёт соединение, паника не перехватывается.
func (c *Client) dispatch(ep *epoch, handler exchange.MessageHandler, text string) {
	if err := handler.Handle(ep.ctx, text); err != nil {
		c.metrics.handlerError(ep.ctx)
		ep.log.WithError(err).Warn("Обработчик WS сообщения вернул ошибку.")
	}
}
