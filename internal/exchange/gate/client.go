package gate

import (
	"context"
	"gatebot/internal/exchange"
	"gatebot/internal/exchange/gate/rest"
	"gatebot/internal/exchange/gate/ws"
	"gatebot/internal/logger"
	"gatebot/internal/models"
)

var _ exchange.Client = (*Client)(nil)

type Client struct {
	rest   *rest.Client
	stream *ws.Client
	log    *logger.Logger
}

func New(restClient *rest.Client, stream *ws.Client, log *logger.Logger) *Client {
	return &Client{
		rest:   restClient,
		stream: stream,
		log:    log,
	}
}

func (c *Client) Contracts(ctx context.Context) ([]models.Contract, error) {
	return c.rest.Contracts(ctx)
}

func (c *Client) Contract(ctx context.Context, name string) (models.Contract, error) {
	return c.rest.Contract(ctx, name)
}

func (c *Client) Candlesticks(ctx context.Context, contract, interval string, limit int) ([]models.Candlestick, error) {
	return c.rest.Candlesticks(ctx, contract, interval, limit)
}

func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (models.FuturesOrder, error) {
	order, err := c.rest.PlaceOrder(ctx, req)
	if err != nil {
		c.log.WithSymbol(req.Contract).WithError(err).Warn("Не удалось разместить ордер.")
		return models.FuturesOrder{}, err
	}
	c.log.WithSymbol(req.Contract).WithField("order_id", order.ID).Info("Ордер размещён.")
	return order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (models.FuturesOrder, error) {
	return c.rest.GetOrder(ctx, orderID)
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (models.FuturesOrder, error) {
	order, err := c.rest.CancelOrder(ctx, orderID)
	if err != nil {
		return models.FuturesOrder{}, err
	}
	c.log.WithOrderID(orderID).Info("Ордер отменён.")
	return order, nil
}

func (c *Client) OpenOrders(ctx context.Context, contract string) ([]models.FuturesOrder, error) {
	return c.rest.OpenOrders(ctx, contract)
}

func (c *Client) Position(ctx context.Context, contract string) (models.Position, error) {
	return c.rest.Position(ctx, contract)
}

func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	return c.rest.Positions(ctx)
}

func (c *Client) Account(ctx context.Context) (models.Account, error) {
	return c.rest.Account(ctx)
}

// Stream блокируется, пока работает сессия потока.
func (c *Client) Stream(ctx context.Context, handler exchange.MessageHandler) error {
	return c.stream.Run(ctx, handler)
}

func (c *Client) Subscriptions() []exchange.Subscription {
	return c.stream.Subscriptions()
}
