package exchange

import (
	"context"
	"gatebot/internal/models"
)

// MessageHandler получает сырые текстовые кадры потока, по одному за раз и в порядке получения.
type MessageHandler interface {
	Handle(ctx context.Context, text string) error
}

type MessageHandlerFunc func(ctx context.Context, text string) error

func (f MessageHandlerFunc) Handle(ctx context.Context, text string) error {
	return f(ctx, text)
}

type Subscription struct {
	Interval string
	Symbol   string
}

type Client interface {
	Contracts(ctx context.Context) ([]models.Contract, error)
	Contract(ctx context.Context, name string) (models.Contract, error)
	Candlesticks(ctx context.Context, contract, interval string, limit int) ([]models.Candlestick, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.FuturesOrder, error)
	GetOrder(ctx context.Context, orderID string) (models.FuturesOrder, error)
	CancelOrder(ctx context.Context, orderID string) (models.FuturesOrder, error)
	OpenOrders(ctx context.Context, contract string) ([]models.FuturesOrder, error)
	Position(ctx context.Context, contract string) (models.Position, error)
	Positions(ctx context.Context) ([]models.Position, error)
	Account(ctx context.Context) (models.Account, error)
	Stream(ctx context.Context, handler MessageHandler) error
}
