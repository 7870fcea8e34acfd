package rest

import (
	"context"
	"fmt"
	"gatebot/internal/models"
	"strings"

	"github.com/google/uuid"
)

// PlaceOrder размещает фьючерсный ордер. Нулевая цена означает рыночный ордер с tif=ioc.
func (c *Client) PlaceOrder(ctx context.Context, order models.OrderRequest) (models.FuturesOrder, error) {
	if order.Contract == "" {
		return models.FuturesOrder{}, fmt.Errorf("Не указан контракт ордера")
	}
	if order.Size == 0 && !order.Close && order.AutoSize == "" {
		return models.FuturesOrder{}, fmt.Errorf("Нулевой размер допустим только для закрытия позиции")
	}

	body := map[string]any{
		"contract": order.Contract,
		"size":     order.Size,
		"iceberg":  0,
		"text":     orderText(order.Text),
	}

	tif := order.Tif
	if order.Price.IsZero() {
		body["price"] = "0"
		tif = models.TimeInForceIOC
	} else {
		body["price"] = formatWithStep(order.Price, order.PriceTick)
	}
	if tif == "" {
		tif = models.TimeInForceGTC
	}
	body["tif"] = string(tif)

	if order.Close {
		body["close"] = true
	}
	if order.ReduceOnly {
		body["reduce_only"] = true
	}
	if order.AutoSize != "" {
		body["auto_size"] = string(order.AutoSize)
	}

	var placed models.FuturesOrder

	if err := c.Post(ctx, c.futuresPath("orders"), body, &placed); err != nil {
		return models.FuturesOrder{}, err
	}

	return placed, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (models.FuturesOrder, error) {
	var order models.FuturesOrder

	if err := c.Get(ctx, c.futuresPath("orders", orderID), nil, &order); err != nil {
		return models.FuturesOrder{}, err
	}

	return order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (models.FuturesOrder, error) {
	var order models.FuturesOrder

	if err := c.Delete(ctx, c.futuresPath("orders", orderID), nil, &order); err != nil {
		return models.FuturesOrder{}, err
	}

	return order, nil
}

func (c *Client) OpenOrders(ctx context.Context, contract string) ([]models.FuturesOrder, error) {
	params := map[string]string{
		"status": string(models.OrderStatusOpen),
	}
	if contract != "" {
		params["contract"] = contract
	}

	var orders []models.FuturesOrder

	if err := c.Get(ctx, c.futuresPath("orders"), params, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// orderText: пользовательская метка gate обязана начинаться с "t-" и не превышать 30 символов.
func orderText(text string) string {
	if text == "" {
		text = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if !strings.HasPrefix(text, "t-") {
		text = "t-" + text
	}
	if len(text) > 30 {
		text = text[:30]
	}
	return text
}
