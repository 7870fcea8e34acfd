package rest

import (
	"context"
	"fmt"
	"gatebot/internal/models"
	"strconv"
	"strings"
)

func (c *Client) futuresPath(parts ...string) string {
	return "/futures/" + c.settle + "/" + strings.Join(parts, "/")
}

func (c *Client) Contracts(ctx context.Context) ([]models.Contract, error) {
	var contracts []models.Contract

	if err := c.Get(ctx, c.futuresPath("contracts"), nil, &contracts); err != nil {
		return nil, err
	}

	return contracts, nil
}

func (c *Client) Contract(ctx context.Context, name string) (models.Contract, error) {
	if name == "" {
		return models.Contract{}, fmt.Errorf("Не указан контракт")
	}

	var contract models.Contract

	if err := c.Get(ctx, c.futuresPath("contracts", name), nil, &contract); err != nil {
		return models.Contract{}, err
	}

	if contract.Name == "" {
		return models.Contract{}, fmt.Errorf("Контракт не найден: %s", name)
	}

	return contract, nil
}

// Candlesticks возвращает последние limit свечей; limit <= 0 оставляет значение по умолчанию биржи.
func (c *Client) Candlesticks(ctx context.Context, contract, interval string, limit int) ([]models.Candlestick, error) {
	params := map[string]string{
		"contract": contract,
	}
	if interval != "" {
		params["interval"] = interval
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var candles []models.Candlestick

	if err := c.Get(ctx, c.futuresPath("candlesticks"), params, &candles); err != nil {
		return nil, err
	}

	return candles, nil
}
