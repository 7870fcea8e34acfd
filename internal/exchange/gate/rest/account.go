package rest

import (
	"context"
	"gatebot/internal/models"
)

func (c *Client) Position(ctx context.Context, contract string) (models.Position, error) {
	var position models.Position

	if err := c.Get(ctx, c.futuresPath("positions", contract), nil, &position); err != nil {
		return models.Position{}, err
	}

	return position, nil
}

func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position

	if err := c.Get(ctx, c.futuresPath("positions"), nil, &positions); err != nil {
		return nil, err
	}

	return positions, nil
}

func (c *Client) Account(ctx context.Context) (models.Account, error) {
	var account models.Account

	if err := c.Get(ctx, c.futuresPath("accounts"), nil, &account); err != nil {
		return models.Account{}, err
	}

	return account, nil
}
