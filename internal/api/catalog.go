package api

import (
	"context"

	"github.com/BrewHubPHL/pos-terminal/domain"
)

type menuResponse struct {
	Items []domain.MenuItem `json:"items"`
}

// Menu fetches the active catalog from the trusted price source.
func (c *Client) Menu(ctx context.Context) ([]domain.MenuItem, error) {
	var out menuResponse
	if err := c.get(ctx, "fetch menu", "/get-menu", &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}
