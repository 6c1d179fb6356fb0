package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// ListAssets fetches the asset catalog ordered by market cap.
// A non-positive limit leaves the server default in place.
func (c *Client) ListAssets(ctx context.Context, limit int) ([]model.Asset, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp []APIAsset
	if err := c.get(ctx, "/cryptos", query, &resp); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	assets := make([]model.Asset, 0, len(resp))
	for i := range resp {
		assets = append(assets, resp[i].ToModel())
	}
	return assets, nil
}

// GetAsset fetches a single asset's detail. Unknown ids return an error
// matching ErrNotFound.
func (c *Client) GetAsset(ctx context.Context, id string) (model.AssetDetail, error) {
	var resp APIAssetDetail
	if err := c.get(ctx, "/cryptos/"+url.PathEscape(id), nil, &resp); err != nil {
		return model.AssetDetail{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return resp.ToModel(), nil
}

// Health checks the API liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.get(ctx, "/health", nil, &resp); err != nil {
		return fmt.Errorf("health: %w", err)
	}
	if resp.Status != "" && resp.Status != "healthy" {
		return fmt.Errorf("health: status %q", resp.Status)
	}
	return nil
}
