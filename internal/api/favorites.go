package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// ListFavorites fetches the user's favorites.
func (c *Client) ListFavorites(ctx context.Context) ([]model.Favorite, error) {
	var resp []APIFavorite
	if err := c.get(ctx, "/favorites", nil, &resp); err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	favs := make([]model.Favorite, 0, len(resp))
	for i := range resp {
		favs = append(favs, resp[i].ToModel())
	}
	return favs, nil
}

// AddFavorite stars an asset.
func (c *Client) AddFavorite(ctx context.Context, assetID string) error {
	if err := c.send(ctx, http.MethodPost, "/favorites", addFavoriteBody{CryptoID: assetID}, nil); err != nil {
		return fmt.Errorf("add favorite %s: %w", assetID, err)
	}
	return nil
}

// RemoveFavorite unstars an asset.
func (c *Client) RemoveFavorite(ctx context.Context, assetID string) error {
	if err := c.send(ctx, http.MethodDelete, "/favorites/"+url.PathEscape(assetID), nil, nil); err != nil {
		return fmt.Errorf("remove favorite %s: %w", assetID, err)
	}
	return nil
}
