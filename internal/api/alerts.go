package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/marvelcn015/crypto-tracker/internal/model"
)

// ErrInvalidAlert is returned when a create request fails local validation.
var ErrInvalidAlert = errors.New("invalid alert request")

// ListAlerts fetches alerts, optionally filtered by status.
func (c *Client) ListAlerts(ctx context.Context, status model.AlertStatus) ([]model.Alert, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}

	var resp []APIAlert
	if err := c.get(ctx, "/alerts", query, &resp); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	alerts := make([]model.Alert, 0, len(resp))
	for i := range resp {
		alerts = append(alerts, resp[i].ToModel())
	}
	return alerts, nil
}

// CreateAlert creates a pending alert and returns the server's record.
func (c *Client) CreateAlert(ctx context.Context, req model.CreateAlertRequest) (model.Alert, error) {
	if req.AssetID == "" || req.TargetPrice <= 0 || !req.Condition.Valid() {
		return model.Alert{}, ErrInvalidAlert
	}

	body := createAlertBody{
		CryptoID:    req.AssetID,
		TargetPrice: req.TargetPrice,
		Condition:   string(req.Condition),
		Note:        req.Note,
	}

	var resp APIAlert
	if err := c.send(ctx, http.MethodPost, "/alerts", body, &resp); err != nil {
		return model.Alert{}, fmt.Errorf("create alert: %w", err)
	}
	return resp.ToModel(), nil
}

// DeleteAlert deletes an alert. It is never retried.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	if err := c.send(ctx, http.MethodDelete, "/alerts/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	return nil
}
