// Package alerts posts low-stock notifications to an operator-configured
// webhook (chat bridge, automation endpoint, whatever accepts JSON).
package alerts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client posts alerts to a single webhook URL.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds a webhook client for the given URL.
func NewClient(webhookURL string) *Client {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(webhookURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &Client{httpClient: restyClient}
}

// LowStockAlert is the webhook payload for an item dropping under its
// minimum stock level.
type LowStockAlert struct {
	ItemID   string    `json:"item_id"`
	Name     string    `json:"name"`
	Unit     string    `json:"unit"`
	Balance  float64   `json:"balance"`
	MinStock float64   `json:"min_stock"`
	At       time.Time `json:"at"`
}

// NotifyLowStock delivers one alert.
func (c *Client) NotifyLowStock(ctx context.Context, alert LowStockAlert) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post("")
	if err != nil {
		return fmt.Errorf("post low stock alert: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	return nil
}
