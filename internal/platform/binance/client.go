// Package binance provides the thin market-data collaborators the tracker
// consumes: a REST ticker client and a miniTicker WebSocket stream. No order
// execution happens here; the tracker only paper-trades against live prices.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papertrade/dogebot/internal/domain"
)

// Client is the REST client for Binance public market data.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Binance REST client. baseURL is the API root, e.g.
// "https://api.binance.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// tickerPrice is the /api/v3/ticker/price response shape.
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// CurrentPrice returns the latest trade price for a symbol. Transport
// failures wrap domain.ErrNetwork so callers can treat them as transient.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?%s",
		c.baseURL, url.Values{"symbol": {symbol}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("binance: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("binance: ticker %s: %w: %v", symbol, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, fmt.Errorf("binance: read ticker %s: %w: %v", symbol, domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("binance: ticker %s: unexpected status %d: %s", symbol, resp.StatusCode, body)
	}

	var tp tickerPrice
	if err := json.Unmarshal(body, &tp); err != nil {
		return 0, fmt.Errorf("binance: decode ticker %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(tp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parse price %q for %s: %w", tp.Price, symbol, err)
	}
	return price, nil
}
