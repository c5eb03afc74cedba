package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

const DefaultSpotURL = "https://api.coinbase.com/v2/prices/ETH-USD/spot"

var ErrNoPrice = errors.New("spot price unavailable")

// Client reads a Coinbase style spot price: {"data":{"amount":"1234.56"}}.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultSpotURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (c *Client) SpotPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("price status %d", resp.StatusCode)
	}
	var decoded spotResponse
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode spot price: %w", err)
	}
	amount, err := decimal.NewFromString(decoded.Data.Amount)
	if err != nil || !amount.IsPositive() {
		return 0, ErrNoPrice
	}
	return amount.InexactFloat64(), nil
}
