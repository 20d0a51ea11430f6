package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"signal_engine/internal/models"
)

// HTTPClient talks to the regime / market-data / indicator / position
// services over plain JSON endpoints. One instance serves all four contracts.
type HTTPClient struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrapf(err, "new request %s", path)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: status %d: %s", path, resp.StatusCode, truncate(body, 200))
	}
	if err := sonic.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

type regimeResponse struct {
	Regime        string             `json:"regime"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

func (c *HTTPClient) CurrentRegime(ctx context.Context) (models.RegimeSnapshot, error) {
	var resp regimeResponse
	if err := c.get(ctx, "/regime", nil, &resp); err != nil {
		return models.RegimeSnapshot{}, err
	}
	probs := make(map[models.Regime]float64, len(resp.Probabilities))
	for label, p := range resp.Probabilities {
		probs[models.Regime(label)] = p
	}
	return models.RegimeSnapshot{
		Regime:        models.Regime(resp.Regime),
		Confidence:    resp.Confidence,
		Probabilities: probs,
		At:            time.Now().UTC(),
	}, nil
}

type candlesResponse struct {
	Candles []struct {
		Ts     int64   `json:"ts"` // unix millis
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"candles"`
}

func (c *HTTPClient) History(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	var resp candlesResponse
	if err := c.get(ctx, "/candles", q, &resp); err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		out = append(out, Candle{
			Time:   time.UnixMilli(raw.Ts).UTC(),
			Open:   raw.Open,
			High:   raw.High,
			Low:    raw.Low,
			Close:  raw.Close,
			Volume: raw.Volume,
		})
	}
	return out, nil
}

func (c *HTTPClient) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var resp struct {
		Price float64 `json:"price"`
	}
	if err := c.get(ctx, "/price", q, &resp); err != nil {
		return 0, err
	}
	if resp.Price <= 0 {
		return 0, errors.Errorf("price for %s: non-positive %v", symbol, resp.Price)
	}
	return resp.Price, nil
}

func (c *HTTPClient) Indicators(ctx context.Context, symbol string, names []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("names", strings.Join(names, ","))

	var resp struct {
		Indicators map[string]float64 `json:"indicators"`
	}
	if err := c.get(ctx, "/indicators", q, &resp); err != nil {
		return nil, err
	}
	return resp.Indicators, nil
}

type positionsResponse struct {
	Positions []struct {
		ID            string   `json:"id"`
		Symbol        string   `json:"symbol"`
		Direction     string   `json:"direction"`
		Entry         float64  `json:"entry"`
		CurrentPrice  float64  `json:"current_price"`
		Size          float64  `json:"size"`
		UnrealizedPnL float64  `json:"unrealized_pnl"`
		PnLPercent    float64  `json:"pnl_percent"`
		OpenedAt      string   `json:"opened_at"`
		StopLoss      *float64 `json:"stop_loss,omitempty"`
		TakeProfit    *float64 `json:"take_profit,omitempty"`
		Strategy      string   `json:"strategy"`
	} `json:"positions"`
}

func (c *HTTPClient) OpenPositions(ctx context.Context) ([]models.Position, error) {
	var resp positionsResponse
	if err := c.get(ctx, "/positions", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(resp.Positions))
	for _, raw := range resp.Positions {
		openedAt, err := time.Parse(time.RFC3339Nano, raw.OpenedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "position %s opened_at", raw.ID)
		}
		out = append(out, models.Position{
			ID:            raw.ID,
			Symbol:        raw.Symbol,
			Direction:     models.Direction(raw.Direction),
			Entry:         raw.Entry,
			CurrentPrice:  raw.CurrentPrice,
			Size:          raw.Size,
			UnrealizedPnL: raw.UnrealizedPnL,
			PnLPercent:    raw.PnLPercent,
			OpenedAt:      openedAt,
			StopLoss:      raw.StopLoss,
			TakeProfit:    raw.TakeProfit,
			Strategy:      raw.Strategy,
		})
	}
	return out, nil
}

func (c *HTTPClient) AvailableCapital(ctx context.Context) (float64, error) {
	var resp struct {
		Capital float64 `json:"capital"`
	}
	if err := c.get(ctx, "/capital", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Capital, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
