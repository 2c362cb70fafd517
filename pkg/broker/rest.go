package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	sideBuy  = 1
	sideSell = -1

	orderTypeMarket = 2
)

// RESTGateway is the live broker client. Requests are rate limited to
// stay under the broker's per-second cap.
type RESTGateway struct {
	baseURL string
	dataURL string
	auth    string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewRESTGateway builds a live gateway. The auth header is
// "<clientID>:<accessToken>" as the broker API expects.
func NewRESTGateway(baseURL, dataURL, clientID, accessToken string, log zerolog.Logger) *RESTGateway {
	return &RESTGateway{
		baseURL: baseURL,
		dataURL: dataURL,
		auth:    clientID + ":" + accessToken,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(8), 8),
		log:     log.With().Str("component", "broker").Logger(),
	}
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         int    `json:"qty"`
	Type        int    `json:"type"`
	Side        int    `json:"side"`
	ProductType string `json:"productType"`
	Validity    string `json:"validity"`
	OfflineFlag bool   `json:"offlineOrder"`
}

type orderResponse struct {
	Status  string `json:"s"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (g *RESTGateway) PlaceSell(ctx context.Context, symbol string, qty int) (OrderResult, error) {
	return g.placeMarket(ctx, symbol, qty, sideSell)
}

func (g *RESTGateway) PlaceExit(ctx context.Context, symbol string, qty int) (OrderResult, error) {
	return g.placeMarket(ctx, symbol, qty, sideBuy)
}

func (g *RESTGateway) placeMarket(ctx context.Context, symbol string, qty, side int) (OrderResult, error) {
	req := orderRequest{
		Symbol:      symbol,
		Qty:         qty,
		Type:        orderTypeMarket,
		Side:        side,
		ProductType: "INTRADAY",
		Validity:    "DAY",
	}
	var resp orderResponse
	if err := g.do(ctx, http.MethodPost, g.baseURL+"/orders/sync", req, &resp); err != nil {
		return OrderResult{}, err
	}
	if resp.Status != "ok" {
		return OrderResult{}, &RejectionError{Code: resp.Code, Message: resp.Message}
	}
	fill, err := g.Quote(ctx, symbol)
	if err != nil {
		g.log.Warn().Err(err).Str("symbol", symbol).Msg("fill price lookup failed, using zero")
		fill = 0
	}
	return OrderResult{OrderID: resp.ID, FillPrice: fill}, nil
}

type fundsResponse struct {
	Status string `json:"s"`
	Funds  []struct {
		Title  string  `json:"title"`
		Amount float64 `json:"equityAmount"`
	} `json:"fund_limit"`
}

func (g *RESTGateway) Margins(ctx context.Context) (Margin, error) {
	var resp fundsResponse
	if err := g.do(ctx, http.MethodGet, g.baseURL+"/funds", nil, &resp); err != nil {
		return Margin{}, err
	}
	if resp.Status != "ok" {
		return Margin{}, fmt.Errorf("funds request failed: %s", resp.Status)
	}
	var m Margin
	for _, f := range resp.Funds {
		switch f.Title {
		case "Available Balance":
			m.Available = f.Amount
		case "Utilized Amount":
			m.Used = f.Amount
		}
	}
	return m, nil
}

type quoteResponse struct {
	Status string `json:"s"`
	Data   []struct {
		Value struct {
			LastPrice float64 `json:"lp"`
		} `json:"v"`
	} `json:"d"`
}

func (g *RESTGateway) Quote(ctx context.Context, symbol string) (float64, error) {
	var resp quoteResponse
	url := fmt.Sprintf("%s/quotes?symbols=%s", g.dataURL, symbol)
	if err := g.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "ok" || len(resp.Data) == 0 {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return resp.Data[0].Value.LastPrice, nil
}

func (g *RESTGateway) do(ctx context.Context, method, url string, body, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", g.auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("broker request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("broker returned %d: %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
