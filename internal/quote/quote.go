package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradesim/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSymbolNotFound means the provider knows of no such ticker.
	ErrSymbolNotFound = errors.New("quote: symbol not found")
	// ErrUnavailable means the provider could not be reached or answered
	// with something other than a quote.
	ErrUnavailable = errors.New("quote: provider unavailable")
)

// Provider returns the current simulated market quote for a symbol.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (models.Quote, error)
}

// HTTPProvider fetches quotes from an IEX-style endpoint:
// {base}/stable/stock/{symbol}/quote?token={key}.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logrus.Logger
}

func NewHTTPProvider(baseURL, apiKey string, log *logrus.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type quoteResponse struct {
	CompanyName string      `json:"companyName"`
	Symbol      string      `json:"symbol"`
	LatestPrice json.Number `json:"latestPrice"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Quote{}, ErrSymbolNotFound
	}

	endpoint := fmt.Sprintf("%s/stable/stock/%s/quote?token=%s", p.baseURL, url.PathEscape(symbol), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Warnf("quote fetch for %s failed: %v", symbol, err)
		return models.Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.Quote{}, ErrSymbolNotFound
	case resp.StatusCode != http.StatusOK:
		p.log.Warnf("quote fetch for %s returned status %d", symbol, resp.StatusCode)
		return models.Quote{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return models.Quote{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	price, err := decimal.NewFromString(qr.LatestPrice.String())
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: bad price %q", ErrUnavailable, qr.LatestPrice.String())
	}

	return models.Quote{Name: qr.CompanyName, Symbol: symbol, Price: price}, nil
}
