package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/zakatwise/zakat-engine/internal/app/core"
	"github.com/zakatwise/zakat-engine/internal/app/domain/nisab"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Fetcher retrieves per-gram prices for the two reference metals.
type Fetcher interface {
	Fetch(ctx context.Context, currency string) ([]nisab.MetalPrice, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, currency string) ([]nisab.MetalPrice, error)

func (f FetcherFunc) Fetch(ctx context.Context, currency string) ([]nisab.MetalPrice, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", core.ErrExternalSource)
	}
	return f(ctx, currency)
}

const fetchTimeout = 5 * time.Second

// HTTPFetcher pulls metal prices from a JSON endpoint. The endpoint is
// expected to answer GET <endpoint>?currency=XXX with a body containing
// per-gram "gold" and "silver" price fields.
type HTTPFetcher struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	goldPath   string
	silverPath string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewHTTPFetcher creates a price fetcher. Outbound calls are rate limited to
// one per second with a small burst so a busy sweep never hammers the
// provider.
func NewHTTPFetcher(client *http.Client, endpoint, apiKey string, log *logger.Logger) (*HTTPFetcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, core.RequiredError("endpoint")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, core.NewValidationError("endpoint", err.Error())
	}
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if log == nil {
		log = logger.NewDefault("pricing-fetcher")
	}
	return &HTTPFetcher{
		client:     client,
		endpoint:   endpoint,
		apiKey:     apiKey,
		goldPath:   "gold_per_gram",
		silverPath: "silver_per_gram",
		limiter:    rate.NewLimiter(rate.Every(time.Second), 3),
		log:        log,
	}, nil
}

// WithPricePaths overrides the gjson paths used to extract the per-gram
// prices from the provider response.
func (f *HTTPFetcher) WithPricePaths(gold, silver string) *HTTPFetcher {
	if gold != "" {
		f.goldPath = gold
	}
	if silver != "" {
		f.silverPath = silver
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, currency string) ([]nisab.MetalPrice, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", core.ErrExternalSource, err)
	}

	reqURL := f.endpoint
	if strings.Contains(reqURL, "?") {
		reqURL += "&currency=" + url.QueryEscape(currency)
	} else {
		reqURL += "?currency=" + url.QueryEscape(currency)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", core.ErrExternalSource, err)
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", core.ErrExternalSource, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrExternalSource, err)
	}

	gold := gjson.GetBytes(body, f.goldPath)
	silver := gjson.GetBytes(body, f.silverPath)
	if !gold.Exists() || !silver.Exists() {
		return nil, fmt.Errorf("%w: response missing price fields", core.ErrExternalSource)
	}

	goldPrice, err := decimal.NewFromString(gold.String())
	if err != nil {
		return nil, fmt.Errorf("%w: gold price %q: %v", core.ErrExternalSource, gold.String(), err)
	}
	silverPrice, err := decimal.NewFromString(silver.String())
	if err != nil {
		return nil, fmt.Errorf("%w: silver price %q: %v", core.ErrExternalSource, silver.String(), err)
	}

	now := time.Now().UTC()
	return []nisab.MetalPrice{
		{Metal: nisab.MetalGold, PricePerGram: goldPrice, Currency: currency, FetchedAt: now},
		{Metal: nisab.MetalSilver, PricePerGram: silverPrice, Currency: currency, FetchedAt: now},
	}, nil
}
