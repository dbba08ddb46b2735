package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the exchangerate-api v6 endpoint.
const DefaultBaseURL = "https://v6.exchangerate-api.com/v6"

// HTTPRateSource fetches pair rates from exchangerate-api.
type HTTPRateSource struct {
	baseURL string
	apiKey  string
	client  *retryablehttp.Client
}

// HTTPOptions tunes the retrying client. Zero values use defaults.
type HTTPOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

// NewHTTPRateSource builds a source for baseURL/apiKey.
func NewHTTPRateSource(baseURL, apiKey string, opts HTTPOptions) *HTTPRateSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	if opts.RetryMax > 0 {
		client.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	client.HTTPClient.Timeout = 10 * time.Second
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Logger != nil {
		client.Logger = opts.Logger
	} else {
		client.Logger = nil
	}
	return &HTTPRateSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type pairResponse struct {
	Result         string          `json:"result"`
	ErrorType      string          `json:"error-type"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// Rate calls GET {base}/{key}/pair/{from}/{to}.
func (s *HTTPRateSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/%s/pair/%s/%s", s.baseURL, s.apiKey, strings.ToUpper(from), strings.ToUpper(to))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrRateUnavailable, PairKey(from, to), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %s: status %d", ErrRateUnavailable, PairKey(from, to), resp.StatusCode)
	}
	var body pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: decode: %v", ErrRateUnavailable, PairKey(from, to), err)
	}
	if body.Result != "success" {
		return decimal.Zero, fmt.Errorf("%w: %s: %s", ErrRateUnavailable, PairKey(from, to), body.ErrorType)
	}
	if !body.ConversionRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive rate", ErrRateUnavailable, PairKey(from, to))
	}
	return body.ConversionRate, nil
}
