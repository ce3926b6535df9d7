package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const msnQuotesPath = "/service/Finance/Quotes"

// MSNOptions parameterise the real-time quote fetcher.
type MSNOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// MSN looks up live quotes from the MSN Finance quote service, keyed by
// instrument id.
type MSN struct {
	opts    MSNOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewMSN constructs the secondary real-time fetcher.
func NewMSN(opts MSNOptions, logger zerolog.Logger) *MSN {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://assets.msn.com"
	}

	return &MSN{
		opts:    opts,
		logger:  logger.With().Str("component", "msn_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in warnings and logs.
func (m *MSN) Name() string { return "msn" }

// FetchRealtime issues a single request for every symbol.
func (m *MSN) FetchRealtime(ctx context.Context, symbols []string) (map[string]RealtimeQuote, error) {
	if len(symbols) == 0 {
		return map[string]RealtimeQuote{}, nil
	}
	if m.opts.APIKey == "" {
		return nil, errors.New("msn api key not configured")
	}

	query := url.Values{}
	query.Set("apikey", m.opts.APIKey)
	query.Set("ids", strings.Join(symbols, ","))
	query.Set("wrapodata", "false")
	endpoint := m.baseURL + msnQuotesPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("msn fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("msn read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("msn api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload []msnQuote
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("msn decode: %w", err)
	}

	out := make(map[string]RealtimeQuote, len(payload))
	for _, q := range payload {
		id := q.InstrumentID
		if id == "" {
			continue
		}
		out[id] = RealtimeQuote{
			Symbol:      q.Symbol,
			DisplayName: q.DisplayName,
			Currency:    q.Currency,
			RawPrice:    q.Price,
		}
	}

	m.logger.Debug().Int("requested", len(symbols)).Int("returned", len(out)).Msg("realtime quotes fetched")
	return out, nil
}

type msnQuote struct {
	InstrumentID string          `json:"instrumentId"`
	Symbol       string          `json:"symbol"`
	DisplayName  string          `json:"displayName"`
	Currency     string          `json:"currency"`
	Price        json.RawMessage `json:"price"`
}

var _ RealtimeFetcher = (*MSN)(nil)
