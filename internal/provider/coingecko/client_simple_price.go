package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"priceoracle/internal/provider"
)

// SimplePrice is one coin's price in the requested currency.
type SimplePrice struct {
	Price         float64
	LastUpdatedAt *time.Time
}

// GetSimplePrice calls /simple/price for a batch of coin ids.
// Coins missing the requested currency are left out of the result.
func (c *Client) GetSimplePrice(ctx context.Context, ids []string, vsCurrency string, opts ...ClientOption) (map[string]SimplePrice, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	vsCurrency = strings.ToLower(vsCurrency)
	query := maps.Clone(override.query)
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", vsCurrency)
	query.Set("include_last_updated_at", "true")

	url := fmt.Sprintf("%s/simple/price?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Accept", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:

	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized: %w: %d", provider.ErrUnexpectedStatus, res.StatusCode)

	case res.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: %w: %d", provider.ErrUnexpectedStatus, res.StatusCode)

	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, fmt.Errorf("%w: %d: %s", provider.ErrUnexpectedStatus, res.StatusCode, string(b))
	}

	// {
	//   "solana": {
	//     "usd": 142.37,
	//     "last_updated_at": 1711356300
	//   }
	// }
	var body map[string]map[string]json.Number
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding simple price response: %w", err)
	}

	var out = make(map[string]SimplePrice, len(body))
	for id, fields := range body {
		raw, ok := fields[vsCurrency]
		if !ok || raw == "" {
			continue
		}
		price, err := raw.Float64()
		if err != nil {
			return nil, fmt.Errorf("decoding %s price: %w", id, err)
		}

		sp := SimplePrice{Price: price}
		if ts, ok := fields["last_updated_at"]; ok && ts != "" {
			secs, err := ts.Int64()
			if err != nil {
				return nil, fmt.Errorf("decoding %s last_updated_at: %w", id, err)
			}
			if t := provider.ParseEpochMaybeMillis(secs, time.Time{}); !t.IsZero() {
				sp.LastUpdatedAt = &t
			}
		}
		out[id] = sp
	}
	return out, nil
}
