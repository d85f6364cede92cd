package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"priceoracle/internal/httpx"
	"priceoracle/internal/provider"
)

const (
	DefaultEndpoint = "https://api.jup.ag/price/v2"
	DefaultTimeout  = 3 * time.Second
	// DefaultMaxIDsPerRequest is the upstream's per-call id limit.
	DefaultMaxIDsPerRequest = 100
)

// Config controls the Jupiter provider behavior.
type Config struct {
	Name    string
	URL     string
	APIKey  string            // optional; sent as x-api-key
	Headers map[string]string // optional extra headers
	Timeout time.Duration     // bounds the whole call, all batches included
	// MaxIDsPerRequest splits large address lists into several requests.
	MaxIDsPerRequest int
	// MaxConcurrency limits concurrent batch requests. Defaults to 2.
	MaxConcurrency int
}

// Provider quotes Solana mints by address.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Jupiter"
	}
	if cfg.URL == "" {
		cfg.URL = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxIDsPerRequest <= 0 {
		cfg.MaxIDsPerRequest = DefaultMaxIDsPerRequest
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// FetchByAddresses returns the USD price per mint address. If any batch
// fails the whole result is dropped.
func (p *Provider) FetchByAddresses(ctx context.Context, addrs []string) (map[string]float64, error) {
	addrs = provider.Unique(addrs)
	if len(addrs) == 0 {
		return map[string]float64{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	var mu sync.Mutex
	out := make(map[string]float64, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)
	for _, batch := range chunkStrings(addrs, p.cfg.MaxIDsPerRequest) {
		g.Go(func() error {
			prices, err := p.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			for k, v := range prices {
				out[k] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return map[string]float64{}, err
	}
	return out, nil
}

func (p *Provider) fetchBatch(ctx context.Context, addrs []string) (map[string]float64, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(addrs, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("x-api-key", p.cfg.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("GET %s: %w: %d: %s", u.Path, provider.ErrUnexpectedStatus, resp.StatusCode, string(b))
	}

	var body apiResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("decode: missing data field")
	}

	out := make(map[string]float64, len(body.Data))
	for addr, e := range body.Data {
		// Unknown mints come back as null.
		if e == nil || e.Price == "" {
			continue
		}
		v, err := e.Price.Float64()
		if err != nil || !provider.ValidPrice(v) {
			continue
		}
		out[addr] = v
	}
	return out, nil
}

// Response model of /price/v2.
//
//	{
//	  "data": {
//	    "So11111111111111111111111111111111111111112": {
//	      "id": "So11111111111111111111111111111111111111112",
//	      "type": "derivedPrice",
//	      "price": "142.37"
//	    }
//	  },
//	  "timeTaken": 0.0031
//	}
type apiResponse struct {
	Data      map[string]*item `json:"data"`
	TimeTaken float64          `json:"timeTaken"`
}

type item struct {
	ID    string      `json:"id"`
	Type  string      `json:"type"`
	Price json.Number `json:"price"`
}

func chunkStrings(in []string, size int) [][]string {
	if size <= 0 || len(in) == 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for i := 0; i < len(in); i += size {
		j := i + size
		if j > len(in) {
			j = len(in)
		}
		out = append(out, in[i:j])
	}
	return out
}
