package restkeyed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"marketsnap/internal/errs"
	"marketsnap/internal/httpx"
	"marketsnap/internal/logger"
	"marketsnap/internal/source"
	"marketsnap/internal/source/ratelimit"
)

// Where the API key travels. A per-upstream configuration choice, never
// a runtime decision.
const (
	CredentialInQuery  = "query"
	CredentialInHeader = "header"
)

const headerAPIKey = "X-Api-Key"

type Config struct {
	Name         string
	Endpoint     string
	APIKey       string
	CredentialIn string // "query" or "header"
	Symbols      []string
	// MaxConcurrency bounds the per-symbol worker pool; <=1 means
	// sequential requests in symbol order.
	MaxConcurrency int
	// RatePerSec, when positive, paces requests through a token bucket
	// of the given sustained rate; Burst is the bucket capacity. Takes
	// precedence over MinInterval.
	RatePerSec float64
	Burst      int
	// MinInterval paces consecutive requests when the upstream has a
	// per-minute quota.
	MinInterval time.Duration
}

// Adapter issues one authenticated GET per symbol. A failing symbol is
// skipped and logged; the batch fails only when every symbol fails.
type Adapter struct {
	cfg    Config
	client *httpx.Client
	gate   ratelimit.Gate
	log    *logger.Logger
}

// New validates the credential up front: a missing key is a
// misconfiguration, not a transient failure, so it aborts before any
// network call.
func New(cfg Config, client *httpx.Client, log *logger.Logger) (*Adapter, error) {
	if cfg.Name == "" {
		cfg.Name = "RESTKeyed"
	}
	if cfg.APIKey == "" {
		return nil, errs.New(errs.KindConfiguration, "restkeyed: missing API key")
	}
	if cfg.Endpoint == "" {
		return nil, errs.New(errs.KindConfiguration, "restkeyed: missing endpoint")
	}
	if len(cfg.Symbols) == 0 {
		return nil, errs.New(errs.KindConfiguration, "restkeyed: no symbols configured")
	}
	switch cfg.CredentialIn {
	case "":
		cfg.CredentialIn = CredentialInQuery
	case CredentialInQuery, CredentialInHeader:
	default:
		return nil, errs.Newf(errs.KindConfiguration, "restkeyed: unknown credential placement %q", cfg.CredentialIn)
	}

	var gate ratelimit.Gate = ratelimit.None{}
	if cfg.RatePerSec > 0 {
		gate = ratelimit.NewTokenBucket(cfg.RatePerSec, cfg.Burst)
	} else if cfg.MinInterval > 0 {
		gate = &ratelimit.MinInterval{Interval: cfg.MinInterval}
	}
	return &Adapter{cfg: cfg, client: client, gate: gate, log: log}, nil
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context) ([]source.Record, error) {
	results := make([]*source.Record, len(a.cfg.Symbols))
	errsBySym := make([]error, len(a.cfg.Symbols))

	fetchAt := func(i int) {
		sym := a.cfg.Symbols[i]
		rec, err := a.fetchOne(ctx, sym)
		if err != nil {
			errsBySym[i] = err
			a.log.Warnf("%s: %s skipped: %v", a.cfg.Name, sym, err)
			return
		}
		results[i] = &rec
	}

	if a.cfg.MaxConcurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.MaxConcurrency)
		for i := range a.cfg.Symbols {
			i := i
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fetchAt(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, errs.Wrap(errs.KindTransport, err, "restkeyed: batch canceled")
		}
	} else {
		for i := range a.cfg.Symbols {
			if err := ctx.Err(); err != nil {
				return nil, errs.Wrap(errs.KindTransport, err, "restkeyed: batch canceled")
			}
			fetchAt(i)
		}
	}

	out := make([]source.Record, 0, len(results))
	var lastErr error
	for i, r := range results {
		if r != nil {
			out = append(out, *r)
			continue
		}
		if errsBySym[i] != nil {
			lastErr = errsBySym[i]
		}
	}
	if len(out) == 0 {
		if lastErr != nil {
			return nil, errs.Wrap(errs.KindEmptyResult, lastErr, "restkeyed: all symbols failed")
		}
		return nil, errs.New(errs.KindEmptyResult, "restkeyed: no records")
	}
	return out, nil
}

func (a *Adapter) fetchOne(ctx context.Context, symbol string) (source.Record, error) {
	if err := a.gate.Wait(ctx); err != nil {
		return source.Record{}, err
	}

	u, err := url.Parse(a.cfg.Endpoint)
	if err != nil {
		return source.Record{}, errs.Wrap(errs.KindConfiguration, err, "restkeyed: bad endpoint")
	}
	q := u.Query()
	q.Set("symbol", symbol)
	if a.cfg.CredentialIn == CredentialInQuery {
		q.Set("apikey", a.cfg.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return source.Record{}, err
	}
	req.Header.Set("Accept", "application/json")
	if a.cfg.CredentialIn == CredentialInHeader {
		req.Header.Set(headerAPIKey, a.cfg.APIKey)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return source.Record{}, errs.Wrapf(errs.KindTransport, err, "GET %s", symbol)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := httpx.BodySnippet(resp.Body, 2<<10)
		return source.Record{}, errs.Newf(errs.KindTransport, "GET %s -> %d: %s", symbol, resp.StatusCode, snippet)
	}

	var w wireQuote
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return source.Record{}, errs.Wrapf(errs.KindParse, err, "decode %s", symbol)
	}
	return w.record(symbol)
}

// wireQuote is the upstream's flat per-symbol response. Change fields
// are optional; the normalizer derives them from previousClose.
type wireQuote struct {
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name"`
	Segment       string      `json:"segment"`
	Price         json.Number `json:"price"`
	PreviousClose json.Number `json:"previousClose"`
	Change        json.Number `json:"change"`
	PercentChange json.Number `json:"percentChange"`
}

func (w wireQuote) record(requested string) (source.Record, error) {
	sym := strings.TrimSpace(w.Symbol)
	if sym == "" {
		sym = requested
	}
	last, err := parseRequired(w.Price)
	if err != nil {
		return source.Record{}, errs.Wrapf(errs.KindParse, err, "price for %s", sym)
	}
	return source.Record{
		Symbol:    sym,
		Name:      strings.TrimSpace(w.Name),
		Segment:   strings.TrimSpace(w.Segment),
		LastPrice: last,
		PrevClose: parseOptional(w.PreviousClose),
		Change:    parseOptional(w.Change),
		PctChange: parseOptional(w.PercentChange),
	}, nil
}

func parseRequired(n json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.Zero, errs.New(errs.KindParse, "missing value")
	}
	return decimal.NewFromString(s)
}

func parseOptional(n json.Number) decimal.NullDecimal {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
