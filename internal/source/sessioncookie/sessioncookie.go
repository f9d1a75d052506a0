package sessioncookie

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"marketsnap/internal/errs"
	"marketsnap/internal/httpx"
	"marketsnap/internal/logger"
	"marketsnap/internal/source"
)

// The upstream gates its data endpoint behind a short-lived session
// established by visiting the landing page first, so every fetch is a
// two-phase flow: acquire cookies, then replay them on the data GET.

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type Config struct {
	Name       string
	LandingURL string
	DataURL    string
	// Referer must point at a page that legitimately triggers this data
	// load, or the upstream rejects the request.
	Referer   string
	UserAgent string
	// CookieAllowlist names the session-identifying cookies worth
	// replaying. Everything else Set-Cookie delivers is tracking noise.
	CookieAllowlist []string
}

type Adapter struct {
	cfg    Config
	client *httpx.Client
	log    *logger.Logger
}

func New(cfg Config, client *httpx.Client, log *logger.Logger) (*Adapter, error) {
	if cfg.Name == "" {
		cfg.Name = "SessionCookie"
	}
	if cfg.LandingURL == "" || cfg.DataURL == "" {
		return nil, errs.New(errs.KindConfiguration, "sessioncookie: landing and data URLs are required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if len(cfg.CookieAllowlist) == 0 {
		return nil, errs.New(errs.KindConfiguration, "sessioncookie: cookie allow-list is empty")
	}
	return &Adapter{cfg: cfg, client: client, log: log}, nil
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context) ([]source.Record, error) {
	cookies, err := a.acquireCookies(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Debugf("%s: session established (%d cookies)", a.cfg.Name, strings.Count(cookies, "="))
	return a.fetchData(ctx, cookies)
}

// acquireCookies performs phase 1: GET the landing page with a
// browser-identifying header set and keep only allow-listed cookies.
func (a *Adapter) acquireCookies(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.LandingURL, http.NoBody)
	if err != nil {
		return "", err
	}
	a.browserHeaders(req)

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return "", errs.Wrap(errs.KindTransport, err, "sessioncookie: landing request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := httpx.BodySnippet(resp.Body, 1<<10)
		return "", errs.Newf(errs.KindTransport, "sessioncookie: landing -> %d: %s", resp.StatusCode, snippet)
	}

	var kept []string
	for _, c := range resp.Cookies() {
		if a.allowed(c.Name) && c.Value != "" {
			kept = append(kept, c.Name+"="+c.Value)
		}
	}
	if len(kept) == 0 {
		return "", errs.New(errs.KindTransport, "sessioncookie: landing yielded no usable cookies")
	}
	return strings.Join(kept, "; "), nil
}

// fetchData performs phase 2: replay the retained cookies plus a
// consistent header set against the data endpoint.
func (a *Adapter) fetchData(ctx context.Context, cookies string) ([]source.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.DataURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	a.browserHeaders(req)
	req.Header.Set("Cookie", cookies)
	req.Header.Set("Accept", "application/json")
	if a.cfg.Referer != "" {
		req.Header.Set("Referer", a.cfg.Referer)
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "sessioncookie: data request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := httpx.BodySnippet(resp.Body, 2<<10)
		return nil, errs.Newf(errs.KindTransport, "sessioncookie: data -> %d: %s", resp.StatusCode, snippet)
	}

	var env envelope
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "sessioncookie: decode envelope")
	}

	out := make([]source.Record, 0, len(env.Data))
	for _, e := range env.Data {
		rec, ok := e.record()
		if !ok {
			// Malformed entry, not a failure: entries without any
			// identifier are discarded.
			a.log.Debugf("%s: discarding record without identifier", a.cfg.Name)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *Adapter) browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	}
}

func (a *Adapter) allowed(name string) bool {
	for _, n := range a.cfg.CookieAllowlist {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// envelope wraps the upstream record set.
type envelope struct {
	Data []entry `json:"data"`
}

type entry struct {
	Symbol        string     `json:"symbol"`
	Identifier    string     `json:"identifier"`
	Series        string     `json:"series"`
	LastPrice     flexNumber `json:"lastPrice"`
	PreviousClose flexNumber `json:"previousClose"`
	Change        flexNumber `json:"change"`
	PChange       flexNumber `json:"pChange"`
	Meta          struct {
		CompanyName string `json:"companyName"`
	} `json:"meta"`
}

// flexNumber accepts both bare numbers and quoted strings such as
// "1,234.50", which this upstream is known to mix freely.
type flexNumber string

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	*f = flexNumber(strings.Trim(string(b), `"`))
	return nil
}

func (e entry) record() (source.Record, bool) {
	sym := strings.TrimSpace(e.Symbol)
	if sym == "" {
		sym = strings.TrimSpace(e.Identifier)
	}
	if sym == "" {
		return source.Record{}, false
	}
	last, ok := parseLenient(e.LastPrice)
	if !ok {
		return source.Record{}, false
	}
	return source.Record{
		Symbol:    sym,
		Name:      strings.TrimSpace(e.Meta.CompanyName),
		Segment:   strings.TrimSpace(e.Series),
		LastPrice: last,
		PrevClose: parseNullable(e.PreviousClose),
		Change:    parseNullable(e.Change),
		PctChange: parseNullable(e.PChange),
	}, true
}

func parseLenient(n flexNumber) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(string(n)), ",", "")
	if s == "" || s == "null" || s == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseNullable(n flexNumber) decimal.NullDecimal {
	d, ok := parseLenient(n)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
