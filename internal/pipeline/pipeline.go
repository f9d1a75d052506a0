package pipeline

import (
	"context"
	"math/rand"
	"time"

	"marketsnap/internal/calendar"
	"marketsnap/internal/config"
	"marketsnap/internal/errs"
	"marketsnap/internal/fallback"
	"marketsnap/internal/httpx"
	"marketsnap/internal/logger"
	"marketsnap/internal/normalize"
	"marketsnap/internal/portfolio"
	"marketsnap/internal/quote"
	"marketsnap/internal/snapshot"
	"marketsnap/internal/source"
	"marketsnap/internal/source/bulkfile"
	"marketsnap/internal/source/restkeyed"
	"marketsnap/internal/source/sessioncookie"
)

// Pipeline is one run of the acquisition flow: fetch raw records from
// the configured source, normalize them, fall back to synthetic quotes
// when allowed, and write the snapshot. It holds no state across runs.
type Pipeline struct {
	cfg      config.Config
	log      *logger.Logger
	src      source.Source
	writer   *snapshot.Writer
	fall     *fallback.Generator
	holdings portfolio.Lookup
}

// New builds a pipeline from explicit configuration. All configuration
// errors surface here, before any network call.
func New(cfg config.Config, log *logger.Logger) (*Pipeline, error) {
	client := httpx.New(time.Duration(cfg.RequestTimeoutSec) * time.Second)
	if cfg.RetryAttempts > 0 {
		client.Attempts = cfg.RetryAttempts
	}

	src, err := buildSource(cfg, client, log)
	if err != nil {
		return nil, err
	}

	writer, err := snapshot.NewWriter(cfg.SnapshotPath, cfg.SnapshotFormat)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var holdings portfolio.Lookup = portfolio.Null{}
	if cfg.SimulateHoldings {
		holdings = portfolio.NewSimulated(rng, 100)
	}

	p := &Pipeline{
		cfg:      cfg,
		log:      log,
		src:      src,
		writer:   writer,
		holdings: holdings,
	}
	if cfg.AllowFallback {
		p.fall = fallback.New(rng)
	}
	return p, nil
}

func buildSource(cfg config.Config, client *httpx.Client, log *logger.Logger) (source.Source, error) {
	switch cfg.Source {
	case config.SourceRESTKeyed:
		return restkeyed.New(restkeyed.Config{
			Endpoint:       cfg.RESTKeyed.Endpoint,
			APIKey:         cfg.RESTKeyed.APIKey,
			CredentialIn:   cfg.RESTKeyed.CredentialIn,
			Symbols:        cfg.RESTKeyed.Symbols,
			MaxConcurrency: cfg.RESTKeyed.MaxConcurrency,
			RatePerSec:     cfg.RESTKeyed.RatePerSec,
			Burst:          cfg.RESTKeyed.Burst,
			MinInterval:    time.Duration(cfg.RESTKeyed.MinIntervalMS) * time.Millisecond,
		}, client, log)

	case config.SourceSessionCookie:
		return sessioncookie.New(sessioncookie.Config{
			LandingURL:      cfg.Session.LandingURL,
			DataURL:         cfg.Session.DataURL,
			Referer:         cfg.Session.Referer,
			CookieAllowlist: cfg.Session.CookieAllowlist,
		}, client, log)

	case config.SourceBulkFile:
		resolver := calendar.NewResolver(
			cfg.Bulk.UTCOffsetMin,
			cfg.Bulk.CloseHour, cfg.Bulk.CloseMinute,
			time.Duration(cfg.Bulk.CloseMarginMin)*time.Minute,
		)
		session := resolver.LastSession(time.Now())
		log.Infof("resolved trading session: %s", session.Format("2006-01-02"))
		return bulkfile.New(bulkfile.Config{
			BaseURL: cfg.Bulk.BaseURL,
			Series:  cfg.Bulk.Series,
			Session: session,
		}, client, log)

	default:
		return nil, errs.Newf(errs.KindConfiguration, "pipeline: unknown source %q", cfg.Source)
	}
}

// Run executes one fetch-normalize-write cycle. A nil return means a
// snapshot was written (real or, where permitted, simulated).
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Infof("fetching from %s", p.src.Name())

	snap, err := p.acquire(ctx)
	if err != nil {
		return err
	}

	for i := range snap {
		snap[i].HeldUnits = p.holdings.Units(snap[i].Symbol)
	}

	if err := p.writer.Write(snap); err != nil {
		p.log.Errorf("snapshot write failed: %v", err)
		return err
	}
	p.log.Infof("snapshot written: %d quotes -> %s", len(snap), p.writer.Path)
	return nil
}

// acquire fetches and normalizes, applying the degradation policy when
// the source produced nothing usable.
func (p *Pipeline) acquire(ctx context.Context) (quote.Snapshot, error) {
	records, err := p.src.Fetch(ctx)
	if err != nil {
		if errs.IsKind(err, errs.KindConfiguration) {
			// Misconfiguration is never degraded around.
			return nil, err
		}
		if p.fall == nil {
			p.log.Errorf("%s failed: %v", p.src.Name(), err)
			return nil, err
		}
		p.log.Warnf("%s failed (%s), falling back to simulated quotes: %v",
			p.src.Name(), errs.KindOf(err), err)
		return p.fall.Snapshot(), nil
	}

	snap := normalize.Snapshot(records)
	if len(snap) == 0 {
		err := errs.Newf(errs.KindEmptyResult, "pipeline: %s produced no usable records", p.src.Name())
		if p.fall == nil {
			return nil, err
		}
		p.log.Warnf("%v; falling back to simulated quotes", err)
		return p.fall.Snapshot(), nil
	}
	p.log.Infof("%s: %d quotes normalized", p.src.Name(), len(snap))
	return snap, nil
}
