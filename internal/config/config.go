package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"marketsnap/internal/errs"
)

// Source names selectable via SOURCE.
const (
	SourceRESTKeyed     = "restkeyed"
	SourceSessionCookie = "sessioncookie"
	SourceBulkFile      = "bulkfile"
)

// Config is the full pipeline configuration. It is parsed once in main
// and handed to the pipeline as a value; components never read the
// environment themselves.
type Config struct {
	Source            string `env:"SOURCE" envDefault:"restkeyed"`
	SnapshotPath      string `env:"SNAPSHOT_PATH" envDefault:"marketdata.json"`
	SnapshotFormat    string `env:"SNAPSHOT_FORMAT" envDefault:"quotes"`
	AllowFallback     bool   `env:"ALLOW_FALLBACK" envDefault:"false"`
	SimulateHoldings  bool   `env:"SIMULATE_HOLDINGS" envDefault:"false"`
	RequestTimeoutSec int    `env:"REQUEST_TIMEOUT_SEC" envDefault:"15"`
	RetryAttempts     int    `env:"RETRY_ATTEMPTS" envDefault:"3"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`

	RESTKeyed RESTKeyed `envPrefix:"RESTKEYED_"`
	Session   Session   `envPrefix:"SESSION_"`
	Bulk      Bulk      `envPrefix:"BULK_"`
}

// RESTKeyed configures the per-symbol authenticated quotes API.
type RESTKeyed struct {
	// APIKey is required when this source is selected; its absence is a
	// fatal misconfiguration, never a degrade-to-fallback condition.
	APIKey         string   `env:"API_KEY"`
	Endpoint       string   `env:"ENDPOINT"`
	Symbols        []string `env:"SYMBOLS" envSeparator:"," envDefault:"RELIANCE,TCS,HDFCBANK,INFY,ICICIBANK"`
	CredentialIn   string   `env:"CREDENTIAL_IN" envDefault:"query"`
	MaxConcurrency int      `env:"MAX_CONCURRENCY" envDefault:"1"`
	// RatePerSec selects a token-bucket pacer when positive; otherwise
	// MinIntervalMS selects a fixed-gap pacer.
	RatePerSec    float64 `env:"RATE_PER_SEC" envDefault:"0"`
	Burst         int     `env:"BURST" envDefault:"1"`
	MinIntervalMS int     `env:"MIN_INTERVAL_MS" envDefault:"0"`
}

// Session configures the cookie-gated two-phase source.
type Session struct {
	LandingURL      string   `env:"LANDING_URL"`
	DataURL         string   `env:"DATA_URL"`
	Referer         string   `env:"REFERER"`
	CookieAllowlist []string `env:"COOKIE_ALLOWLIST" envSeparator:"," envDefault:"nsit,nseappid,ak_bmsc,bm_sv"`
}

// Bulk configures the daily bulk-file source and its trading calendar.
type Bulk struct {
	BaseURL        string `env:"BASE_URL"`
	Series         string `env:"SERIES" envDefault:"EQ"`
	UTCOffsetMin   int    `env:"UTC_OFFSET_MIN" envDefault:"330"`
	CloseHour      int    `env:"CLOSE_HOUR" envDefault:"15"`
	CloseMinute    int    `env:"CLOSE_MINUTE" envDefault:"30"`
	CloseMarginMin int    `env:"CLOSE_MARGIN_MIN" envDefault:"90"`
}

// Load reads the configuration from the environment, with an optional
// .env file for local runs.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, errs.Wrap(errs.KindConfiguration, err, "config: parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RunBudget bounds one full run. The keyed-REST source issues one call
// per symbol, so the ceiling scales with the symbol count, per-call
// timeout, retry attempts and request pacing; a flat whole-run cap
// would cancel healthy symbols mid-batch once the list grows. The other
// sources make a fixed small number of calls.
func (c Config) RunBudget() time.Duration {
	perCall := time.Duration(c.RequestTimeoutSec) * time.Second
	if c.RetryAttempts > 1 {
		perCall *= time.Duration(c.RetryAttempts)
	}

	calls := 2 // cookie acquisition + data, or download + headroom
	var pacing time.Duration
	if c.Source == SourceRESTKeyed {
		calls = len(c.RESTKeyed.Symbols)
		if calls < 1 {
			calls = 1
		}
		pacing = time.Duration(c.RESTKeyed.MinIntervalMS) * time.Millisecond
		if c.RESTKeyed.RatePerSec > 0 {
			perToken := time.Duration(float64(time.Second) / c.RESTKeyed.RatePerSec)
			if perToken > pacing {
				pacing = perToken
			}
		}
	}

	return time.Duration(calls)*(perCall+pacing) + 5*time.Second
}

// Validate checks cross-field requirements for the selected source.
// Adapter constructors re-check their own fields; this catches the
// obvious misconfigurations before anything is built.
func (c Config) Validate() error {
	switch c.Source {
	case SourceRESTKeyed, SourceSessionCookie, SourceBulkFile:
	default:
		return errs.Newf(errs.KindConfiguration, "config: unknown source %q", c.Source)
	}
	if c.RequestTimeoutSec <= 0 {
		return errs.New(errs.KindConfiguration, "config: request timeout must be positive")
	}
	return nil
}
