package bulkfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/shopspring/decimal"

	"marketsnap/internal/errs"
	"marketsnap/internal/httpx"
	"marketsnap/internal/logger"
	"marketsnap/internal/source"
)

type Config struct {
	Name string
	// BaseURL is the directory the daily files are published under.
	BaseURL string
	// Series filters rows to the equity class of interest.
	Series string
	// Session is the trading date the download targets.
	Session time.Time
}

// Adapter downloads the exchange's daily closing-price file for a
// resolved session and streams it through gzip and a CSV reader, one
// row at a time. The file holds the full exchange listing, so nothing
// here buffers the decompressed payload.
type Adapter struct {
	cfg    Config
	client *httpx.Client
	log    *logger.Logger
}

func New(cfg Config, client *httpx.Client, log *logger.Logger) (*Adapter, error) {
	if cfg.Name == "" {
		cfg.Name = "BulkFile"
	}
	if cfg.BaseURL == "" {
		return nil, errs.New(errs.KindConfiguration, "bulkfile: missing base URL")
	}
	if cfg.Series == "" {
		cfg.Series = "EQ"
	}
	if cfg.Session.IsZero() {
		return nil, errs.New(errs.KindConfiguration, "bulkfile: missing session date")
	}
	return &Adapter{cfg: cfg, client: client, log: log}, nil
}

func (a *Adapter) Name() string { return a.cfg.Name }

// FileName builds the fixed filename pattern for a session date:
// zero-padded day, uppercase three-letter month, four-digit year.
func FileName(session time.Time) string {
	return fmt.Sprintf("cm%02d%s%dbhav.csv.gz",
		session.Day(),
		strings.ToUpper(session.Format("Jan")),
		session.Year())
}

func (a *Adapter) URL() string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + FileName(a.cfg.Session)
}

func (a *Adapter) Fetch(ctx context.Context) ([]source.Record, error) {
	u := a.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransport, err, "GET %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Most commonly the file for that date is not published yet.
		snippet := httpx.BodySnippet(resp.Body, 1<<10)
		return nil, errs.Newf(errs.KindTransport, "GET %s -> %d: %s", u, resp.StatusCode, snippet)
	}

	recs, err := a.parse(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		// A clean parse with zero qualifying rows signals a schema or
		// filter mismatch, not a legitimately empty session.
		return nil, errs.Newf(errs.KindEmptyResult, "bulkfile: no %s rows in %s", a.cfg.Series, FileName(a.cfg.Session))
	}
	a.log.Infof("%s: %d %s rows from %s", a.cfg.Name, len(recs), a.cfg.Series, FileName(a.cfg.Session))
	return recs, nil
}

// Required columns of the daily file. Column positions are taken from
// the header row rather than hard-coded.
const (
	colSymbol    = "SYMBOL"
	colSeries    = "SERIES"
	colClose     = "CLOSE"
	colPrevClose = "PREVCLOSE"
)

func (a *Adapter) parse(body io.Reader) ([]source.Record, error) {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "bulkfile: gzip")
	}
	defer gz.Close()

	cr := csv.NewReader(gz)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "bulkfile: header row")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colSymbol, colSeries, colClose, colPrevClose} {
		if _, ok := cols[required]; !ok {
			return nil, errs.Newf(errs.KindParse, "bulkfile: header missing column %s", required)
		}
	}

	var out []source.Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Bulk files are expected to be well-formed; a bad row means
			// the whole file is not trusted.
			return nil, errs.Wrap(errs.KindParse, err, "bulkfile: row")
		}

		symbol := strings.TrimSpace(row[cols[colSymbol]])
		series := strings.TrimSpace(row[cols[colSeries]])
		if symbol == "" || !strings.EqualFold(series, a.cfg.Series) {
			continue
		}

		closePx, err := decimal.NewFromString(strings.TrimSpace(row[cols[colClose]]))
		if err != nil {
			return nil, errs.Wrapf(errs.KindParse, err, "bulkfile: close for %s", symbol)
		}
		prevClose, err := decimal.NewFromString(strings.TrimSpace(row[cols[colPrevClose]]))
		if err != nil {
			return nil, errs.Wrapf(errs.KindParse, err, "bulkfile: prevclose for %s", symbol)
		}

		out = append(out, source.Record{
			Symbol:    symbol,
			Segment:   series,
			LastPrice: closePx,
			PrevClose: decimal.NullDecimal{Decimal: prevClose, Valid: true},
		})
	}
	return out, nil
}
