// sourcedump runs the configured source adapter once and prints its raw
// records as JSON. Useful when an upstream changes shape and the
// pipeline starts skipping records.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"marketsnap/internal/calendar"
	"marketsnap/internal/config"
	"marketsnap/internal/httpx"
	"marketsnap/internal/logger"
	"marketsnap/internal/source"
	"marketsnap/internal/source/bulkfile"
	"marketsnap/internal/source/restkeyed"
	"marketsnap/internal/source/sessioncookie"
)

type dumpRecord struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	Segment   string  `json:"segment,omitempty"`
	LastPrice string  `json:"lastPrice"`
	PrevClose *string `json:"prevClose,omitempty"`
	Change    *string `json:"change,omitempty"`
	PctChange *string `json:"pctChange,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sourcedump: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	client := httpx.New(time.Duration(cfg.RequestTimeoutSec) * time.Second)

	var src source.Source
	switch cfg.Source {
	case config.SourceRESTKeyed:
		src, err = restkeyed.New(restkeyed.Config{
			Endpoint:     cfg.RESTKeyed.Endpoint,
			APIKey:       cfg.RESTKeyed.APIKey,
			CredentialIn: cfg.RESTKeyed.CredentialIn,
			Symbols:      cfg.RESTKeyed.Symbols,
		}, client, log)
	case config.SourceSessionCookie:
		src, err = sessioncookie.New(sessioncookie.Config{
			LandingURL:      cfg.Session.LandingURL,
			DataURL:         cfg.Session.DataURL,
			Referer:         cfg.Session.Referer,
			CookieAllowlist: cfg.Session.CookieAllowlist,
		}, client, log)
	case config.SourceBulkFile:
		resolver := calendar.NewResolver(cfg.Bulk.UTCOffsetMin,
			cfg.Bulk.CloseHour, cfg.Bulk.CloseMinute,
			time.Duration(cfg.Bulk.CloseMarginMin)*time.Minute)
		src, err = bulkfile.New(bulkfile.Config{
			BaseURL: cfg.Bulk.BaseURL,
			Series:  cfg.Bulk.Series,
			Session: resolver.LastSession(time.Now()),
		}, client, log)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.RequestTimeoutSec)*time.Second*2)
	defer cancel()

	records, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	out := make([]dumpRecord, 0, len(records))
	for _, r := range records {
		out = append(out, dumpRecord{
			Symbol:    r.Symbol,
			Name:      r.Name,
			Segment:   r.Segment,
			LastPrice: r.LastPrice.String(),
			PrevClose: nullStr(r.PrevClose),
			Change:    nullStr(r.Change),
			PctChange: nullStr(r.PctChange),
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func nullStr(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
