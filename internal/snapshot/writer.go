package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"marketsnap/internal/errs"
	"marketsnap/internal/quote"
)

// Output formats. FormatQuotes is the canonical array-of-quote form;
// FormatPriceMap is the legacy symbol-to-price mapping kept as a
// documented alternate export.
const (
	FormatQuotes   = "quotes"
	FormatPriceMap = "pricemap"
)

// Writer persists a snapshot, fully replacing any prior file. The write
// is atomic from a reader's point of view: serialize to a temp file in
// the target directory, then rename over the destination.
type Writer struct {
	Path   string
	Format string
}

func NewWriter(path, format string) (*Writer, error) {
	if path == "" {
		return nil, errs.New(errs.KindConfiguration, "snapshot: missing output path")
	}
	switch format {
	case "":
		format = FormatQuotes
	case FormatQuotes, FormatPriceMap:
	default:
		return nil, errs.Newf(errs.KindConfiguration, "snapshot: unknown format %q", format)
	}
	return &Writer{Path: path, Format: format}, nil
}

func (w *Writer) Write(s quote.Snapshot) error {
	var payload any = s
	if w.Format == FormatPriceMap {
		m := make(map[string]string, len(s))
		for _, q := range s {
			m[q.Symbol] = q.LastPrice.String()
		}
		payload = m
	}

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errors.Wrap(err, "snapshot: marshal")
	}
	b = append(b, '\n')

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, ".marketdata-*.json")
	if err != nil {
		return errors.Wrap(err, "snapshot: temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "snapshot: write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "snapshot: close")
	}
	if err := os.Rename(tmpName, w.Path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "snapshot: replace")
	}
	return nil
}

// Read loads a quotes-format snapshot. Used by tests and the dump tool;
// the pipeline itself never reads prior snapshots.
func Read(path string) (quote.Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s quote.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errs.Wrap(errs.KindParse, err, "snapshot: parse")
	}
	return s, nil
}
