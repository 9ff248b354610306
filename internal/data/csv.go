package data

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nicsoto/quantlab/internal/backtest"
	"github.com/nicsoto/quantlab/internal/core"
)

// timeLayouts are tried in order when parsing the time column. Integer
// values are interpreted as unix timestamps (seconds, or milliseconds when
// large enough).
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadBars reads OHLCV bars from a CSV file. The file must have a header
// row naming at least time, open, high, low and close columns (volume is
// optional). Column order does not matter. Bars are validated and must be
// in strictly increasing time order.
func LoadBars(path string) ([]core.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	bars, err := ReadBars(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadBars parses OHLCV bars from CSV data.
func ReadBars(r io.Reader) ([]core.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("reading header: %w", err))
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []core.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("line %d: %w", line+1, err))
		}
		line++

		bar, err := parseBar(rec, cols)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("line %d: %w", line, err))
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data rows"))
	}
	if err := core.ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

// columnIndex maps logical fields to CSV column positions.
type columnIndex struct {
	time, open, high, low, clos, volume int
}

var columnAliases = map[string]string{
	"time":      "time",
	"timestamp": "time",
	"date":      "time",
	"datetime":  "time",
	"open":      "open",
	"high":      "high",
	"low":       "low",
	"close":     "close",
	"adj close": "close",
	"volume":    "volume",
	"vol":       "volume",
}

func mapColumns(header []string) (columnIndex, error) {
	idx := columnIndex{time: -1, open: -1, high: -1, low: -1, clos: -1, volume: -1}
	for i, name := range header {
		switch columnAliases[strings.ToLower(strings.TrimSpace(name))] {
		case "time":
			idx.time = i
		case "open":
			idx.open = i
		case "high":
			idx.high = i
		case "low":
			idx.low = i
		case "close":
			if idx.clos == -1 {
				idx.clos = i
			}
		case "volume":
			idx.volume = i
		}
	}
	for name, got := range map[string]int{
		"time": idx.time, "open": idx.open, "high": idx.high,
		"low": idx.low, "close": idx.clos,
	} {
		if got == -1 {
			return idx, core.WrapError(core.ErrInvalidInput, fmt.Errorf("missing %q column in header", name))
		}
	}
	return idx, nil
}

func parseBar(rec []string, cols columnIndex) (core.Bar, error) {
	var bar core.Bar

	ts, err := parseTime(rec[cols.time])
	if err != nil {
		return bar, err
	}
	bar.Time = ts

	if bar.Open, err = parseFloat(rec[cols.open], "open"); err != nil {
		return bar, err
	}
	if bar.High, err = parseFloat(rec[cols.high], "high"); err != nil {
		return bar, err
	}
	if bar.Low, err = parseFloat(rec[cols.low], "low"); err != nil {
		return bar, err
	}
	if bar.Close, err = parseFloat(rec[cols.clos], "close"); err != nil {
		return bar, err
	}
	if cols.volume >= 0 && cols.volume < len(rec) && rec[cols.volume] != "" {
		if bar.Volume, err = parseFloat(rec[cols.volume], "volume"); err != nil {
			return bar, err
		}
	}

	return bar, bar.Validate()
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Millisecond timestamps start around 1971 when read as seconds.
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func parseFloat(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return v, nil
}

// WriteTrades writes the trade ledger from a backtest to a CSV file.
func WriteTrades(trades []backtest.Trade, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"entry_time", "exit_time", "entry_price", "exit_price",
		"size", "pnl", "return_pct", "exit_reason",
	}); err != nil {
		return err
	}
	for _, t := range trades {
		if err := w.Write([]string{
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			formatF(t.EntryPrice), formatF(t.ExitPrice),
			formatF(t.Size), formatF(t.PnL), formatF(t.ReturnPct),
			string(t.ExitReason),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
