// Package bars parses daily bar files for import into a BarStore.
package bars

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"strategy-validation-lab/internal/domain"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Required columns, matched case-insensitively. An adj_close column takes
// precedence over close.
var required = []string{"date", "open", "high", "low", "close"}

// ReadCSV parses a headered CSV of daily bars. Dates use YYYY-MM-DD or
// RFC3339; volume is optional. Rows come back in file order.
func ReadCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	closeCol := cols["close"]
	if i, ok := cols["adj_close"]; ok {
		closeCol = i
	}
	volumeCol, hasVolume := cols["volume"]

	var out []domain.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseDate(rec[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b := domain.Bar{Timestamp: ts}
		fields := []struct {
			col int
			dst *float64
		}{
			{cols["open"], &b.Open},
			{cols["high"], &b.High},
			{cols["low"], &b.Low},
			{closeCol, &b.Close},
		}
		if hasVolume {
			fields = append(fields, struct {
				col int
				dst *float64
			}{volumeCol, &b.Volume})
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[f.col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, header[f.col], err)
			}
			*f.dst = v
		}
		out = append(out, b)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return domain.TruncateDay(t.UTC()), nil
}
