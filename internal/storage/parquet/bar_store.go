// Package parquet stores daily bars as Parquet files, one per symbol and year.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"strategy-validation-lab/internal/domain"
	"strategy-validation-lab/internal/storage"
)

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// BarStore implements storage.BarStore on disk.
// Layout: <dir>/<SYMBOL>/<YYYY>.parquet
type BarStore struct {
	dir string
	mu  sync.Mutex // serializes read-merge-write of year files
}

// NewBarStore creates a BarStore rooted at dir.
func NewBarStore(dir string) *BarStore {
	return &BarStore{dir: dir}
}

// WriteBars merges bars into the symbol's year files. Incoming bars replace
// stored bars with the same timestamp.
func (s *BarStore) WriteBars(_ context.Context, symbol string, bars []domain.Bar) error {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[int][]BarRecord)
	for _, b := range bars {
		ts := b.Timestamp.UTC()
		groups[ts.Year()] = append(groups[ts.Year()], BarRecord{
			Timestamp: ts.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for year, records := range groups {
		path := s.barPath(symbol, year)

		var existing []BarRecord
		if _, err := os.Stat(path); err == nil {
			if existing, err = readParquetFile[BarRecord](path); err != nil {
				return fmt.Errorf("read bars for %s/%d: %w", symbol, year, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("write bars for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadRange reads bars within [start, end] (inclusive), ordered by timestamp ASC.
// Unknown symbols yield an empty result.
func (s *BarStore) ReadRange(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = normalizeSymbol(symbol)
	years, err := s.years(symbol)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for _, year := range years {
		if year < start.UTC().Year() || year > end.UTC().Year() {
			continue
		}
		records, err := readParquetFile[BarRecord](s.barPath(symbol, year))
		if err != nil {
			return nil, fmt.Errorf("read bars for %s/%d: %w", symbol, year, err)
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:    symbol,
				Timestamp: ts,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// ListSymbols lists every symbol directory, sorted.
func (s *BarStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// years lists the years stored for symbol, ascending.
func (s *BarStore) years(symbol string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var years []int
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".parquet")
		if e.IsDir() || !ok {
			continue
		}
		y, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func (s *BarStore) barPath(symbol string, year int) string {
	return filepath.Join(s.dir, symbol, strconv.Itoa(year)+".parquet")
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates by timestamp, preferring incoming records.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
