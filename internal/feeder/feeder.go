// Package feeder reads tabular seed data, such as short codes created by an
// earlier run, from CSV or JSON files.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Record represents a single row of data with named fields.
type Record map[string]string

// Feeder hands out records in file order. Implementations must be safe for
// concurrent use.
type Feeder interface {
	// Next returns the next record, or ErrExhausted after the last one.
	Next(ctx context.Context) (Record, error)

	// Close releases any resources held by the feeder.
	Close() error

	// Len returns the total number of records in the dataset.
	Len() int
}

var (
	// ErrExhausted is returned by Next once every record has been read.
	ErrExhausted = errors.New("feeder exhausted: no more records available")
	// ErrMissingColumn is returned by Column when no record has the field.
	ErrMissingColumn = errors.New("feeder: column not found")
)

// Open loads path as kind ("csv" or "json"). An empty kind is inferred from
// the file extension.
func Open(path, kind string) (Feeder, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch kind {
	case "csv":
		return NewCSVFeeder(path)
	case "json":
		return NewJSONFeeder(path)
	default:
		return nil, fmt.Errorf("feeder: unsupported type %q (want csv or json)", kind)
	}
}

// Column drains f and returns the non-empty values of column, in order.
func Column(ctx context.Context, f Feeder, column string) ([]string, error) {
	values := make([]string, 0, f.Len())
	seen := false
	for {
		rec, err := f.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		v, ok := rec[column]
		if !ok {
			continue
		}
		seen = true
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if !seen {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
	}
	return values, nil
}

// records is the in-memory dataset shared by the file feeders.
type records struct {
	mu    sync.Mutex
	rows  []Record
	index int
}

func (r *records) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index >= len(r.rows) {
		return nil, ErrExhausted
	}
	rec := r.rows[r.index]
	r.index++
	return rec, nil
}

func (r *records) Close() error { return nil }

func (r *records) Len() int { return len(r.rows) }
