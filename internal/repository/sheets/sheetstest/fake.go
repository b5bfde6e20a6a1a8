// Package sheetstest provides an in-memory sheets.Repository for service
// tests, mirroring the header-keyed row semantics of the real adapter.
package sheetstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mvbarros/estoque/internal/repository/sheets"
)

// Fake is an in-memory Repository. Sheets must be seeded with a header before
// use; reading an unseeded sheet fails with sheets.ErrSheetNotFound like the
// real adapter does.
type Fake struct {
	mu      sync.Mutex
	headers map[string][]string
	rows    map[string][][]interface{}

	// NextReadErr, NextAppendErr and NextUpdateErr are returned once by the
	// next matching call, then cleared.
	NextReadErr   error
	NextAppendErr error
	NextUpdateErr error

	// Appends counts successful AppendRow calls per sheet.
	Appends map[string]int
}

// NewFake returns an empty fake repository.
func NewFake() *Fake {
	return &Fake{
		headers: make(map[string][]string),
		rows:    make(map[string][][]interface{}),
		Appends: make(map[string]int),
	}
}

// Seed registers a sheet with its header row and optional data rows.
func (f *Fake) Seed(sheet string, header []string, rows ...[]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers[sheet] = header
	f.rows[sheet] = append([][]interface{}{}, rows...)
}

// Rows returns a copy of the current data rows of a sheet.
func (f *Fake) Rows(sheet string) [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]interface{}{}, f.rows[sheet]...)
}

// ReadRows implements sheets.Repository.
func (f *Fake) ReadRows(ctx context.Context, sheet string) ([]sheets.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.NextReadErr; err != nil {
		f.NextReadErr = nil
		return nil, err
	}

	header, ok := f.headers[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, sheet)
	}

	records := make([]sheets.Record, 0, len(f.rows[sheet]))
	for i, cells := range f.rows[sheet] {
		records = append(records, sheets.NewRecord(header, cells, i+2))
	}
	return records, nil
}

// AppendRow implements sheets.Repository.
func (f *Fake) AppendRow(ctx context.Context, sheet string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.NextAppendErr; err != nil {
		f.NextAppendErr = nil
		return err
	}

	header, ok := f.headers[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, sheet)
	}

	row := make([]interface{}, len(header))
	for i, name := range header {
		value, present := fields[name]
		if !present {
			value = ""
		}
		row[i] = value
	}
	f.rows[sheet] = append(f.rows[sheet], row)
	f.Appends[sheet]++
	return nil
}

// UpdateCell implements sheets.Repository.
func (f *Fake) UpdateCell(ctx context.Context, sheet string, row int, column string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.NextUpdateErr; err != nil {
		f.NextUpdateErr = nil
		return err
	}

	header, ok := f.headers[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, sheet)
	}

	idx := row - 2
	if idx < 0 || idx >= len(f.rows[sheet]) {
		return fmt.Errorf("row %d out of range for sheet %s", row, sheet)
	}
	for i, name := range header {
		if name == column {
			f.rows[sheet][idx][i] = value
			return nil
		}
	}
	return fmt.Errorf("sheet %s has no column %q", sheet, column)
}
