// Package store provides the flat CSV tables backing the vacation ledger,
// the ticket registry, and the document-to-collection mapping.
//
// Every mutation is load-the-table, change it in memory, write it all back.
// There is no locking: two writers racing on the same table lose one update.
// That is an accepted limitation of this storage model, not a guarantee.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Table is a CSV file with a fixed header. The zero value is not usable;
// construct with NewTable.
type Table struct {
	path    string
	columns []string
}

// NewTable describes a CSV table at path with the given header columns.
func NewTable(path string, columns []string) *Table {
	return &Table{path: path, columns: columns}
}

// Path returns the file path of the table.
func (t *Table) Path() string { return t.path }

// Columns returns the header columns of the table.
func (t *Table) Columns() []string { return t.columns }

// ReadAll returns every data row in file order, header excluded.
// A missing file is not an error: the table is initialized with its
// header and zero rows are returned.
func (t *Table) ReadAll() ([][]string, error) {
	f, err := os.Open(t.path)
	if os.IsNotExist(err) {
		if err := t.init(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening table %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(t.columns)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", t.path, err)
	}

	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// WriteAll overwrites the whole table with the given rows. Each row must
// have exactly as many fields as the table has columns.
func (t *Table) WriteAll(rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(t.columns) {
			return fmt.Errorf("table %s: row %d has %d fields, want %d", t.path, i, len(row), len(t.columns))
		}
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("creating table directory: %w", err)
	}
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", t.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing table %s: %w", t.path, err)
	}
	return nil
}

// Append reads the table and writes it back with one extra row.
func (t *Table) Append(row []string) error {
	rows, err := t.ReadAll()
	if err != nil {
		return err
	}
	return t.WriteAll(append(rows, row))
}

// init persists an empty table containing only the header.
func (t *Table) init() error {
	return t.WriteAll(nil)
}
