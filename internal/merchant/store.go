// Package merchant provides the in-memory merchant repository backing the
// matchmaker. Records are loaded once from a CSV dataset at startup and are
// immutable afterwards, so the store is safe for unsynchronised concurrent
// reads.
package merchant

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Record is a single merchant profile from the dataset.
type Record struct {
	// ID is the unique, stable merchant identifier.
	ID string

	// City is the merchant's city.
	City string

	// CategoryCode is the merchant category code (MCC).
	CategoryCode string

	// Message is the merchant's free-text description of what they offer
	// or are looking for. This is the text that gets embedded and matched.
	Message string

	// DisplayName is the human-readable name shown in match results.
	// Falls back to ID when the dataset has no description column value.
	DisplayName string
}

// Store holds the full merchant record set. Load it once, read forever —
// there is no mutation path after construction.
type Store struct {
	// records preserves dataset order.
	records []Record
	// byID indexes records by merchant ID.
	byID map[string]*Record
}

// Dataset column names. mcc_description is optional; all others are required.
const (
	colID          = "merchant_id"
	colCity        = "city"
	colCategory    = "mcc_code"
	colMessage     = "message"
	colDisplayName = "mcc_description"
)

// LoadFile reads the merchant dataset from a CSV file at path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("merchant: open dataset %s: %w", path, err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("merchant: load dataset %s: %w", path, err)
	}
	return s, nil
}

// Load reads the merchant dataset from r. The first row must be a header
// containing at least merchant_id, city, mcc_code, and message columns.
// Duplicate merchant IDs are rejected — the ID is the stable primary key of
// the whole system.
func Load(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("merchant: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{colID, colCity, colCategory, colMessage} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("merchant: dataset missing required column %q", required)
		}
	}

	var records []Record
	seen := make(map[string]bool)

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("merchant: read row %d: %w", line, err)
		}

		rec := Record{
			ID:           row[cols[colID]],
			City:         row[cols[colCity]],
			CategoryCode: row[cols[colCategory]],
			Message:      row[cols[colMessage]],
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("merchant: row %d: empty merchant_id", line)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("merchant: row %d: duplicate merchant_id %q", line, rec.ID)
		}
		seen[rec.ID] = true

		if i, ok := cols[colDisplayName]; ok && i < len(row) && row[i] != "" {
			rec.DisplayName = row[i]
		} else {
			rec.DisplayName = rec.ID
		}

		records = append(records, rec)
	}

	// Index after the slice is final — appending above may reallocate.
	s := &Store{records: records, byID: make(map[string]*Record, len(records))}
	for i := range s.records {
		s.byID[s.records[i].ID] = &s.records[i]
	}

	return s, nil
}

// ByID returns the record for the given merchant ID, or false if absent.
func (s *Store) ByID(id string) (Record, bool) {
	rec, ok := s.byID[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// All returns every record in dataset order. The returned slice is shared —
// callers must not mutate it.
func (s *Store) All() []Record {
	return s.records
}

// Len returns the number of loaded records.
func (s *Store) Len() int {
	return len(s.records)
}

// DisplayName returns the display name for a merchant ID, falling back to
// the ID itself for unknown merchants so callers always have something to
// show.
func (s *Store) DisplayName(id string) string {
	if rec, ok := s.byID[id]; ok {
		return rec.DisplayName
	}
	return id
}
