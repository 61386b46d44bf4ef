// Package storage reads and writes the dataset files of the data directory.
//
// Dataset files are CSV with the columns
// start_date,end_date,updated_date,value followed by the unit columns of the
// resource. Units-name files only hold the unit columns. Reads go through a
// bounded LRU cache keyed by file name.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/DridrM/renewable-energy-forecast/internal/models"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// ErrMalformedRecords is returned when records handed to Write cannot form a
// dataset of the resource.
var ErrMalformedRecords = errors.New("storage: malformed records")

// DefaultCacheSize is the number of datasets kept in memory.
const DefaultCacheSize = 32

var valueColumns = []string{"start_date", "end_date", "updated_date", "value"}

// Store manages dataset files under one directory.
type Store struct {
	dir    string
	cache  *lru.Cache
	logger zerolog.Logger
}

// New creates a Store rooted at dir, creating the directory when needed.
func New(dir string, cacheSize int, logger zerolog.Logger) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating dataset cache: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{
		dir:    dir,
		cache:  cache,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the location of the named file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether the named file is present.
func (s *Store) Exists(name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", name, err)
}

// Remove deletes the named file. A missing file yields an error wrapping
// os.ErrNotExist.
func (s *Store) Remove(name string) error {
	s.cache.Remove(name)
	if err := os.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

// Write stores records as the named dataset of kind, replacing any previous
// file. Nothing is written when a record lacks its timestamps or a unit
// column of kind.
func (s *Store) Write(name string, kind resource.Kind, records []models.GenerationRecord) error {
	if err := validate(kind, records); err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("refusing to store malformed records")
		return err
	}

	unitCols := kind.UnitColumns()
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, 0, len(valueColumns)+len(unitCols))
		row = append(row,
			formatTime(rec.StartDate),
			formatTime(rec.EndDate),
			formatTime(rec.UpdatedDate),
			strconv.FormatFloat(rec.Value, 'f', -1, 64),
		)
		for _, col := range unitCols {
			row = append(row, rec.Unit[col])
		}
		rows = append(rows, row)
	}

	if err := s.writeFile(name, append(append([]string{}, valueColumns...), unitCols...), rows); err != nil {
		return err
	}
	s.cache.Remove(name)

	s.logger.Debug().Str("file", name).Int("records", len(records)).Msg("stored dataset")
	return nil
}

// Read loads the named dataset of kind.
func (s *Store) Read(name string, kind resource.Kind) ([]models.GenerationRecord, error) {
	if cached, ok := s.cache.Get(name); ok {
		return clone(cached.([]models.GenerationRecord)), nil
	}

	unitCols := kind.UnitColumns()
	rows, err := s.readFile(name, append(append([]string{}, valueColumns...), unitCols...))
	if err != nil {
		return nil, err
	}

	records := make([]models.GenerationRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseRecord(row, unitCols)
		if err != nil {
			return nil, fmt.Errorf("reading %s line %d: %w", name, i+2, err)
		}
		records = append(records, rec)
	}

	s.cache.Add(name, records)
	return clone(records), nil
}

// WriteUnits stores the units-name list of kind unless the file already
// exists. It reports whether a file was written.
func (s *Store) WriteUnits(name string, kind resource.Kind, units []models.Unit) (bool, error) {
	exists, err := s.Exists(name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	cols := kind.UnitColumns()
	rows := make([][]string, 0, len(units))
	for i, u := range units {
		row := make([]string, 0, len(cols))
		for _, col := range cols {
			v, ok := u[col]
			if !ok {
				return false, fmt.Errorf("%w: unit %d lacks %s", ErrMalformedRecords, i, col)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	if err := s.writeFile(name, cols, rows); err != nil {
		return false, err
	}
	return true, nil
}

// ReadUnits loads the units-name list of kind.
func (s *Store) ReadUnits(name string, kind resource.Kind) ([]models.Unit, error) {
	cols := kind.UnitColumns()
	rows, err := s.readFile(name, cols)
	if err != nil {
		return nil, err
	}

	units := make([]models.Unit, 0, len(rows))
	for _, row := range rows {
		u := make(models.Unit, len(cols))
		for i, col := range cols {
			u[col] = row[i]
		}
		units = append(units, u)
	}
	return units, nil
}

func validate(kind resource.Kind, records []models.GenerationRecord) error {
	for i, rec := range records {
		if rec.StartDate.IsZero() || rec.EndDate.IsZero() {
			return fmt.Errorf("%w: record %d has no interval", ErrMalformedRecords, i)
		}
		for _, col := range kind.UnitColumns() {
			if _, ok := rec.Unit[col]; !ok {
				return fmt.Errorf("%w: record %d lacks %s", ErrMalformedRecords, i, col)
			}
		}
	}
	return nil
}

// writeFile atomically replaces name with header + rows. A failed write
// leaves no file behind.
func (s *Store) writeFile(name string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

func (s *Store) readFile(name string, header []string) ([][]string, error) {
	file, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)

	got, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading %s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	for i := range header {
		if got[i] != header[i] {
			return nil, fmt.Errorf("reading %s: column %d is %q, want %q", name, i, got[i], header[i])
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return rows, nil
}

func parseRecord(row []string, unitCols []string) (models.GenerationRecord, error) {
	var rec models.GenerationRecord
	var err error

	if rec.StartDate, err = parseTime(row[0]); err != nil {
		return rec, fmt.Errorf("start_date: %w", err)
	}
	if rec.EndDate, err = parseTime(row[1]); err != nil {
		return rec, fmt.Errorf("end_date: %w", err)
	}
	if rec.UpdatedDate, err = parseTime(row[2]); err != nil {
		return rec, fmt.Errorf("updated_date: %w", err)
	}
	if rec.Value, err = strconv.ParseFloat(row[3], 64); err != nil {
		return rec, fmt.Errorf("value: %w", err)
	}

	rec.Unit = make(models.Unit, len(unitCols))
	for i, col := range unitCols {
		rec.Unit[col] = row[len(valueColumns)+i]
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// clone copies the records and their unit maps so callers never alias the cache.
func clone(records []models.GenerationRecord) []models.GenerationRecord {
	out := make([]models.GenerationRecord, len(records))
	for i, rec := range records {
		unit := make(models.Unit, len(rec.Unit))
		for k, v := range rec.Unit {
			unit[k] = v
		}
		rec.Unit = unit
		out[i] = rec
	}
	return out
}
