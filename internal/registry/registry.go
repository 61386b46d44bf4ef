// Package registry maintains the ledger of generation datasets already
// downloaded and stored on disk.
//
// The ledger is a CSV file with one row per stored dataset. Dataset file names
// are a pure function of the request parameters, so checking whether a
// request is already cached only needs the ledger, never a directory scan.
package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DridrM/renewable-energy-forecast/internal/daterange"
	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

const (
	// LedgerName is the file name of the ledger inside the data directory.
	LedgerName = "register.csv"
	// AllUnits marks a dataset holding every unit of the resource.
	AllUnits = "all-units"
)

// Ledger columns, in file order.
var header = []string{
	"id",
	"creation_date",
	"resource_name",
	"start_date",
	"end_date",
	resource.ColEICCode,
	resource.ColProductionType,
	resource.ColProductionSubtype,
	"file_name",
}

const (
	colID = iota
	colCreated
	colResource
	colStart
	colEnd
	colEICCode
	colProductionType
	colProductionSubtype
	colFileName
)

// ErrNotFound is returned when no ledger row carries the requested id.
var ErrNotFound = errors.New("registry: entry not found")

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("github.com/DridrM/renewable-energy-forecast/registry"))

// Entry is one ledger row.
type Entry struct {
	ID        string
	CreatedAt time.Time
	Kind      resource.Kind
	// Range is the window the file name was derived from.
	Range    daterange.DateRange
	Filter   resource.Filter
	FileName string
}

// Files removes the dataset file behind a ledger row.
type Files interface {
	Remove(name string) error
}

// Registry reads and appends the ledger.
type Registry struct {
	path   string
	files  Files
	now    func() time.Time
	logger zerolog.Logger
	mu     sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithNow replaces the clock used for creation timestamps.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a Registry whose ledger lives in dataDir. files removes the
// dataset files when entries are deleted.
func New(dataDir string, files Files, logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		path:   filepath.Join(dataDir, LedgerName),
		files:  files,
		now:    time.Now,
		logger: logger.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the ledger location.
func (r *Registry) Path() string {
	return r.path
}

// DatasetName derives the canonical file name of a dataset:
// {resource}__{start}__{end}__{unit values}.csv with spaces replaced by
// underscores. A default range is replaced by the window the API serves
// today, and an empty filter by AllUnits, so repeated default calls within
// one day share a name.
func DatasetName(kind resource.Kind, dr daterange.DateRange, f resource.Filter, now time.Time) string {
	if dr.IsDefault() {
		dr = daterange.Today(kind, now)
	}
	f, _ = kind.Canonical(f)

	parts := []string{
		kind.Name(),
		dr.Start.In(resource.APIZone).Format(daterange.Layout),
		dr.End.In(resource.APIZone).Format(daterange.Layout),
	}
	units := kind.FilterValues(f)
	if len(units) == 0 {
		units = []string{AllUnits}
	}
	parts = append(parts, units...)

	return sanitize(strings.Join(parts, "__") + ".csv")
}

// UnitsName derives the file name of the units-name list of a resource.
func UnitsName(kind resource.Kind) string {
	return sanitize(kind.Name() + "__" + kind.Designation() + ".csv")
}

func sanitize(name string) string {
	return strings.NewReplacer(" ", "_", "/", "-", `\`, "-").Replace(name)
}

// Exists reports whether a dataset with the given file name is registered.
// The ledger is created, header only, on first use.
func (r *Registry) Exists(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readRows(true)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row[colFileName] == name {
			return true, nil
		}
	}
	return false, nil
}

// Record appends a row for a stored dataset and returns it. Recording a file
// name that is already registered returns the existing entry and appends nothing.
func (r *Registry) Record(kind resource.Kind, dr daterange.DateRange, f resource.Filter, name string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readRows(true)
	if err != nil {
		return Entry{}, err
	}
	for _, row := range rows {
		if row[colFileName] == name {
			return parseRow(row)
		}
	}

	now := r.now()
	if dr.IsDefault() {
		dr = daterange.Today(kind, now)
	}
	f, _ = kind.Canonical(f)

	entry := Entry{
		ID:        deriveID(now, name),
		CreatedAt: now,
		Kind:      kind,
		Range:     dr,
		Filter:    f,
		FileName:  name,
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("opening ledger: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(formatRow(entry)); err != nil {
		return Entry{}, fmt.Errorf("appending ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Entry{}, fmt.Errorf("appending ledger row: %w", err)
	}

	r.logger.Debug().
		Str("id", entry.ID).
		Str("resource", kind.Name()).
		Str("file", name).
		Msg("registered dataset")

	return entry, nil
}

// List returns every ledger entry in insertion order. A missing ledger is
// reported as empty and left uncreated.
func (r *Registry) List() ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readRows(false)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Lookup returns the entry with the given id.
func (r *Registry) Lookup(id string) (Entry, error) {
	entries, err := r.List()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Remove deletes an entry together with its dataset file. The ledger row is
// dropped first; a file that is already gone counts as removed. If the file
// cannot be removed for any other reason the ledger is restored and the
// error returned, so a row never outlives its file silently nor the reverse.
func (r *Registry) Remove(id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.readRows(true)
	if err != nil {
		return Entry{}, err
	}

	idx := -1
	for i, row := range rows {
		if row[colID] == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	entry, err := parseRow(rows[idx])
	if err != nil {
		return Entry{}, err
	}

	kept := make([][]string, 0, len(rows)-1)
	kept = append(kept, rows[:idx]...)
	kept = append(kept, rows[idx+1:]...)
	if err := r.writeRows(kept); err != nil {
		return Entry{}, err
	}

	if err := r.files.Remove(entry.FileName); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn().
				Str("id", id).
				Str("file", entry.FileName).
				Msg("dataset file already gone, ledger row removed")
			return entry, nil
		}
		removeErr := fmt.Errorf("removing dataset file %s: %w", entry.FileName, err)
		if restoreErr := r.writeRows(rows); restoreErr != nil {
			return Entry{}, errors.Join(removeErr, fmt.Errorf("restoring ledger row %s: %w", id, restoreErr))
		}
		return Entry{}, removeErr
	}

	r.logger.Info().
		Str("id", id).
		Str("file", entry.FileName).
		Msg("removed dataset")

	return entry, nil
}

// readRows returns the data rows of the ledger. An absent ledger has no rows
// and is created header only when create is set.
func (r *Registry) readRows(create bool) ([][]string, error) {
	file, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		if !create {
			return nil, nil
		}
		if err := r.writeRows(nil); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading ledger header: %w", err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return rows, nil
}

// writeRows atomically replaces the ledger with header + rows.
func (r *Registry) writeRows(rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), LedgerName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func deriveID(created time.Time, name string) string {
	return uuid.NewSHA1(idNamespace, []byte(created.Format(time.RFC3339Nano)+name)).String()
}

func formatRow(e Entry) []string {
	row := make([]string, len(header))
	row[colID] = e.ID
	row[colCreated] = e.CreatedAt.In(resource.APIZone).Format(daterange.Layout)
	row[colResource] = e.Kind.Name()
	row[colStart] = e.Range.Start.In(resource.APIZone).Format(daterange.Layout)
	row[colEnd] = e.Range.End.In(resource.APIZone).Format(daterange.Layout)

	if e.Filter.IsZero() {
		for _, col := range e.Kind.FilterColumns() {
			row[filterColumn(col)] = AllUnits
		}
	} else {
		row[colEICCode] = e.Filter.EICCode
		row[colProductionType] = e.Filter.ProductionType
		row[colProductionSubtype] = e.Filter.ProductionSubtype
	}

	row[colFileName] = e.FileName
	return row
}

func filterColumn(col string) int {
	switch col {
	case resource.ColEICCode:
		return colEICCode
	case resource.ColProductionType:
		return colProductionType
	default:
		return colProductionSubtype
	}
}

func parseRow(row []string) (Entry, error) {
	kind, err := resource.Parse(row[colResource])
	if err != nil {
		return Entry{}, fmt.Errorf("ledger row %s: %w", row[colID], err)
	}

	created, err := time.ParseInLocation(daterange.Layout, row[colCreated], resource.APIZone)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger row %s: creation date: %w", row[colID], err)
	}
	start, err := time.ParseInLocation(daterange.Layout, row[colStart], resource.APIZone)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger row %s: start date: %w", row[colID], err)
	}
	end, err := time.ParseInLocation(daterange.Layout, row[colEnd], resource.APIZone)
	if err != nil {
		return Entry{}, fmt.Errorf("ledger row %s: end date: %w", row[colID], err)
	}

	return Entry{
		ID:        row[colID],
		CreatedAt: created,
		Kind:      kind,
		Range:     daterange.DateRange{Start: start, End: end},
		Filter: resource.Filter{
			EICCode:           unitValue(row[colEICCode]),
			ProductionType:    unitValue(row[colProductionType]),
			ProductionSubtype: unitValue(row[colProductionSubtype]),
		},
		FileName: row[colFileName],
	}, nil
}

func unitValue(v string) string {
	if v == AllUnits {
		return ""
	}
	return v
}
