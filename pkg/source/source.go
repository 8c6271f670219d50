package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/keshavaimill/al-hatab-insights-main/pkg/frame"
	"github.com/keshavaimill/al-hatab-insights-main/pkg/kpi"
)

// DatasetsDir is the directory under the base dir holding the CSV files.
const DatasetsDir = "datasets"

// ErrMissingSource is wrapped by MissingSourceError.
var ErrMissingSource = errors.New("source not found")

// MissingSourceError reports a named input file that does not exist.
type MissingSourceError struct {
	Table string
	Path  string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Table, e.Path)
}

func (e *MissingSourceError) Unwrap() error {
	return ErrMissingSource
}

// Spec names one fact table and the file it is read from.
type Spec struct {
	Domain kpi.Domain
	Table  string
	File   string
}

// DefaultSpecs are the three fact tables the engine expects.
var DefaultSpecs = []Spec{
	{Domain: kpi.Factory, Table: "factory_predictions", File: "predictions.csv"},
	{Domain: kpi.DC, Table: "dc_forecasts", File: "dc_168h_forecasts.csv"},
	{Domain: kpi.Store, Table: "store_forecasts", File: "store_168h_forecasts.csv"},
}

// TableName returns the fact table name for a domain.
func TableName(d kpi.Domain) string {
	for _, s := range DefaultSpecs {
		if s.Domain == d {
			return s.Table
		}
	}
	return string(d)
}

// Loader reads fact tables from a base directory.
type Loader struct {
	baseDir string
	specs   []Spec
}

// NewLoader creates a loader for baseDir using DefaultSpecs.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir, specs: DefaultSpecs}
}

// WithSpecs overrides the table list.
func (l *Loader) WithSpecs(specs []Spec) *Loader {
	l.specs = specs
	return l
}

// Path returns the file path for a spec.
func (l *Loader) Path(s Spec) string {
	return filepath.Join(l.baseDir, DatasetsDir, s.File)
}

// LoadAll reads every table that exists. Missing files are logged and
// returned as errors alongside the tables that did load; a build can
// carry on without them.
func (l *Loader) LoadAll() (map[kpi.Domain]*frame.Frame, []error) {
	out := make(map[kpi.Domain]*frame.Frame, len(l.specs))
	var errs []error
	for _, s := range l.specs {
		f, err := l.Load(s)
		if err != nil {
			slog.Warn("fact table not loaded", "table", s.Table, "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("fact table loaded", "table", s.Table, "rows", f.Len(), "columns", len(f.Columns()))
		out[s.Domain] = f
	}
	return out, errs
}

// Load reads one table.
func (l *Loader) Load(s Spec) (*frame.Frame, error) {
	path := l.Path(s)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingSourceError{Table: s.Table, Path: path}
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	f, err := ReadCSV(s.Table, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return f, nil
}

// ReadCSV parses a CSV stream with a header row into a frame.
func ReadCSV(name string, r io.Reader) (*frame.Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return frame.New(name, nil), nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	f := frame.New(name, header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", f.Len()+1, err)
		}
		f.Append(record)
	}
	return f, nil
}
