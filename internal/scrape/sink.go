package scrape

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/L0ckR/LCT-hackaton/internal/models"
)

// CSVSink persists deduplicated rows as a fixed-column CSV file. The column
// set is a contract with downstream consumers and must not silently change.
type CSVSink struct {
	dir    string
	logger *slog.Logger
}

// NewCSVSink creates the data directory if needed.
func NewCSVSink(dir string, logger *slog.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &CSVSink{dir: dir, logger: logger}, nil
}

// Dir returns the sink's base directory.
func (s *CSVSink) Dir() string { return s.dir }

// Write stores rows under filename and returns the full path.
func (s *CSVSink) Write(filename string, rows []models.ReviewRow) (string, error) {
	name, err := EnsureCSVFilename(filename)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(models.ReviewColumns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.Record()); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}

	s.logger.Info("wrote rows", "count", len(rows), "path", path)
	return path, nil
}

// EnsureCSVFilename sanitizes a user-supplied output name: basename only,
// non-empty, forced .csv extension.
func EnsureCSVFilename(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "", fmt.Errorf("output filename cannot be empty")
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid output filename %q", filename)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}
	return name, nil
}
