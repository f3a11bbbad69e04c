package tabular

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// LoadDir reads every *.csv file in dir into a Dataset, keyed by filename
// without extension, sorted by name. A missing directory yields an empty
// slice; a malformed CSV fails the whole load.
func LoadDir(dir string, logger *zap.Logger) ([]Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Dataset{}, nil
		}
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var datasets []Dataset
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		ds, err := loadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
		datasets = append(datasets, ds)
	}

	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Name < datasets[j].Name })

	logger.Info("loaded datasets", zap.String("dir", dir), zap.Int("count", len(datasets)))
	return datasets, nil
}

func loadFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("parsing CSV: %w", err)
	}
	if len(records) == 0 {
		return Dataset{}, fmt.Errorf("empty CSV file")
	}

	columns := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = parseCell(record[i])
		}
		rows = append(rows, row)
	}

	// Datasets are keyed by full filename; the model refers to them the way
	// they appear in the inputs directory.
	return Dataset{Name: filepath.Base(path), Columns: columns, Rows: rows}, nil
}

// parseCell types a CSV cell: int64 if it parses as an integer, float64 if
// it parses as a float, otherwise the raw string.
func parseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}
