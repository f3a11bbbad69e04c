package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadDirMissingDirectory(t *testing.T) {
	datasets, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, datasets)
}

func TestLoadDirIgnoresNonCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "region,amount\nnorth,100\n")
	writeCSV(t, dir, "notes.txt", "not a table")
	writeCSV(t, dir, "report.md", "# heading")

	datasets, err := LoadDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "sales.csv", datasets[0].Name)
}

func TestLoadDirSortedByName(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "zebra.csv", "a\n1\n")
	writeCSV(t, dir, "apple.csv", "a\n1\n")
	writeCSV(t, dir, "mango.csv", "a\n1\n")

	datasets, err := LoadDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, datasets, 3)
	assert.Equal(t, "apple.csv", datasets[0].Name)
	assert.Equal(t, "mango.csv", datasets[1].Name)
	assert.Equal(t, "zebra.csv", datasets[2].Name)
}

func TestLoadDirTypesCells(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "sales.csv", "region,amount,rate\nnorth,100,0.5\nsouth,200,1.25\n")

	datasets, err := LoadDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, datasets, 1)

	ds := datasets[0]
	assert.Equal(t, []string{"region", "amount", "rate"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "north", ds.Rows[0]["region"])
	assert.Equal(t, int64(100), ds.Rows[0]["amount"])
	assert.Equal(t, 0.5, ds.Rows[0]["rate"])
	assert.Equal(t, int64(200), ds.Rows[1]["amount"])
}

func TestLoadDirMalformedCSVFails(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "bad.csv", "a,b\n1,2,3,4\n")

	_, err := LoadDir(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestSampleRows(t *testing.T) {
	ds := Dataset{
		Columns: []string{"name", "age"},
		Rows: []map[string]any{
			{"name": "ann", "age": int64(30)},
			{"name": "bob", "age": int64(25)},
		},
	}

	out := ds.sampleRows(3)
	assert.Equal(t, "ann, 30\nbob, 25\n", out)
}
