package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeDataset(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const salesJSON = `{
  "id": "ds_sales",
  "name": "quarterly sales",
  "columns": [
    {"name": "amount", "kind": "numeric", "values": [10.5, 20, null, 40]},
    {"name": "region", "kind": "categorical", "values": ["north", "south", null, "north"]},
    {"name": "flagged", "kind": "text", "values": ["yes", true, "no", 3]}
  ]
}`

func TestLoadFile(t *testing.T) {
	path := writeDataset(t, t.TempDir(), "sales.json", salesJSON)

	ds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ds_sales", ds.ID)
	assert.Equal(t, "quarterly sales", ds.Name)
	assert.Equal(t, 4, ds.Rows)
	assert.Equal(t, 3, ds.Width())

	amount := ds.Column("amount")
	require.NotNil(t, amount)
	assert.True(t, amount.IsNumeric())
	assert.Equal(t, 1, amount.MissingCount())
	assert.Equal(t, 10.5, amount.Floats[0])

	// Non-string JSON in a string column is kept verbatim so profiling
	// can surface the mixed formats.
	flagged := ds.Column("flagged")
	require.NotNil(t, flagged)
	assert.Equal(t, []string{"yes", "true", "no", "3"}, flagged.Strings)
}

func TestLoadFileDefaultsIDFromFilename(t *testing.T) {
	path := writeDataset(t, t.TempDir(), "customers.json",
		`{"columns": [{"name": "id", "kind": "text", "values": ["a"]}]}`)

	ds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "customers", ds.ID)
	assert.Equal(t, "customers", ds.Name)
}

func TestLoadFileRejectsUnknownKind(t *testing.T) {
	path := writeDataset(t, t.TempDir(), "bad.json",
		`{"columns": [{"name": "x", "kind": "complex", "values": [1]}]}`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "complex"`)
}

func TestLoadDirAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "b.json", `{"id": "ds_b", "columns": []}`)
	writeDataset(t, dir, "a.json", `{"id": "ds_a", "columns": []}`)
	writeDataset(t, dir, "notes.txt", "not a dataset")

	logger := zaptest.NewLogger(t)
	reg, err := NewRegistry(logger)
	require.NoError(t, err)
	require.NoError(t, LoadDir(reg, dir, logger))

	assert.Equal(t, []string{"ds_a", "ds_b"}, reg.IDs())

	found, missing := reg.Resolve([]string{"ds_b", "ds_missing", "ds_a"})
	require.Len(t, found, 2)
	assert.Equal(t, "ds_a", found[0].ID, "resolution order is by ID, not request order")
	assert.Equal(t, "ds_b", found[1].ID)
	assert.Equal(t, []string{"ds_missing"}, missing)
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	reg, err := NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, reg.Register(NewDataset("dup", "one", 0, nil)))
	assert.Error(t, reg.Register(NewDataset("dup", "two", 0, nil)))
}
