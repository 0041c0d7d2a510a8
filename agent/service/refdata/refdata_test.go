package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type table struct {
	Items []struct {
		ID    string  `json:"id" yaml:"id"`
		Price float64 `json:"price" yaml:"price"`
	} `json:"items" yaml:"items"`
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "products.json", `{"items":[{"id":"A","price":10.5}]}`)

	got := Load[table](dir, "products")
	require.Len(t, got.Items, 1)
	require.Equal(t, "A", got.Items[0].ID)
	require.Equal(t, 10.5, got.Items[0].Price)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "products.yml", "items:\n  - id: B\n    price: 99\n")

	got := Load[table](dir, "products")
	require.Len(t, got.Items, 1)
	require.Equal(t, "B", got.Items[0].ID)
}

func TestLoadPrefersJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "products.json", `{"items":[{"id":"json"}]}`)
	writeFile(t, dir, "products.yaml", "items:\n  - id: yaml\n")

	got := Load[table](dir, "products")
	require.Equal(t, "json", got.Items[0].ID)
}

func TestLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	got := Load[table](t.TempDir(), "customers")
	require.Empty(t, got.Items)
}

func TestLoadMalformedIsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "inventory.json", `{"items":[{"id":`)

	got := Load[table](dir, "inventory")
	require.Empty(t, got.Items)

	m := Load[map[string]int](dir, "inventory")
	require.Nil(t, m)
}
