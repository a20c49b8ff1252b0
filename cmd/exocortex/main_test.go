package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a,b,c"))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , , b "))
}

func TestLoadGoldenQueries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "golden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: q1
  query: "project retro notes"
  limit: 5
- id: q2
  query: "onboarding checklist"
  tags: ["onboarding"]
`), 0o644))

	queries, err := loadGoldenQueries(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "q1", queries[0].ID)
	assert.Equal(t, 5, queries[0].Limit)
	assert.Equal(t, []string{"onboarding"}, queries[1].Tags)
}

func TestLoadGoldenQueries_MissingFile(t *testing.T) {
	_, err := loadGoldenQueries("/nonexistent/path.yaml")
	assert.Error(t, err)
}
