package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maneesh/schematic/internal/config"
	"github.com/maneesh/schematic/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatcherDefaults(t *testing.T) {
	m, err := newMatcher(&config.Config{FuzzyCutoff: search.DefaultCutoff})
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id"}, m.Similar([]string{"user_id", "title"}, []string{"usr"}))
}

func TestNewMatcherConfiguredFiles(t *testing.T) {
	dir := t.TempDir()
	words := filepath.Join(dir, "words.txt")
	synonyms := filepath.Join(dir, "synonyms.yaml")
	require.NoError(t, os.WriteFile(words, []byte("price 10\n"), 0o644))
	require.NoError(t, os.WriteFile(synonyms, []byte("- [price, cost]\n"), 0o644))

	m, err := newMatcher(&config.Config{
		SpellingDictionary: words,
		ThesaurusPath:      synonyms,
		FuzzyCutoff:        search.DefaultCutoff,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"unit_price"}, m.Similar([]string{"unit_price", "name"}, []string{"cost"}))

	_, err = newMatcher(&config.Config{SpellingDictionary: filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)

	_, err = newMatcher(&config.Config{ThesaurusPath: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}
