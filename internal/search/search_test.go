package search

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultMatcher(t *testing.T, cutoff float64) *Matcher {
	t.Helper()
	speller, err := DefaultSpeller()
	require.NoError(t, err)
	thesaurus, err := DefaultThesaurus()
	require.NoError(t, err)
	return NewMatcher(speller, thesaurus, cutoff)
}

func TestIsSubstring(t *testing.T) {
	assert.True(t, IsSubstring("UserName", "name"))
	assert.True(t, IsSubstring("id", "user_ID"))
	assert.True(t, IsSubstring("same", "SAME"))
	assert.False(t, IsSubstring("usr", "user"))
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"user", "usr", 6.0 / 7.0},
		{"Address", "adress", 12.0 / 13.0},
		{"kitten", "sitting", 8.0 / 13.0},
		{"abc", "xyz", 0},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, Ratio(tt.a, tt.b), Ratio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestSpeller(t *testing.T) {
	speller, err := DefaultSpeller()
	require.NoError(t, err)

	assert.True(t, speller.Known("address"))
	assert.True(t, speller.Known("Email"))
	assert.False(t, speller.Known("adress"))

	correction, ok := speller.Correction("adress")
	require.True(t, ok)
	assert.Equal(t, "address", correction)

	_, ok = speller.Correction("address")
	assert.False(t, ok, "known words are not corrected")

	_, ok = speller.Correction("qqqqqqqqqq")
	assert.False(t, ok)
}

func TestSpellerLeavesCommonWordsAlone(t *testing.T) {
	speller, err := DefaultSpeller()
	require.NoError(t, err)

	for _, word := range []string{"fame", "game", "dress", "weather", "kitchen", "us"} {
		assert.True(t, speller.Known(word), word)
		_, ok := speller.Correction(word)
		assert.False(t, ok, "%q is an ordinary word", word)
	}

	m := newDefaultMatcher(t, DefaultCutoff)
	assert.Equal(t, []string{}, m.Similar([]string{"name", "id", "title"}, []string{"fame"}))
}

func TestLoadSpeller(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(text, []byte("address 50\nemail 40\n"), 0o644))

	jsonPath := filepath.Join(dir, "en.json.gz")
	f, err := os.Create(jsonPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(`{"address": 50, "Email": 40}`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{text, jsonPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadSpeller(path)
			require.NoError(t, err)
			assert.True(t, s.Known("email"))
			assert.False(t, s.Known("fame"))

			correction, ok := s.Correction("adress")
			require.True(t, ok)
			assert.Equal(t, "address", correction)
		})
	}

	_, err = LoadSpeller(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	s, err := LoadSpeller("")
	require.NoError(t, err)
	assert.True(t, s.Known("fame"))
}

func TestNewSpellerFromJSONRejectsBadCounts(t *testing.T) {
	_, err := NewSpellerFromJSON(strings.NewReader(`{"word": 0}`))
	assert.Error(t, err)

	_, err = NewSpellerFromJSON(strings.NewReader(`["not", "a", "map"]`))
	assert.Error(t, err)
}

func TestNewSpellerRejectsBadCounts(t *testing.T) {
	_, err := NewSpeller(strings.NewReader("word many\n"))
	assert.Error(t, err)

	s, err := NewSpeller(strings.NewReader("# comment\n\nalpha\nbeta 3\n"))
	require.NoError(t, err)
	assert.True(t, s.Known("alpha"))
	assert.True(t, s.Known("beta"))
}

func TestThesaurus(t *testing.T) {
	th, err := NewThesaurus([]byte(`
- [user, exploiter]
- [User, Member]
- [first name, given_name]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"exploiter", "member", "user"}, th.Synonyms("user"))
	assert.Equal(t, []string{"first_name", "given_name"}, th.Synonyms("First Name"))
	assert.Nil(t, th.Synonyms("nothing"))

	_, err = NewThesaurus([]byte(`{not: [a list`))
	assert.Error(t, err)
}

func TestLoadWordNet(t *testing.T) {
	dir := t.TempDir()
	noun := "  1 This software and database is being provided to you, the LICENSEE, by\n" +
		"02084071 05 n 03 dog 0 domestic_dog 0 Canis_familiaris 0 001 @ 02083346 n 0000 | a member of the genus Canis\n" +
		"07752966 14 n 02 fame 0 celebrity 0 000 | the state or quality of being widely honored\n"
	adj := "01433493 00 a 02 long(a) 0 lengthy 0 000 | primarily temporal sense\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.noun"), []byte(noun), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.adj"), []byte(adj), 0o644))

	th, err := LoadThesaurus(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"canis_familiaris", "dog", "domestic_dog"}, th.Synonyms("dog"))
	assert.Equal(t, []string{"celebrity", "fame"}, th.Synonyms("Fame"))
	assert.Equal(t, []string{"lengthy", "long"}, th.Synonyms("long"))

	_, err = LoadWordNet(t.TempDir())
	assert.Error(t, err, "empty directory")

	bad := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bad, "data.verb"), []byte("00001740 29 v zz breathe 0\n"), 0o644))
	_, err = LoadWordNet(bad)
	assert.Error(t, err)
}

func TestDefaultThesaurusCoverage(t *testing.T) {
	th, err := DefaultThesaurus()
	require.NoError(t, err)

	assert.Contains(t, th.Synonyms("fame"), "renown")
	assert.Contains(t, th.Synonyms("null"), "none", "reserved YAML words stay strings")
	assert.Contains(t, th.Synonyms("true"), "correct")
	assert.Contains(t, th.Synonyms("quantity"), "qty")
}

func TestExpand(t *testing.T) {
	m := newDefaultMatcher(t, DefaultCutoff)

	words := m.Expand([]string{"adress", "telephone"})
	assert.Contains(t, words, "adress", "original words are kept")
	assert.Contains(t, words, "address", "spelling correction")
	assert.Contains(t, words, "phone", "synonym")
	assert.IsIncreasing(t, words)
}

func TestExpandWithoutOracles(t *testing.T) {
	m := NewMatcher(nil, nil, DefaultCutoff)
	assert.Equal(t, []string{"a", "b"}, m.Expand([]string{"b", "a", "b"}))
}

func TestSimilarFields(t *testing.T) {
	m := newDefaultMatcher(t, DefaultCutoff)
	candidates := []string{"user", "user_id", "Price", "zip_code", "colour", "unrelated"}

	got := m.Similar(candidates, []string{"usr"})
	assert.Contains(t, got, "user")
	assert.NotContains(t, got, "unrelated")

	got = m.Similar(candidates, []string{"color"})
	assert.Contains(t, got, "colour")

	got = m.Similar(candidates, []string{"cost"})
	assert.Equal(t, []string{"Price"}, got, "matched through a synonym, case-insensitively")

	assert.Equal(t, []string{}, m.Similar(nil, []string{"user"}))
}

func TestSimilarFieldsCutoffMonotonic(t *testing.T) {
	candidates := []string{"user", "username", "users", "email", "mail", "address", "adder", "city", "capacity"}
	requested := []string{"usr", "emial", "adres", "cty"}

	var previous []string
	for _, cutoff := range []float64{1, 0.9, 0.8, 0.7, 0.5, 0.3, 0} {
		got := newDefaultMatcher(t, cutoff).Similar(candidates, requested)
		for _, field := range previous {
			assert.Contains(t, got, field, "lowering cutoff to %v dropped %q", cutoff, field)
		}
		previous = got
	}
	assert.ElementsMatch(t, candidates, previous, "cutoff 0 accepts everything")
}
