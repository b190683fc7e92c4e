package search

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/thesaurus.yaml
var defaultThesaurus []byte

// SynonymSource returns words related to a given word
type SynonymSource interface {
	Synonyms(word string) []string
}

// Thesaurus holds synonym sets. A word belonging to several sets has every
// lemma of all of them as synonyms.
type Thesaurus struct {
	synsets [][]string
	index   map[string][]int
}

// NewThesaurus parses a YAML list of synonym sets
func NewThesaurus(data []byte) (*Thesaurus, error) {
	var synsets [][]string
	if err := yaml.Unmarshal(data, &synsets); err != nil {
		return nil, fmt.Errorf("failed to parse thesaurus: %w", err)
	}
	return newThesaurus(synsets), nil
}

func newThesaurus(synsets [][]string) *Thesaurus {
	t := &Thesaurus{index: make(map[string][]int)}
	for _, set := range synsets {
		lemmas := make([]string, 0, len(set))
		for _, lemma := range set {
			lemma = normalizeLemma(lemma)
			if lemma != "" {
				lemmas = append(lemmas, lemma)
			}
		}
		if len(lemmas) == 0 {
			continue
		}
		id := len(t.synsets)
		t.synsets = append(t.synsets, lemmas)
		for _, lemma := range lemmas {
			t.index[lemma] = append(t.index[lemma], id)
		}
	}
	return t
}

// DefaultThesaurus uses the embedded synonym sets
func DefaultThesaurus() (*Thesaurus, error) {
	return NewThesaurus(defaultThesaurus)
}

// LoadThesaurus reads the thesaurus at path, or the embedded one when path is
// empty. A directory is read as a WordNet database (see LoadWordNet).
func LoadThesaurus(path string) (*Thesaurus, error) {
	if path == "" {
		return DefaultThesaurus()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thesaurus: %w", err)
	}
	if info.IsDir() {
		return LoadWordNet(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thesaurus: %w", err)
	}
	return NewThesaurus(data)
}

// Synonyms returns the sorted lemmas sharing a set with word, including the
// word itself when it is listed. Unlisted words have no synonyms.
func (t *Thesaurus) Synonyms(word string) []string {
	ids := t.index[normalizeLemma(word)]
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	for _, id := range ids {
		for _, lemma := range t.synsets[id] {
			seen[lemma] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for lemma := range seen {
		out = append(out, lemma)
	}
	sort.Strings(out)
	return out
}

// Multi-word lemmas are stored with underscores.
func normalizeLemma(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

var wordNetDataFiles = []string{"data.noun", "data.verb", "data.adj", "data.adv"}

// LoadWordNet builds a thesaurus from the data.* files of a WordNet database
// directory. Missing parts of speech are skipped; at least one must exist.
func LoadWordNet(dir string) (*Thesaurus, error) {
	var synsets [][]string
	loaded := 0
	for _, name := range wordNetDataFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		sets, err := parseWordNetData(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		synsets = append(synsets, sets...)
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no WordNet data files in %s", dir)
	}
	return newThesaurus(synsets), nil
}

// parseWordNetData reads synset lines of the form
// "offset lex_filenum ss_type w_cnt word lex_id [word lex_id...] ...",
// where w_cnt is two hex digits. License lines start with spaces.
func parseWordNetData(r io.Reader) ([][]string, error) {
	var synsets [][]string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: truncated synset", lineNo)
		}
		count, err := strconv.ParseInt(fields[3], 16, 32)
		if err != nil || count < 1 || len(fields) < 4+2*int(count) {
			return nil, fmt.Errorf("line %d: invalid word count %q", lineNo, fields[3])
		}

		lemmas := make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			lemma := fields[4+2*i]
			// Adjectives may carry a syntactic marker such as "(a)"
			if open := strings.IndexByte(lemma, '('); open > 0 {
				lemma = lemma[:open]
			}
			lemmas = append(lemmas, lemma)
		}
		synsets = append(synsets, lemmas)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return synsets, nil
}
