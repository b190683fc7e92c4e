package search

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sajari/fuzzy"
)

//go:embed data/words.txt
var defaultDictionary []byte

// SpellChecker decides whether a word is known and proposes its most
// probable correction.
type SpellChecker interface {
	Known(word string) bool
	Correction(word string) (string, bool)
}

// Speller is a SpellChecker backed by a word frequency dictionary
type Speller struct {
	model *fuzzy.Model
	known map[string]struct{}
}

// NewSpeller reads a dictionary of "<word> <count>" lines. Blank lines and
// lines starting with '#' are ignored; a missing count means 1.
func NewSpeller(r io.Reader) (*Speller, error) {
	s := newSpeller()

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		word := strings.ToLower(parts[0])
		count := 1
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("dictionary line %d: invalid count %q", lineNo, parts[1])
			}
			count = n
		}

		s.add(word, count)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	return s, nil
}

// NewSpellerFromJSON reads a frequency dictionary encoded as a JSON object
// of word to count, the layout pyspellchecker ships its language files in.
func NewSpellerFromJSON(r io.Reader) (*Speller, error) {
	var frequencies map[string]int
	if err := json.NewDecoder(r).Decode(&frequencies); err != nil {
		return nil, fmt.Errorf("failed to decode dictionary: %w", err)
	}

	s := newSpeller()
	for word, count := range frequencies {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if count < 1 {
			return nil, fmt.Errorf("dictionary word %q: invalid count %d", word, count)
		}
		s.add(word, count)
	}
	return s, nil
}

func newSpeller() *Speller {
	model := fuzzy.NewModel()
	model.SetThreshold(1)
	model.SetDepth(2)
	return &Speller{model: model, known: make(map[string]struct{})}
}

func (s *Speller) add(word string, count int) {
	s.known[word] = struct{}{}
	// The model treats counts at or below its threshold as unknown words
	if count < 2 {
		count = 2
	}
	s.model.SetCount(word, count, true)
}

// DefaultSpeller uses the embedded English dictionary
func DefaultSpeller() (*Speller, error) {
	return NewSpeller(bytes.NewReader(defaultDictionary))
}

// LoadSpeller reads the dictionary at path, or the embedded one when path is
// empty. A ".gz" suffix is decompressed first; ".json" files are read with
// NewSpellerFromJSON and anything else with NewSpeller.
func LoadSpeller(path string) (*Speller, error) {
	if path == "" {
		return DefaultSpeller()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.EqualFold(filepath.Ext(name), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress dictionary: %w", err)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	if strings.EqualFold(filepath.Ext(name), ".json") {
		return NewSpellerFromJSON(r)
	}
	return NewSpeller(r)
}

func (s *Speller) Known(word string) bool {
	_, ok := s.known[strings.ToLower(word)]
	return ok
}

// Correction returns the most probable dictionary word for an unknown word.
// Known words and words with no candidate yield false.
func (s *Speller) Correction(word string) (string, bool) {
	word = strings.ToLower(word)
	if word == "" || s.Known(word) {
		return "", false
	}
	correction := s.model.SpellCheck(word)
	if correction == "" || correction == word {
		return "", false
	}
	return correction, true
}
