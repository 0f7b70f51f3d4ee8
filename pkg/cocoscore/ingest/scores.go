package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
)

// Location identifies where a co-mention was observed. Paragraph and Sentence
// are 1-based; zero means the granularity is unknown.
type Location struct {
	Document  string
	Paragraph int
	Sentence  int
}

// HasSentence reports whether the location pins a single sentence
func (l Location) HasSentence() bool {
	return l.Paragraph > 0 && l.Sentence > 0
}

// HasParagraph reports whether the location pins at least a paragraph
func (l Location) HasParagraph() bool {
	return l.Paragraph > 0
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Document, l.Paragraph, l.Sentence)
}

// SentenceScoreIndex maps each pair to its scored sentence locations
type SentenceScoreIndex map[pmi.Pair]map[Location]float64

// Lookup returns the score of a pair at a location
func (idx SentenceScoreIndex) Lookup(p pmi.Pair, loc Location) (float64, bool) {
	locs, ok := idx[p]
	if !ok {
		return 0, false
	}
	s, ok := locs[loc]
	return s, ok
}

// Len returns the number of scored (pair, location) entries
func (idx SentenceScoreIndex) Len() int {
	n := 0
	for _, locs := range idx {
		n += len(locs)
	}
	return n
}

func (idx SentenceScoreIndex) add(p pmi.Pair, loc Location, score float64) {
	locs, ok := idx[p]
	if !ok {
		locs = make(map[Location]float64)
		idx[p] = locs
	}
	if prev, seen := locs[loc]; !seen || score > prev {
		locs[loc] = score
	}
}

const scoreColumns = 6

// LoadScoreFile loads a sentence score file
// Format: entity1, entity2, document_id, paragraph, sentence, score (tab-separated)
func LoadScoreFile(path string) (SentenceScoreIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open score file: %w", err)
	}
	defer f.Close()
	return ParseScores(f, path)
}

// ParseScores reads sentence scores from r; name is used in error messages.
// A location listed twice for the same pair keeps its highest score.
func ParseScores(r io.Reader, name string) (SentenceScoreIndex, error) {
	idx := make(SentenceScoreIndex)
	err := scanRecords(r, name, func(line int, fields []string) error {
		if len(fields) != scoreColumns {
			return internalerr.Formatf(name, line, "expected %d columns, got %d", scoreColumns, len(fields))
		}
		e1, e2 := fields[0], fields[1]
		if e1 == "" || e2 == "" {
			return internalerr.Formatf(name, line, "empty entity identifier")
		}
		if e1 == e2 {
			return internalerr.Formatf(name, line, "self co-mention of %q", e1)
		}
		if fields[2] == "" {
			return internalerr.Formatf(name, line, "empty document id")
		}
		paragraph, err := positiveIndex(fields[3])
		if err != nil {
			return &internalerr.FormatError{Path: name, Line: line, Msg: "paragraph index", Err: err}
		}
		sentence, err := positiveIndex(fields[4])
		if err != nil {
			return &internalerr.FormatError{Path: name, Line: line, Msg: "sentence index", Err: err}
		}
		score, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return &internalerr.FormatError{Path: name, Line: line, Msg: "score", Err: err}
		}
		if !(score >= 0 && score <= 1) {
			return internalerr.Formatf(name, line, "score %v outside [0,1]", score)
		}

		loc := Location{Document: fields[2], Paragraph: paragraph, Sentence: sentence}
		idx.add(pmi.NewPair(e1, e2), loc, score)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func positiveIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("index %d is not 1-based", n)
	}
	return n, nil
}

// scanRecords calls fn for every non-blank, non-comment line split on tabs.
func scanRecords(r io.Reader, name string, fn func(line int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &internalerr.FormatError{Path: name, Line: line + 1, Msg: "read", Err: err}
	}
	return nil
}
