package ingest

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
)

// Match is a single tagged entity mention. It carries no confidence; its
// presence is the only signal.
type Match struct {
	Location
	EntityID   string
	EntityType string
}

const minMatchColumns = 4

// LoadMatchFile loads a tagger match file
// Format: document_id, paragraph, sentence, entity_id, entity_type, ... (tab-separated)
//
// Empty, "0" or "-" paragraph/sentence columns mark mentions known only at
// document (or paragraph) level. Columns after entity_type are ignored.
func LoadMatchFile(path string) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open match file: %w", err)
	}
	defer f.Close()
	return ParseMatches(f, path)
}

// ParseMatches reads matches from r; name is used in error messages. The
// result is never nil, so an empty file still counts as a match source.
func ParseMatches(r io.Reader, name string) ([]Match, error) {
	matches := []Match{}
	err := scanRecords(r, name, func(line int, fields []string) error {
		if len(fields) < minMatchColumns {
			return internalerr.Formatf(name, line, "expected at least %d columns, got %d", minMatchColumns, len(fields))
		}
		if fields[0] == "" {
			return internalerr.Formatf(name, line, "empty document id")
		}
		paragraph, err := optionalIndex(fields[1])
		if err != nil {
			return &internalerr.FormatError{Path: name, Line: line, Msg: "paragraph index", Err: err}
		}
		sentence, err := optionalIndex(fields[2])
		if err != nil {
			return &internalerr.FormatError{Path: name, Line: line, Msg: "sentence index", Err: err}
		}
		if sentence > 0 && paragraph == 0 {
			return internalerr.Formatf(name, line, "sentence %d without paragraph", sentence)
		}
		if fields[3] == "" {
			return internalerr.Formatf(name, line, "empty entity identifier")
		}

		m := Match{
			Location: Location{Document: fields[0], Paragraph: paragraph, Sentence: sentence},
			EntityID: fields[3],
		}
		if len(fields) > minMatchColumns {
			m.EntityType = fields[4]
		}
		matches = append(matches, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func optionalIndex(s string) (int, error) {
	switch s {
	case "", "-", "0":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative index %d", n)
	}
	return n, nil
}
