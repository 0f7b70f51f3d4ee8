package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/gzip"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
)

// Taxonomy maps entity identifiers to their canonical type
type Taxonomy struct {
	types map[string]string // entity id → type
}

// NewTaxonomy creates an empty taxonomy
func NewTaxonomy() *Taxonomy {
	return &Taxonomy{
		types: make(map[string]string),
	}
}

// AddEntity records the canonical type of an entity
func (t *Taxonomy) AddEntity(id, entityType string) {
	t.types[id] = entityType
}

// Type returns the canonical type of an entity
func (t *Taxonomy) Type(id string) (string, bool) {
	if t == nil {
		return "", false
	}
	typ, ok := t.types[id]
	return typ, ok
}

// Len returns the number of known entities
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.types)
}

// Types returns the distinct entity types, sorted
func (t *Taxonomy) Types() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, typ := range t.types {
		seen[typ] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for typ := range seen {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Resolve returns a copy of matches with entity types taken from the
// taxonomy. Entities the taxonomy does not know keep their own type.
// resolved counts the matches whose type came from the taxonomy.
func (t *Taxonomy) Resolve(matches []Match) (out []Match, resolved int) {
	out = make([]Match, len(matches))
	for i, m := range matches {
		if typ, ok := t.Type(m.EntityID); ok {
			m.EntityType = typ
			resolved++
		}
		out[i] = m
	}
	return out, resolved
}

var gzipMagic = []byte{0x1f, 0x8b}

// LoadTaxonomy loads an entity taxonomy file
// Format: entity_id, type, ... (tab-separated, usually gzip-compressed)
func LoadTaxonomy(path string) (*Taxonomy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &internalerr.FormatError{Path: path, Msg: "gzip header", Err: err}
		}
		defer zr.Close()
		r = zr
	}
	return ParseTaxonomy(r, path)
}

// ParseTaxonomy reads an uncompressed taxonomy from r.
// An entity listed twice with different types is a format error.
func ParseTaxonomy(r io.Reader, name string) (*Taxonomy, error) {
	tax := NewTaxonomy()
	err := scanRecords(r, name, func(line int, fields []string) error {
		if len(fields) < 2 {
			return internalerr.Formatf(name, line, "expected at least 2 columns, got %d", len(fields))
		}
		id, typ := fields[0], fields[1]
		if id == "" || typ == "" {
			return internalerr.Formatf(name, line, "empty entity identifier or type")
		}
		if prev, ok := tax.types[id]; ok && prev != typ {
			return internalerr.Formatf(name, line, "entity %q has conflicting types %q and %q", id, prev, typ)
		}
		tax.AddEntity(id, typ)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tax, nil
}
