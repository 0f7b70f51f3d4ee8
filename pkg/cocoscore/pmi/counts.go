package pmi

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Pair represents an unordered entity pair stored in canonical order (A < B)
type Pair struct {
	A, B string
}

// NewPair returns the canonical pair for two entity identifiers
func NewPair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Contains reports whether e is one of the pair's members
func (p Pair) Contains(e string) bool {
	return p.A == e || p.B == e
}

// Other returns the partner of e, or "" if e is not in the pair
func (p Pair) Other(e string) string {
	switch e {
	case p.A:
		return p.B
	case p.B:
		return p.A
	}
	return ""
}

func (p Pair) String() string {
	return p.A + "|" + p.B
}

// Less orders pairs by A, then B
func (p Pair) Less(q Pair) bool {
	if p.A != q.A {
		return p.A < q.A
	}
	return p.B < q.B
}

type keyKind uint8

const (
	kindGlobal keyKind = iota
	kindEntity
	kindPair
)

// Key addresses one WeightedCounts entry: a pair, a single entity, or the
// global total. The zero Key is the global key.
type Key struct {
	kind keyKind
	a, b string
}

// PairKey returns the key of a pair's count
func PairKey(p Pair) Key {
	p = NewPair(p.A, p.B)
	return Key{kind: kindPair, a: p.A, b: p.B}
}

// EntityKey returns the key of an entity's marginal count
func EntityKey(e string) Key {
	return Key{kind: kindEntity, a: e}
}

// GlobalKey returns the key of the global count
func GlobalKey() Key {
	return Key{kind: kindGlobal}
}

func (k Key) IsPair() bool   { return k.kind == kindPair }
func (k Key) IsEntity() bool { return k.kind == kindEntity }
func (k Key) IsGlobal() bool { return k.kind == kindGlobal }

// Pair returns the pair behind a pair key
func (k Key) Pair() (Pair, bool) {
	if k.kind != kindPair {
		return Pair{}, false
	}
	return Pair{A: k.a, B: k.b}, true
}

// Entity returns the entity behind an entity key
func (k Key) Entity() (string, bool) {
	if k.kind != kindEntity {
		return "", false
	}
	return k.a, true
}

func (k Key) String() string {
	switch k.kind {
	case kindPair:
		return k.a + "|" + k.b
	case kindEntity:
		return k.a
	}
	return "ALL"
}

// WeightedCounts maintains aggregated evidence mass per pair, per entity and
// in total. AddPair is the only mutator, so the global count always equals the
// sum of pair counts and every marginal equals the sum over its pairs.
type WeightedCounts struct {
	counts map[Key]float64
	pairs  int
}

// NewWeightedCounts creates an empty container
func NewWeightedCounts() *WeightedCounts {
	return &WeightedCounts{counts: make(map[Key]float64)}
}

// AddPair adds weight to a pair, to both of its members and to the global count
func (c *WeightedCounts) AddPair(p Pair, weight float64) {
	p = NewPair(p.A, p.B)
	pk := PairKey(p)
	if _, ok := c.counts[pk]; !ok {
		c.pairs++
	}
	c.counts[pk] += weight
	c.counts[EntityKey(p.A)] += weight
	c.counts[EntityKey(p.B)] += weight
	c.counts[GlobalKey()] += weight
}

// Clone returns an independent copy
func (c *WeightedCounts) Clone() *WeightedCounts {
	out := &WeightedCounts{counts: make(map[Key]float64, len(c.counts)), pairs: c.pairs}
	for k, v := range c.counts {
		out.counts[k] = v
	}
	return out
}

// Get returns the count stored under k
func (c *WeightedCounts) Get(k Key) float64 {
	return c.counts[k]
}

// Has reports whether k has been recorded
func (c *WeightedCounts) Has(k Key) bool {
	_, ok := c.counts[k]
	return ok
}

// PairCount returns the weighted count of a pair in either order
func (c *WeightedCounts) PairCount(a, b string) float64 {
	return c.counts[PairKey(NewPair(a, b))]
}

// EntityCount returns the marginal count of an entity
func (c *WeightedCounts) EntityCount(e string) float64 {
	return c.counts[EntityKey(e)]
}

// Total returns the global count
func (c *WeightedCounts) Total() float64 {
	return c.counts[GlobalKey()]
}

// UniquePairs returns the number of recorded pairs
func (c *WeightedCounts) UniquePairs() int {
	return c.pairs
}

// UniqueEntities returns the number of entities with a marginal count
func (c *WeightedCounts) UniqueEntities() int {
	n := len(c.counts) - c.pairs
	if _, ok := c.counts[GlobalKey()]; ok {
		n--
	}
	return n
}

// Pairs returns all recorded pairs in canonical order
func (c *WeightedCounts) Pairs() []Pair {
	out := make([]Pair, 0, c.pairs)
	for k := range c.counts {
		if p, ok := k.Pair(); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Entities returns all entities with a marginal count, sorted
func (c *WeightedCounts) Entities() []string {
	out := make([]string, 0, c.UniqueEntities())
	for k := range c.counts {
		if e, ok := k.Entity(); ok {
			out = append(out, e)
		}
	}
	sort.Strings(out)
	return out
}

// Entry is a single key/count row
type Entry struct {
	Key   Key
	Count float64
}

// Entries lists the global count first, then entities, then pairs
func (c *WeightedCounts) Entries() []Entry {
	out := make([]Entry, 0, len(c.counts))
	if c.Has(GlobalKey()) {
		out = append(out, Entry{Key: GlobalKey(), Count: c.Total()})
	}
	for _, e := range c.Entities() {
		k := EntityKey(e)
		out = append(out, Entry{Key: k, Count: c.counts[k]})
	}
	for _, p := range c.Pairs() {
		k := PairKey(p)
		out = append(out, Entry{Key: k, Count: c.counts[k]})
	}
	return out
}

// WriteTSV writes one row per entry: kind, entity1, entity2, count
func (c *WeightedCounts) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range c.Entries() {
		var kind, a, b string
		switch {
		case e.Key.IsGlobal():
			kind = "global"
		case e.Key.IsEntity():
			kind = "entity"
			a, _ = e.Key.Entity()
		default:
			kind = "pair"
			p, _ := e.Key.Pair()
			a, b = p.A, p.B
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\n", kind, a, b, strconv.FormatFloat(e.Count, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
