package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognicore/cocoscore/internal/metrics"
	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoaderAllEmpty(t *testing.T) {
	comp, err := (&Loader{}).Load()
	if err != nil {
		t.Fatalf("Empty loader should succeed: %v", err)
	}
	if comp.Scores == nil {
		t.Error("Should have a score index (empty)")
	}
	if comp.Matches != nil {
		t.Error("Matches should be nil without a match file")
	}
	if comp.Taxonomy != nil {
		t.Error("Taxonomy should be nil without a taxonomy file")
	}

	in := comp.Input()
	if in.Matches != nil || in.Taxonomy != nil {
		t.Error("Input should mirror the components")
	}
}

func TestLoaderAllFiles(t *testing.T) {
	dir := t.TempDir()
	scores := writeFile(t, dir, "scores.tsv", "A\tB\t1111\t1\t1\t0.9\nA\tC\t1111\t1\t2\t0.5\n")
	matches := writeFile(t, dir, "matches.tsv", "1111\t1\t1\tA\t9606\n1111\t1\t1\tB\t9606\n")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("A\t9606\nB\t-26\n")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	taxonomy := writeFile(t, dir, "entities.tsv.gz", buf.String())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	comp, err := (&Loader{
		ScoresPath:   scores,
		MatchesPath:  matches,
		TaxonomyPath: taxonomy,
		Metrics:      m,
	}).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got, ok := comp.Scores.Lookup(pmi.NewPair("A", "B"), comp.Matches[0].Location); !ok || got != 0.9 {
		t.Errorf("expected score 0.9 for A|B, got %v (%v)", got, ok)
	}
	if len(comp.Matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(comp.Matches))
	}
	if typ, _ := comp.Taxonomy.Type("B"); typ != "-26" {
		t.Errorf("expected B to be -26, got %q", typ)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	loaded := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "cocoscore_records_loaded_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "kind" {
					loaded[lp.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if loaded["scores"] != 2 || loaded["matches"] != 2 || loaded["taxonomy"] != 2 {
		t.Errorf("unexpected loaded counters: %v", loaded)
	}
}

func TestLoaderNonExistentScores(t *testing.T) {
	_, err := (&Loader{ScoresPath: "/nonexistent/scores.tsv"}).Load()
	if err == nil {
		t.Error("Should fail on missing score file")
	}
}

func TestLoaderMalformedMatches(t *testing.T) {
	path := writeFile(t, t.TempDir(), "matches.tsv", "1111\t1\n")
	_, err := (&Loader{MatchesPath: path}).Load()
	if err == nil {
		t.Fatal("Should fail on malformed match file")
	}
	if !errors.Is(err, internalerr.ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestLoaderNonExistentTaxonomy(t *testing.T) {
	_, err := (&Loader{TaxonomyPath: "/nonexistent/entities.tsv.gz"}).Load()
	if err == nil {
		t.Error("Should fail on missing taxonomy")
	}
}
