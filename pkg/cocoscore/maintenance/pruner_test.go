package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cognicore/cocoscore/pkg/cocoscore/internalerr"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store/memstore"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store/storetest"
)

var base = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// seed stores runs r0 (oldest) .. r{n-1} (newest), one hour apart.
func seed(t *testing.T, st store.Store, n int, pipeline string) {
	t.Helper()
	for i := 0; i < n; i++ {
		run := storetest.SampleRun(pipeline+string(rune('0'+i)), base.Add(time.Duration(i)*time.Hour))
		run.Pipeline = pipeline
		if err := st.SaveRun(context.Background(), run); err != nil {
			t.Fatal(err)
		}
	}
}

func remaining(t *testing.T, st store.Store) []string {
	t.Helper()
	runs, err := st.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPruneKeepsNewest(t *testing.T) {
	st := memstore.New()
	seed(t, st, 4, "general")

	p := &Pruner{Store: st, Keep: 2}
	res, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if res.Examined != 4 || res.Errors != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if !equal(res.Deleted, []string{"general1", "general0"}) {
		t.Errorf("deleted %v", res.Deleted)
	}
	if got := remaining(t, st); !equal(got, []string{"general3", "general2"}) {
		t.Errorf("remaining %v", got)
	}
}

func TestPruneMaxAge(t *testing.T) {
	st := memstore.New()
	seed(t, st, 4, "general")

	p := &Pruner{
		Store:  st,
		MaxAge: 90 * time.Minute,
		Now:    func() time.Time { return base.Add(3 * time.Hour) },
	}
	res, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if !equal(res.Deleted, []string{"general1", "general0"}) {
		t.Errorf("deleted %v", res.Deleted)
	}
}

func TestPruneKeepAndMaxAge(t *testing.T) {
	st := memstore.New()
	seed(t, st, 4, "general")

	// Age alone would keep three runs, the count limit trims to one
	p := &Pruner{
		Store:  st,
		Keep:   1,
		MaxAge: 150 * time.Minute,
		Now:    func() time.Time { return base.Add(3 * time.Hour) },
	}
	if _, err := p.Prune(context.Background()); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if got := remaining(t, st); !equal(got, []string{"general3"}) {
		t.Errorf("remaining %v", got)
	}
}

func TestPrunePipelineFilter(t *testing.T) {
	st := memstore.New()
	seed(t, st, 3, "general")
	seed(t, st, 3, "disease")

	p := &Pruner{Store: st, Keep: 1, Pipeline: "disease"}
	res, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if res.Examined != 3 || len(res.Deleted) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := len(remaining(t, st)); got != 4 {
		t.Errorf("expected 4 runs left, got %d", got)
	}
}

func TestPruneInvalidConfiguration(t *testing.T) {
	cases := []*Pruner{
		{},
		{Store: memstore.New()},
		{Store: memstore.New(), Keep: -1},
		{Store: memstore.New(), MaxAge: -time.Hour},
	}
	for i, p := range cases {
		if _, err := p.Prune(context.Background()); !errors.Is(err, internalerr.ErrConfiguration) {
			t.Errorf("case %d: expected configuration error, got %v", i, err)
		}
	}
}

type failingStore struct {
	*memstore.Store
}

func (f failingStore) DeleteRun(ctx context.Context, id string) error {
	if id == "general0" {
		return errors.New("disk full")
	}
	return f.Store.DeleteRun(ctx, id)
}

func TestPruneCountsErrors(t *testing.T) {
	st := failingStore{memstore.New()}
	seed(t, st, 3, "general")

	p := &Pruner{Store: st, Keep: 1}
	res, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if res.Errors != 1 {
		t.Errorf("expected 1 error, got %d", res.Errors)
	}
	if !equal(res.Deleted, []string{"general1"}) {
		t.Errorf("deleted %v", res.Deleted)
	}
}
