package merger_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/buildcatalog/internal/building"
	"github.com/MrWong99/buildcatalog/internal/catalog"
	"github.com/MrWong99/buildcatalog/internal/merger"
	"github.com/MrWong99/buildcatalog/internal/observe"
	"github.com/MrWong99/buildcatalog/internal/seed"
)

const farmCatalogJSON = `{
  "buildings": [
    {
      "id": "farm",
      "name": "Farm",
      "type": "production",
      "cost": {"scrap": 50},
      "description": "Grows food.",
      "construction_time": 2
    }
  ]
}
`

func def(id string, requires ...string) building.Definition {
	d := building.Definition{
		ID:               id,
		Name:             id,
		Type:             building.TypeMilitary,
		ConstructionTime: 3,
	}
	if len(requires) > 0 {
		d.Requirements = &building.Requirements{Buildings: requires}
	}
	return d
}

func noopMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// writeCatalog writes doc to a fresh temp file and returns its path.
func writeCatalog(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buildings.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRun_AppendsAndSaves(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, farmCatalogJSON)
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	res, err := m.Run(context.Background(), merger.Request{
		Source:    path,
		Additions: []building.Definition{def("barracks"), def("workshop")},
	})
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	if res.Added != 2 || res.Total != 3 {
		t.Errorf("Result: expected 2 added and 3 total, got %+v", res)
	}
	if got, want := res.String(), "Added 2 buildings. Total now: 3"; got != want {
		t.Errorf("String: expected %q, got %q", want, got)
	}

	saved, err := catalog.NewFileStore().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load saved catalog: %v", err)
	}
	want := []string{"farm", "barracks", "workshop"}
	got := saved.IDs()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("saved ids: expected %v, got %v", want, got)
	}
	if _, err := os.Stat(path + ".lock"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file left behind: %v", err)
	}
}

func TestRun_SeparateDestination(t *testing.T) {
	t.Parallel()

	src := writeCatalog(t, farmCatalogJSON)
	dst := filepath.Join(t.TempDir(), "merged.yaml")
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	if _, err := m.Run(context.Background(), merger.Request{
		Source:      src,
		Destination: dst,
		Additions:   []building.Definition{def("barracks")},
	}); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("ReadFile source: %v", err)
	}
	if string(data) != farmCatalogJSON {
		t.Error("source catalog was modified")
	}
	merged, err := catalog.NewFileStore().Load(context.Background(), dst)
	if err != nil {
		t.Fatalf("Load destination: %v", err)
	}
	if merged.Len() != 2 {
		t.Errorf("destination: expected 2 records, got %d", merged.Len())
	}
}

func TestRun_DuplicateLeavesDestinationUntouched(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, farmCatalogJSON)
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	_, err := m.Run(context.Background(), merger.Request{
		Source:    path,
		Additions: []building.Definition{def("barracks"), def("farm")},
	})
	if !errors.Is(err, catalog.ErrDuplicateID) {
		t.Fatalf("Run: expected ErrDuplicateID, got %v", err)
	}
	var dupErr *catalog.DuplicateIDError
	if !errors.As(err, &dupErr) || fmt.Sprint(dupErr.IDs) != "[farm]" {
		t.Errorf("DuplicateIDError: expected ids [farm], got %v", dupErr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != farmCatalogJSON {
		t.Errorf("destination changed after failed run:\n%s", data)
	}
}

func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "missing.json")
	dst := filepath.Join(dir, "out.json")
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	_, err := m.Run(context.Background(), merger.Request{
		Source:      src,
		Destination: dst,
		Additions:   []building.Definition{def("barracks")},
	})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Run: expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("destination was written: %v", err)
	}
}

func TestRun_MissingSourceDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nodir")
	src := filepath.Join(dir, "buildings.json")
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	_, err := m.Run(context.Background(), merger.Request{
		Source:    src,
		Additions: []building.Definition{def("barracks")},
	})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Run: expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("source directory was created: %v", err)
	}
}

func TestRun_BrokenSourceTakesNoLock(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, `{"buildings": [`)
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	_, err := m.Run(context.Background(), merger.Request{Source: path, Additions: []building.Definition{def("barracks")}})
	if !errors.Is(err, catalog.ErrParse) {
		t.Fatalf("Run: expected ErrParse, got %v", err)
	}
	if _, err := os.Stat(path + ".lock"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file was created: %v", err)
	}
}

// racingStore saves a newer document just before the lock is granted, as a
// concurrent run would.
type racingStore struct {
	*catalog.MemStore
	newer []byte
}

func (s racingStore) Lock(ctx context.Context, name string) (func() error, error) {
	s.Put(name, s.newer)
	return s.MemStore.Lock(ctx, name)
}

func TestRun_InPlaceReloadsUnderLock(t *testing.T) {
	t.Parallel()

	store := racingStore{
		MemStore: catalog.NewMemStore(),
		newer:    []byte(`{"buildings": [{"id": "farm", "name": "Farm", "type": "production", "construction_time": 2}, {"id": "mill", "name": "Mill", "type": "production", "construction_time": 2}]}`),
	}
	store.Put("main", []byte(farmCatalogJSON))
	m := merger.New(store, merger.WithMetrics(noopMetrics(t)))

	res, err := m.Run(context.Background(), merger.Request{Source: "main", Additions: []building.Definition{def("barracks")}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 3 {
		t.Errorf("Total: expected 3 (mill kept), got %d", res.Total)
	}
	saved, err := store.Load(context.Background(), "main")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := saved.IDs(); fmt.Sprint(got) != "[farm mill barracks]" {
		t.Errorf("saved ids: got %v", got)
	}
}

func TestRun_InvalidAdditions(t *testing.T) {
	t.Parallel()

	store := catalog.NewMemStore()
	store.Put("main", []byte(farmCatalogJSON))
	m := merger.New(store, merger.WithMetrics(noopMetrics(t)), merger.WithBackend("memory"))

	broken := def("barracks")
	broken.ConstructionTime = 0
	_, err := m.Run(context.Background(), merger.Request{
		Source:    "main",
		Additions: []building.Definition{def("workshop"), broken},
	})
	if !errors.Is(err, catalog.ErrSchema) {
		t.Fatalf("Run: expected ErrSchema, got %v", err)
	}
	if want := `additions[1] "barracks"`; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("error %q does not name %s", err, want)
	}
	doc, _ := store.Document("main")
	if string(doc) != farmCatalogJSON {
		t.Error("catalog changed after failed run")
	}
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	path := writeCatalog(t, farmCatalogJSON)
	m := merger.New(catalog.NewFileStore(), merger.WithMetrics(noopMetrics(t)))

	res, err := m.Run(context.Background(), merger.Request{
		Source:    path,
		Additions: []building.Definition{def("barracks")},
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	if !res.DryRun || res.Total != 2 {
		t.Errorf("Result: expected dry run with total 2, got %+v", res)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != farmCatalogJSON {
		t.Error("dry run wrote the catalog")
	}
}

func TestRun_Locked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := catalog.NewMemStore()
	store.Put("main", []byte(farmCatalogJSON))
	unlock, err := store.Lock(ctx, "main")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	m := merger.New(store, merger.WithMetrics(noopMetrics(t)))
	if _, err := m.Run(ctx, merger.Request{Source: "main", Additions: []building.Definition{def("barracks")}}); !errors.Is(err, catalog.ErrLocked) {
		t.Fatalf("Run while locked: expected ErrLocked, got %v", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := m.Run(ctx, merger.Request{Source: "main", Additions: []building.Definition{def("barracks")}}); err != nil {
		t.Fatalf("Run after unlock: %v", err)
	}
	// The run must release its own lock.
	if _, err := m.Run(ctx, merger.Request{Source: "main", Additions: []building.Definition{def("workshop")}}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

// failingSaveStore loads from memory and refuses every save.
type failingSaveStore struct {
	*catalog.MemStore
}

func (s failingSaveStore) Save(_ context.Context, name string, _ *catalog.Catalog) error {
	return fmt.Errorf("catalog: save %q: %w: disk full", name, catalog.ErrWrite)
}

func TestRun_WriteError(t *testing.T) {
	t.Parallel()

	store := failingSaveStore{MemStore: catalog.NewMemStore()}
	store.Put("main", []byte(farmCatalogJSON))
	m := merger.New(store, merger.WithMetrics(noopMetrics(t)))

	_, err := m.Run(context.Background(), merger.Request{Source: "main", Additions: []building.Definition{def("barracks")}})
	if !errors.Is(err, catalog.ErrWrite) {
		t.Fatalf("Run: expected ErrWrite, got %v", err)
	}
	// The lock is released even though the run failed.
	unlock, err := store.Lock(context.Background(), "main")
	if err != nil {
		t.Fatalf("Lock after failed run: %v", err)
	}
	_ = unlock()
}

func TestRun_DanglingRequirements(t *testing.T) {
	t.Parallel()

	store := catalog.NewMemStore()
	store.Put("main", []byte(farmCatalogJSON))
	m := merger.New(store, merger.WithMetrics(noopMetrics(t)))

	res, err := m.Run(context.Background(), merger.Request{
		Source:    "main",
		Additions: []building.Definition{def("barracks", "farm"), def("armory", "barrack")},
	})
	if err != nil {
		t.Fatalf("Run: dangling requirements must not fail the run: %v", err)
	}
	if len(res.Dangling) != 1 {
		t.Fatalf("Dangling: expected 1 reference, got %+v", res.Dangling)
	}
	ref := res.Dangling[0]
	if ref.From != "armory" || ref.Missing != "barrack" {
		t.Errorf("Dangling[0]: unexpected %+v", ref)
	}
	if len(ref.Suggestions) == 0 || ref.Suggestions[0] != "barracks" {
		t.Errorf("Suggestions: expected barracks first, got %v", ref.Suggestions)
	}
}

func TestRun_SeedAdditions(t *testing.T) {
	t.Parallel()

	additions, err := seed.Additions()
	if err != nil {
		t.Fatalf("seed.Additions: %v", err)
	}
	store := catalog.NewMemStore()
	store.Put("main", []byte(farmCatalogJSON))
	m := merger.New(store, merger.WithMetrics(noopMetrics(t)))

	res, err := m.Run(context.Background(), merger.Request{Source: "main", Additions: additions})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := res.String(), "Added 22 buildings. Total now: 23"; got != want {
		t.Errorf("String: expected %q, got %q", want, got)
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	store := catalog.NewMemStore()
	store.Put("main", []byte(farmCatalogJSON))
	m := merger.New(store, merger.WithMetrics(met), merger.WithBackend("memory"))
	if _, err := m.Run(context.Background(), merger.Request{Source: "main", Additions: []building.Definition{def("barracks"), def("workshop")}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			found[mt.Name] = mt.Data
		}
	}

	added, ok := found["buildcatalog.buildings.added"].(metricdata.Sum[int64])
	if !ok || len(added.DataPoints) == 0 || added.DataPoints[0].Value != 2 {
		t.Errorf("buildcatalog.buildings.added: expected 2, got %+v", found["buildcatalog.buildings.added"])
	}
	size, ok := found["buildcatalog.catalog.size"].(metricdata.Gauge[int64])
	if !ok || len(size.DataPoints) == 0 || size.DataPoints[0].Value != 3 {
		t.Errorf("buildcatalog.catalog.size: expected 3, got %+v", found["buildcatalog.catalog.size"])
	}
	stores, ok := found["buildcatalog.store.duration"].(metricdata.Histogram[float64])
	if !ok || len(stores.DataPoints) != 2 {
		t.Errorf("buildcatalog.store.duration: expected load and save points, got %+v", found["buildcatalog.store.duration"])
	}
}
