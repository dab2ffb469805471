package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeLoader struct {
	mu      sync.Mutex
	calls   int
	columns map[string][]string
	err     error
}

func (f *fakeLoader) LoadColumns(context.Context, []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.columns, f.err
}

type fakeShared struct {
	text    string
	setText string
	setTTL  time.Duration
}

func (f *fakeShared) Get(context.Context) (string, bool, error) {
	return f.text, f.text != "", nil
}

func (f *fakeShared) Set(_ context.Context, summary string, ttl time.Duration) error {
	f.setText = summary
	f.setTTL = ttl
	return nil
}

func TestSchemaCacheHonorsTTL(t *testing.T) {
	cat := MustNew(Object{Name: "Event"}, Object{Name: "vw_event_sales", IsView: true})
	loader := &fakeLoader{columns: map[string][]string{
		"event":          {"id", "name"},
		"vw_event_sales": {"event_id", "revenue"},
	}}
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	cache := NewSchemaCache(cat, loader, WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	first := cache.Get(context.Background())
	if !strings.Contains(first, "- Event(id, name)") {
		t.Fatalf("summary = %q", first)
	}
	if !strings.Contains(first, "Views:\n- vw_event_sales(event_id, revenue)") {
		t.Fatalf("summary = %q", first)
	}

	now = now.Add(30 * time.Second)
	_ = cache.Get(context.Background())
	if loader.calls != 1 {
		t.Fatalf("loader calls = %d, want 1 within TTL", loader.calls)
	}

	now = now.Add(time.Minute)
	_ = cache.Get(context.Background())
	if loader.calls != 2 {
		t.Fatalf("loader calls = %d, want 2 after TTL", loader.calls)
	}
}

func TestSchemaCacheReturnsEmptyOnLoadFailure(t *testing.T) {
	cache := NewSchemaCache(Default(), &fakeLoader{err: errors.New("db down")})
	if got := cache.Get(context.Background()); got != "" {
		t.Fatalf("Get() = %q, want empty", got)
	}
}

func TestSchemaCachePrefersSharedStore(t *testing.T) {
	loader := &fakeLoader{}
	shared := &fakeShared{text: "shared summary"}
	cache := NewSchemaCache(Default(), loader, WithSharedStore(shared))
	if got := cache.Get(context.Background()); got != "shared summary" {
		t.Fatalf("Get() = %q", got)
	}
	if loader.calls != 0 {
		t.Fatalf("loader calls = %d, want 0", loader.calls)
	}
}

func TestSchemaCachePublishesToSharedStore(t *testing.T) {
	loader := &fakeLoader{columns: map[string][]string{"event": {"id"}}}
	shared := &fakeShared{}
	cache := NewSchemaCache(MustNew(Object{Name: "Event"}), loader, WithSharedStore(shared), WithTTL(2*time.Minute))
	text := cache.Get(context.Background())
	if shared.setText != text {
		t.Fatalf("shared text = %q, want %q", shared.setText, text)
	}
	if shared.setTTL != 2*time.Minute {
		t.Fatalf("shared ttl = %v", shared.setTTL)
	}
}

func TestSchemaCacheConcurrentRefreshIsSafe(t *testing.T) {
	loader := &fakeLoader{columns: map[string][]string{"event": {"id"}}}
	cache := NewSchemaCache(MustNew(Object{Name: "Event"}), loader, WithTTL(time.Nanosecond))

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Get(context.Background())
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		if got != results[0] {
			t.Fatalf("inconsistent summaries: %q vs %q", got, results[0])
		}
	}
}

func TestNilSchemaCacheIsEmpty(t *testing.T) {
	var cache *SchemaCache
	if got := cache.Get(context.Background()); got != "" {
		t.Fatalf("Get() = %q", got)
	}
}
