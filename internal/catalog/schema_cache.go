package catalog

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

const DefaultSchemaTTL = 5 * time.Minute

// ColumnLoader reads live column lists for the named objects. Keys of the
// returned map are lower-cased object names.
type ColumnLoader interface {
	LoadColumns(ctx context.Context, names []string) (map[string][]string, error)
}

// SharedStore lets replicas share one rendered summary.
type SharedStore interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, summary string, ttl time.Duration) error
}

type schemaEntry struct {
	text     string
	loadedAt time.Time
}

// SchemaCache renders an advisory schema summary for prompt construction.
// The summary is never consulted for enforcement. Refreshes replace the whole
// entry atomically; concurrent refreshes may both load, and the last one to
// store wins.
type SchemaCache struct {
	catalog *Catalog
	loader  ColumnLoader
	shared  SharedStore
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	current atomic.Pointer[schemaEntry]
}

type SchemaCacheOption func(*SchemaCache)

func WithTTL(ttl time.Duration) SchemaCacheOption {
	return func(c *SchemaCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithSharedStore(store SharedStore) SchemaCacheOption {
	return func(c *SchemaCache) { c.shared = store }
}

func WithLogger(logger *slog.Logger) SchemaCacheOption {
	return func(c *SchemaCache) { c.logger = logger }
}

func WithClock(now func() time.Time) SchemaCacheOption {
	return func(c *SchemaCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewSchemaCache(cat *Catalog, loader ColumnLoader, opts ...SchemaCacheOption) *SchemaCache {
	c := &SchemaCache{
		catalog: cat,
		loader:  loader,
		ttl:     DefaultSchemaTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached summary, refreshing it when the TTL has elapsed.
// Load failures yield an empty string and leave the previous entry in place.
func (c *SchemaCache) Get(ctx context.Context) string {
	if c == nil || c.catalog == nil {
		return ""
	}
	now := c.now()
	if entry := c.current.Load(); entry != nil && now.Sub(entry.loadedAt) < c.ttl {
		return entry.text
	}

	if c.shared != nil {
		text, ok, err := c.shared.Get(ctx)
		if err != nil {
			c.warn(ctx, "schema summary shared read failed", err)
		}
		if ok && text != "" {
			c.current.Store(&schemaEntry{text: text, loadedAt: now})
			return text
		}
	}

	if c.loader == nil {
		return ""
	}
	columns, err := c.loader.LoadColumns(ctx, c.catalog.Names())
	if err != nil {
		c.warn(ctx, "schema summary load failed", err)
		return ""
	}
	text := FormatSummary(c.catalog, columns)
	c.current.Store(&schemaEntry{text: text, loadedAt: now})
	if c.shared != nil {
		if err := c.shared.Set(ctx, text, c.ttl); err != nil {
			c.warn(ctx, "schema summary shared write failed", err)
		}
	}
	return text
}

// Invalidate drops the local entry so the next Get reloads.
func (c *SchemaCache) Invalidate() {
	c.current.Store(nil)
}

func (c *SchemaCache) warn(ctx context.Context, msg string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, msg, slog.Any("error", err))
}

// FormatSummary renders one line per catalog object with its live columns.
// Objects missing from columns are listed with an empty column list.
func FormatSummary(cat *Catalog, columns map[string][]string) string {
	var tables, views []string
	for _, object := range cat.Objects() {
		line := "- " + object.Name + "(" + strings.Join(columns[strings.ToLower(object.Name)], ", ") + ")"
		if object.IsView {
			views = append(views, line)
			continue
		}
		tables = append(tables, line)
	}

	var b strings.Builder
	b.WriteString("Current schema (live, summarized):\n")
	if len(tables) > 0 {
		b.WriteString("Tables:\n")
		b.WriteString(strings.Join(tables, "\n"))
		b.WriteString("\n")
	}
	if len(views) > 0 {
		b.WriteString("Views:\n")
		b.WriteString(strings.Join(views, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
