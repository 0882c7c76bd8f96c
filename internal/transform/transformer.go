package transform

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/P-wig/cyphersql/internal/canon"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/schema"
)

// DefaultCacheSize is the number of translations a Transformer keeps.
const DefaultCacheSize = 256

// Transformer translates queries against the schema its Holder publishes.
//
// Thread-safety model:
//   - Transform(): safe from any goroutine
//   - the Holder may be swapped or reloaded concurrently; each translation
//     reads one schema snapshot from start to end
type Transformer struct {
	holder *schema.Holder
	opts   Options
	// cache is nil when caching is disabled.
	cache     *lru.Cache[string, *querysql.Output]
	cacheSize int
	logger    *slog.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithDialect selects the SQL dialect. Default: sqlite.
func WithDialect(d querysql.Dialect) Option {
	return func(t *Transformer) {
		t.opts.Dialect = d
	}
}

// WithMaxDepth sets the depth cap of unbounded variable-length
// relationships. Default: 0, which rejects them.
func WithMaxDepth(n int) Option {
	return func(t *Transformer) {
		t.opts.MaxDepth = n
	}
}

// WithCacheSize sets the translation cache capacity. Zero disables the
// cache.
func WithCacheSize(n int) Option {
	return func(t *Transformer) {
		t.cacheSize = n
	}
}

// WithLogger routes debug logs to logger. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logger
	}
}

// New creates a Transformer reading schemas from holder.
func New(holder *schema.Holder, opts ...Option) (*Transformer, error) {
	if holder == nil {
		return nil, fmt.Errorf("new transformer: nil schema holder")
	}
	t := &Transformer{
		holder:    holder,
		cacheSize: DefaultCacheSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.opts.Dialect = t.opts.dialect()

	if t.cacheSize < 0 {
		return nil, fmt.Errorf("new transformer: negative cache size %d", t.cacheSize)
	}
	if t.cacheSize > 0 {
		cache, err := lru.New[string, *querysql.Output](t.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("new transformer: %w", err)
		}
		t.cache = cache
	}
	return t, nil
}

// Options returns the translation options in effect.
func (t *Transformer) Options() Options {
	return t.opts
}

// Schema returns the schema the next translation will use.
func (t *Transformer) Schema() *schema.Description {
	return t.holder.Load()
}

// Transform translates query against the current schema.
func (t *Transformer) Transform(query string) (*querysql.Output, error) {
	start := time.Now()
	desc := t.holder.Load()
	if desc == nil {
		return nil, errNoSchema()
	}

	key := canon.TranslationKey(desc.Fingerprint(), string(t.opts.Dialect), t.opts.MaxDepth, query)
	if t.cache != nil {
		if out, ok := t.cache.Get(key); ok {
			t.logger.Debug("query translated",
				"kind", out.Kind,
				"cache_hit", true,
				"duration", time.Since(start))
			return out.Clone(), nil
		}
	}

	out, err := Translate(query, desc, t.opts)
	if err != nil {
		attrs := []any{"error", err}
		if de, ok := diag.As(err); ok {
			attrs = append(attrs, "category", de.Category, "kind", de.Kind)
		}
		t.logger.Debug("translation failed", attrs...)
		return nil, err
	}

	if t.cache != nil {
		t.cache.Add(key, out)
	}
	t.logger.Debug("query translated",
		"kind", out.Kind,
		"cache_hit", false,
		"params", len(out.Params),
		"duration", time.Since(start))
	return out.Clone(), nil
}

// CacheLen reports how many translations are cached.
func (t *Transformer) CacheLen() int {
	if t.cache == nil {
		return 0
	}
	return t.cache.Len()
}

// Purge empties the translation cache.
func (t *Transformer) Purge() {
	if t.cache != nil {
		t.cache.Purge()
	}
}
