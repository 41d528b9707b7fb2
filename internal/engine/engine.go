package engine

import (
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/roach88/recsync/internal/discovery"
	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/plugin"
	"github.com/roach88/recsync/internal/record"
	"github.com/roach88/recsync/internal/transform"
)

// DefaultSource is the source id used when a caller does not name one.
const DefaultSource = "default"

// DefaultOwnerID is assigned to owner-capable entities that have no owner.
const DefaultOwnerID = 1

// Engine synchronizes record files and a live store.
//
// Thread-safety: export, status and discovery are safe for concurrent use.
// Imports into the same store must be serialized by the caller.
type Engine struct {
	store      entity.Store
	fs         afero.Fs
	logger     *slog.Logger
	transforms *transform.Registry
	plugins    *plugin.Registry
	cache      *discovery.Cache
	factory    *Factory

	// sources maps a source id to its root directory.
	sources       map[string]string
	defaultSource string

	filesDir    string
	ignoredKeys []string
	installing  bool
	ownerID     int64
	force       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithFs sets the filesystem holding sources and assets. Default: the OS
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(e *Engine) {
		e.fs = fs
	}
}

// WithSources sets the named source directories and which one is used when
// a caller passes an empty source id.
func WithSources(sources map[string]string, defaultSource string) Option {
	return func(e *Engine) {
		e.sources = maps.Clone(sources)
		e.defaultSource = defaultSource
	}
}

// WithFilesDir sets the directory live file assets are stored in.
func WithFilesDir(dir string) Option {
	return func(e *Engine) {
		e.filesDir = dir
	}
}

// WithIgnoredKeys sets the keys stripped at every nesting level before a
// live record and its file are compared.
func WithIgnoredKeys(keys ...string) Option {
	return func(e *Engine) {
		e.ignoredKeys = slices.Clone(keys)
	}
}

// WithInstalling enables install mode: only a translation in the system
// default language may be promoted to a record's default.
func WithInstalling(installing bool) Option {
	return func(e *Engine) {
		e.installing = installing
	}
}

// WithOwnerID sets the owner given to owner-capable entities without one.
func WithOwnerID(id int64) Option {
	return func(e *Engine) {
		e.ownerID = id
	}
}

// WithForce disables the unchanged-fingerprint skip on import.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithTransforms sets the attribute transform registry.
// Default: transform.Default().
func WithTransforms(r *transform.Registry) Option {
	return func(e *Engine) {
		e.transforms = r
	}
}

// WithPlugins sets the option plugin registry. Default: plugin.Default(nil).
func WithPlugins(r *plugin.Registry) Option {
	return func(e *Engine) {
		e.plugins = r
	}
}

// WithCache sets the discovery cache. Default: a cache over the engine's
// filesystem.
func WithCache(c *discovery.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// New creates an Engine over store.
func New(store entity.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		sources:       map[string]string{},
		defaultSource: DefaultSource,
		ownerID:       DefaultOwnerID,
		ignoredKeys:   []string{"entity_id"},
		factory:       NewFactory(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.transforms == nil {
		e.transforms = transform.Default()
	}
	if e.plugins == nil {
		e.plugins = plugin.Default(nil)
	}
	if e.cache == nil {
		e.cache = discovery.NewCache(discovery.NewScanner(e.fs, discovery.WithLogger(e.logger)))
	}
	return e
}

// Store returns the live store.
func (e *Engine) Store() entity.Store {
	return e.store
}

// Cache returns the discovery cache.
func (e *Engine) Cache() *discovery.Cache {
	return e.cache
}

// Factory returns the Exportable cache.
func (e *Engine) Factory() *Factory {
	return e.factory
}

// Sources returns the configured source ids, sorted.
func (e *Engine) Sources() []string {
	return slices.Sorted(maps.Keys(e.sources))
}

// SourceDir returns the directory of source. An empty id selects the
// default source. Unknown ids return a NOT_FOUND error.
func (e *Engine) SourceDir(source string) (string, error) {
	if source == "" {
		source = e.defaultSource
	}
	dir, ok := e.sources[source]
	if !ok {
		return "", record.NewError(record.ErrCodeNotFound, "", "unknown source "+source)
	}
	return dir, nil
}

// sourceOrder returns source ids with the default source first.
func (e *Engine) sourceOrder() []string {
	ids := e.Sources()
	if i := slices.Index(ids, e.defaultSource); i > 0 {
		ids = append([]string{e.defaultSource}, slices.Delete(ids, i, i+1)...)
	}
	return ids
}

// sourceOf returns the id of the source whose directory contains path.
func (e *Engine) sourceOf(path string) string {
	for _, id := range e.sourceOrder() {
		rel, err := filepath.Rel(e.sources[id], path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return id
	}
	return ""
}
