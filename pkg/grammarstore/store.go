// Package grammarstore loads grammars once, keeps them in a bounded cache,
// maps query files to grammars by language and drops cached grammars whose
// files change on disk.
package grammarstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/querycheck/pkg/config"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
)

// ErrNoGrammar is returned when no grammar is configured for a query file.
var ErrNoGrammar = errors.New("no grammar for query file")

// queriesDir is the directory name whose child names the query language.
const queriesDir = "queries"

// Store resolves and caches grammars. It is safe for concurrent use.
type Store struct {
	cfg    config.GrammarConfig
	logger *slog.Logger

	cache *lru.Cache[string, *grammar.Grammar]
	group singleflight.Group

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watched     map[string]struct{}
	subscribers []func(path string)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger handed to loaded grammars and used for watch events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store from the grammar section of the configuration.
func New(cfg config.GrammarConfig, opts ...Option) (*Store, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = config.DefaultGrammarCacheSize
	}

	cache, err := lru.New[string, *grammar.Grammar](size)
	if err != nil {
		return nil, fmt.Errorf("create grammar cache: %w", err)
	}

	s := &Store{
		cfg:     cfg,
		logger:  slog.Default(),
		cache:   cache,
		watched: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Load returns the grammar at path, loading it on first use. Concurrent
// loads of the same path share one read.
func (s *Store) Load(path string) (*grammar.Grammar, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve grammar path %s: %w", path, err)
	}

	if g, ok := s.cache.Get(key); ok {
		return g, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if g, ok := s.cache.Get(key); ok {
			return g, nil
		}

		g, loadErr := grammar.LoadFile(key,
			grammar.WithLogger(s.logger),
			grammar.WithStrictSchema(s.cfg.StrictSchema),
		)
		if loadErr != nil {
			return nil, loadErr
		}

		s.cache.Add(key, g)
		s.watch(key)

		s.logger.Debug("grammar loaded", "path", key, "grammar", g.Name, "rules", len(g.RuleNames()))

		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load grammar %s: %w", path, err)
	}

	g, ok := v.(*grammar.Grammar)
	if !ok {
		return nil, fmt.Errorf("load grammar %s: unexpected cache value %T", path, v)
	}

	return g, nil
}

// Resolve implements checker.Resolver: it loads the grammar for the
// language of queryPath, falling back to the configured default grammar.
func (s *Store) Resolve(queryPath string) (*grammar.Grammar, error) {
	path, err := s.GrammarPath(queryPath)
	if err != nil {
		return nil, err
	}

	return s.Load(path)
}

// GrammarPath returns the grammar file configured for queryPath.
func (s *Store) GrammarPath(queryPath string) (string, error) {
	if lang, ok := LanguageOf(queryPath); ok {
		if path, found := s.LanguagePath(lang); found {
			return path, nil
		}
	}

	if s.cfg.Path != "" {
		return s.cfg.Path, nil
	}

	return "", fmt.Errorf("%w: %s", ErrNoGrammar, queryPath)
}

// LanguagePath finds the grammar of lang in the configured languages, then
// in the search paths.
func (s *Store) LanguagePath(lang string) (string, bool) {
	if path, ok := s.cfg.Languages[lang]; ok {
		return path, true
	}

	for _, dir := range s.cfg.SearchPaths {
		for _, candidate := range []string{
			filepath.Join(dir, lang, "src", "grammar.json"),
			filepath.Join(dir, lang, "grammar.json"),
			filepath.Join(dir, "tree-sitter-"+lang, "src", "grammar.json"),
		} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
	}

	return "", false
}

// LanguageOf infers the language of a query file laid out as
// queries/<lang>/<name>.scm.
func LanguageOf(queryPath string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(queryPath)), "/")

	for idx := len(parts) - 3; idx >= 0; idx-- {
		if parts[idx] == queriesDir && parts[idx+1] != "" {
			return parts[idx+1], true
		}
	}

	return "", false
}

// Evict drops the cached grammar at path.
func (s *Store) Evict(path string) bool {
	key, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	return s.cache.Remove(key)
}

// Len returns the number of cached grammars.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Subscribe registers fn to be called with the path of every grammar
// evicted because its file changed.
func (s *Store) Subscribe(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Watch starts watching the directories of loaded grammars until ctx is
// done. Grammars loaded later are watched too. It is a no-op when watching
// is disabled in the configuration.
func (s *Store) Watch(ctx context.Context) error {
	if !s.cfg.Watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create grammar watcher: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher

	for dir := range s.watched {
		if addErr := watcher.Add(dir); addErr != nil {
			s.logger.Warn("cannot watch grammar directory", "dir", dir, "error", addErr)
		}
	}
	s.mu.Unlock()

	go s.readWatcher(ctx, watcher)

	return nil
}

// Close stops watching.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}

	err := s.watcher.Close()
	s.watcher = nil

	if err != nil {
		return fmt.Errorf("close grammar watcher: %w", err)
	}

	return nil
}

// watch records the directory of a loaded grammar. Directories are watched
// rather than files so editors that replace files on save are seen.
func (s *Store) watch(key string) {
	if !s.cfg.Watch {
		return
	}

	dir := filepath.Dir(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.watched[dir]; ok {
		return
	}

	s.watched[dir] = struct{}{}

	if s.watcher != nil {
		if err := s.watcher.Add(dir); err != nil {
			s.logger.Warn("cannot watch grammar directory", "dir", dir, "error", err)
		}
	}
}

func (s *Store) readWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	mask := fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()

			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}

			if evt.Op&mask == 0 {
				continue
			}

			s.changed(evt.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			s.logger.Warn("grammar watcher error", "error", err)
		}
	}
}

func (s *Store) changed(name string) {
	key, err := filepath.Abs(name)
	if err != nil || !s.cache.Remove(key) {
		return
	}

	s.logger.Info("grammar changed, evicted", "path", key)

	s.mu.Lock()
	subscribers := append(([]func(string))(nil), s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(key)
	}
}
