// Package search finds files under a local document root by filename
// keywords. Matching is plain substring containment; date-derived terms
// outrank ordinary keywords. Results are cached per request signature for a
// short TTL because Teams users tend to re-ask the same question while an
// answer is still being generated.
package search

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/hotaket/ollamabridge/internal/query"
)

// cacheSize bounds the number of distinct request signatures kept. The
// original implementation grew its cache without bound for the process
// lifetime; an LRU cap keeps that honest.
const cacheSize = 256

// Result is one matched file.
type Result struct {
	Path    string
	Name    string
	ModTime time.Time
	Size    int64
	Ext     string
}

// Options override the searcher defaults for a single request.
type Options struct {
	FileTypes  []string // dotted lowercase extensions; nil = searcher default
	MaxResults int      // 0 = searcher default
}

// Searcher walks a document root and matches filenames against keywords.
// Safe for concurrent use.
type Searcher struct {
	root       string
	fileTypes  []string
	maxResults int
	cache      *expirable.LRU[string, []Result]
	group      singleflight.Group
}

// New creates a searcher over root. fileTypes restricts matches to the given
// extensions (empty = all files). ttl controls how long a result set stays
// cached.
func New(root string, fileTypes []string, maxResults int, ttl time.Duration) *Searcher {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Searcher{
		root:       root,
		fileTypes:  normalizeExts(fileTypes),
		maxResults: maxResults,
		cache:      expirable.NewLRU[string, []Result](cacheSize, nil, ttl),
	}
}

// Root returns the document root being searched.
func (s *Searcher) Root() string { return s.root }

// Flush drops all cached result sets. Called by the directory watcher when
// files under the root change.
func (s *Searcher) Flush() {
	s.cache.Purge()
}

// Search returns files whose name contains any of the keywords, capped at
// the result limit. Date-matched files are ordered before keyword-only
// matches; ties keep walk order. Walk errors degrade to whatever was
// gathered — a search never fails, it only comes back empty.
func (s *Searcher) Search(kw query.Keywords, opts Options) []Result {
	fileTypes := s.fileTypes
	if opts.FileTypes != nil {
		fileTypes = normalizeExts(opts.FileTypes)
	}
	limit := s.maxResults
	if opts.MaxResults > 0 {
		limit = opts.MaxResults
	}

	key := cacheKey(kw, fileTypes, limit)
	if cached, ok := s.cache.Get(key); ok {
		slog.Debug("search.cache_hit", "key", key, "results", len(cached))
		return cached
	}

	// Concurrent identical searches share one walk.
	v, _, _ := s.group.Do(key, func() (any, error) {
		results := s.walk(kw, fileTypes, limit)
		s.cache.Add(key, results)
		return results, nil
	})
	return v.([]Result)
}

func (s *Searcher) walk(kw query.Keywords, fileTypes []string, limit int) []Result {
	started := time.Now()

	var dateMatched, keywordMatched []Result
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("search.walk_error", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if len(fileTypes) > 0 && !containsString(fileTypes, ext) {
			return nil
		}

		// Stop walking once no bucket can still change the output: the date
		// bucket alone fills the result set, or there are no date terms and
		// the keyword bucket is already full.
		if len(dateMatched) >= limit ||
			(len(kw.DateTerms) == 0 && len(keywordMatched) >= limit) {
			return fs.SkipAll
		}

		byDate, byKeyword := match(name, kw)
		if !byDate && !byKeyword {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("search.stat_error", "path", path, "error", err)
			return nil
		}
		r := Result{
			Path:    path,
			Name:    name,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Ext:     ext,
		}
		if byDate {
			dateMatched = append(dateMatched, r)
		} else if len(keywordMatched) < limit {
			keywordMatched = append(keywordMatched, r)
		}
		return nil
	})
	if err != nil {
		slog.Error("search.walk_failed", "root", s.root, "error", err)
	}

	results := append(dateMatched, keywordMatched...)
	if len(results) > limit {
		results = results[:limit]
	}

	slog.Info("search.done",
		"terms", kw.All(),
		"results", len(results),
		"elapsed", time.Since(started).Round(time.Millisecond))
	return results
}

// match reports whether a filename matches the keyword set. A date-term hit
// takes precedence over a plain keyword hit. With no terms at all, every
// file matches.
func match(name string, kw query.Keywords) (byDate, byKeyword bool) {
	for _, t := range kw.DateTerms {
		if strings.Contains(name, t) {
			return true, false
		}
	}
	for _, t := range kw.Terms {
		if strings.Contains(name, t) {
			return false, true
		}
	}
	if len(kw.DateTerms) == 0 && len(kw.Terms) == 0 {
		return false, true
	}
	return false, false
}

func cacheKey(kw query.Keywords, fileTypes []string, limit int) string {
	return fmt.Sprintf("%s|%s|%d",
		strings.Join(kw.All(), "\x1f"),
		strings.Join(fileTypes, ","),
		limit)
}

func normalizeExts(exts []string) []string {
	var out []string
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
