// Package aligncache memoizes the Writer's per-file alignment resolution.
// Resolving an alignment requirement inspects the file's extension, its
// leading bytes, and (for BFLIM detection) its trailing bytes, so a
// large archive with many repeated extensions benefits from caching the
// result keyed by extension plus a content hash rather than recomputing it
// for every file.
package aligncache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
)

type key struct {
	ext  string
	hash uint64
}

func hasher(k key) uint64 {
	return xxhash.Sum64String(k.ext) ^ k.hash
}

// T is a bounded cache from (extension, content) to a resolved alignment.
// It is not safe for concurrent use; callers serialize access the same way
// the Writer's Serialize call is single-threaded.
type T struct {
	cache *tinylfu.T[key, int]
	size  int
}

// New returns a cache holding up to size resolved alignments.
func New(size int) *T {
	return &T{cache: tinylfu.New[key, int](size, size*10, hasher), size: size}
}

// Get returns the cached alignment for the file whose extension is ext and
// whose content hashes to contentHash.
func (c *T) Get(ext string, contentHash uint64) (int, bool) {
	return c.cache.Get(key{ext, contentHash})
}

// Add records the alignment resolved for the file whose extension is ext
// and whose content hashes to contentHash.
func (c *T) Add(ext string, contentHash uint64, align int) {
	c.cache.Add(key{ext, contentHash}, align)
}

// Reset discards every memoized alignment. Callers use this when a
// configuration change (endian, minimum alignment, legacy mode) would make
// previously cached results stale.
func (c *T) Reset() {
	c.cache = tinylfu.New[key, int](c.size, c.size*10, hasher)
}

// Hash returns the content hash used to key the cache for data.
func Hash(data []byte) uint64 {
	return xxhash.Sum64(data)
}
