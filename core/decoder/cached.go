package decoder

import (
	"github.com/FocuswithJustin/ScanReflow/core/cache"
)

// CachedReader memoises decompressed images for a paging viewer.
type CachedReader struct {
	*Reader
	blobs *cache.LRU[int, []byte]
}

// NewCachedReader wraps r with a blob cache of at most maxBytes (a default
// bound when zero).
func NewCachedReader(r *Reader, maxBytes int64) *CachedReader {
	return &CachedReader{Reader: r, blobs: cache.NewBlobCache(maxBytes)}
}

// ReadSequenceEntry returns the image for key, from the cache when possible.
func (c *CachedReader) ReadSequenceEntry(key int) ([]byte, error) {
	if b, ok := c.blobs.Get(key); ok {
		return b, nil
	}
	b, err := c.Reader.ReadSequenceEntry(key)
	if err != nil {
		return nil, err
	}
	c.blobs.Put(key, b)
	return b, nil
}

// Stats returns the blob cache statistics.
func (c *CachedReader) Stats() cache.Stats {
	return c.blobs.Stats()
}
