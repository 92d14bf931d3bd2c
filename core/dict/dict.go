// Package dict assigns dense dictionary keys to unique images.
package dict

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is the BLAKE3-256 digest of an image's canonical bytes.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Sum returns the digest of data.
func Sum(data []byte) Digest {
	return blake3.Sum256(data)
}

// Entry is one unique image in the dictionary.
type Entry struct {
	Key    int
	Digest Digest
	Data   []byte
	Meta   any // Caller data kept with the first occurrence, e.g. depth
	Uses   int
}

// Dictionary maps image content to keys 0..K-1 in first-seen order.
type Dictionary struct {
	keys    map[Digest]int
	entries []*Entry
}

// New creates an empty dictionary.
func New() *Dictionary {
	return &Dictionary{keys: make(map[Digest]int)}
}

// Add returns the key for data, assigning the next key when the content is
// new. meta is stored only for new content.
func (d *Dictionary) Add(data []byte, meta any) (key int, isNew bool) {
	digest := Sum(data)
	if k, ok := d.keys[digest]; ok {
		d.entries[k].Uses++
		return k, false
	}
	k := len(d.entries)
	d.keys[digest] = k
	d.entries = append(d.entries, &Entry{Key: k, Digest: digest, Data: data, Meta: meta, Uses: 1})
	return k, true
}

// Lookup returns the key for data if present.
func (d *Dictionary) Lookup(data []byte) (int, bool) {
	k, ok := d.keys[Sum(data)]
	return k, ok
}

// Len returns the number of unique images.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Entry returns the entry for key.
func (d *Dictionary) Entry(key int) *Entry {
	return d.entries[key]
}

// Entries returns all entries in key order.
func (d *Dictionary) Entries() []*Entry {
	return d.entries
}

// AllUnique reports whether every key has been used exactly once.
func (d *Dictionary) AllUnique() bool {
	for _, e := range d.entries {
		if e.Uses != 1 {
			return false
		}
	}
	return true
}
