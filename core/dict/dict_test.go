package dict

import (
	"testing"

	"github.com/zeebo/blake3"
)

func TestAdd(t *testing.T) {
	d := New()
	tests := []struct {
		data    string
		wantKey int
		wantNew bool
	}{
		{"a", 0, true},
		{"b", 1, true},
		{"a", 0, false},
		{"c", 2, true},
		{"b", 1, false},
	}
	for _, tt := range tests {
		k, isNew := d.Add([]byte(tt.data), nil)
		if k != tt.wantKey || isNew != tt.wantNew {
			t.Errorf("Add(%q) = (%d, %v), want (%d, %v)", tt.data, k, isNew, tt.wantKey, tt.wantNew)
		}
	}
	if d.Len() != 3 {
		t.Errorf("Len() = %d, want 3", d.Len())
	}
	if d.Entry(0).Uses != 2 || d.Entry(2).Uses != 1 {
		t.Errorf("use counts = %d, %d", d.Entry(0).Uses, d.Entry(2).Uses)
	}
	if d.AllUnique() {
		t.Error("AllUnique() = true with repeated content")
	}
}

func TestMetaKeptFromFirstOccurrence(t *testing.T) {
	d := New()
	d.Add([]byte("x"), "first")
	d.Add([]byte("x"), "second")
	if got := d.Entry(0).Meta; got != "first" {
		t.Errorf("Meta = %v, want first", got)
	}
}

func TestLookupAndDigest(t *testing.T) {
	d := New()
	d.Add([]byte("glyph"), nil)
	if k, ok := d.Lookup([]byte("glyph")); !ok || k != 0 {
		t.Errorf("Lookup = (%d, %v), want (0, true)", k, ok)
	}
	if _, ok := d.Lookup([]byte("other")); ok {
		t.Error("Lookup found absent content")
	}

	want := blake3.Sum256([]byte("glyph"))
	if d.Entry(0).Digest != Digest(want) {
		t.Error("digest is not BLAKE3-256")
	}
	if len(d.Entry(0).Digest.String()) != 64 {
		t.Errorf("String() = %q", d.Entry(0).Digest.String())
	}
}

func TestAllUnique(t *testing.T) {
	d := New()
	if !d.AllUnique() {
		t.Error("empty dictionary should be all unique")
	}
	d.Add([]byte("1"), nil)
	d.Add([]byte("2"), nil)
	if !d.AllUnique() {
		t.Error("AllUnique() = false for distinct content")
	}
}
