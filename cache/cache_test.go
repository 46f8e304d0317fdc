package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeLowercasesKeywordsAndCollapsesWhitespace(t *testing.T) {
	a := Canonicalize("Users   |   WHERE age>18")
	b := Canonicalize("Users | where age > 18")
	assert.Equal(t, b, a)
}

func TestCanonicalizePreservesStringLiteralCasing(t *testing.T) {
	c := Canonicalize(`Users | where name == "Bob"`)
	assert.Contains(t, c, `"Bob"`)
}

func TestFingerprintStableForIdenticalInputs(t *testing.T) {
	k1 := Fingerprint("Users | where age > 18", "acme", nil, nil, nil)
	k2 := Fingerprint("Users | WHERE age>18", "acme", nil, nil, nil)
	assert.Equal(t, k1, k2)
}

func TestFingerprintDiffersByTenant(t *testing.T) {
	k1 := Fingerprint("Users | where age > 18", "acme", nil, nil, nil)
	k2 := Fingerprint("Users | where age > 18", "other", nil, nil, nil)
	assert.NotEqual(t, k1, k2)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(LRU, 1<<20)
	defer c.Close()

	key := Key("k1")
	require.NoError(t, c.Put(key, []byte("result payload"), time.Minute))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "result payload", string(got))
}

func TestGetMissOnUnknownKey(t *testing.T) {
	c := New(LRU, 1<<20)
	defer c.Close()

	_, ok := c.Get(Key("nope"))
	assert.False(t, ok)
}

func TestExpiredEntryIsNotReturned(t *testing.T) {
	orig := nowFunc
	defer func() { nowFunc = orig }()
	base := time.Now()
	nowFunc = func() time.Time { return base }

	c := New(LRU, 1<<20)
	defer c.Close()
	require.NoError(t, c.Put(Key("k"), []byte("v"), time.Second))

	nowFunc = func() time.Time { return base.Add(2 * time.Second) }
	_, ok := c.Get(Key("k"))
	assert.False(t, ok, "expired entry must not be returned")
}

func TestCompressesPayloadsAboveThreshold(t *testing.T) {
	c := New(LRU, 1<<20)
	defer c.Close()
	c.compressionThreshold = 16

	big := make([]byte, 1024)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	require.NoError(t, c.Put(Key("big"), big, time.Minute))

	c.mu.Lock()
	e := c.entries[Key("big")]
	c.mu.Unlock()
	require.NotNil(t, e)
	assert.True(t, e.compressed)
	assert.Less(t, len(e.value), len(big))

	got, ok := c.Get(Key("big"))
	require.True(t, ok)
	assert.Equal(t, big, got)
}

func TestLRUEvictsLeastRecentlyUsedFirst(t *testing.T) {
	c := New(LRU, 30)
	defer c.Close()

	require.NoError(t, c.Put(Key("a"), make([]byte, 10), time.Minute))
	require.NoError(t, c.Put(Key("b"), make([]byte, 10), time.Minute))
	require.NoError(t, c.Put(Key("c"), make([]byte, 10), time.Minute))

	// touch "a" so "b" becomes the least recently used
	_, _ = c.Get(Key("a"))

	require.NoError(t, c.Put(Key("d"), make([]byte, 10), time.Minute))

	_, hasA := c.Get(Key("a"))
	_, hasB := c.Get(Key("b"))
	_, hasC := c.Get(Key("c"))
	_, hasD := c.Get(Key("d"))

	assert.True(t, hasA)
	assert.False(t, hasB, "b was least recently used and should have been evicted")
	assert.True(t, hasC)
	assert.True(t, hasD)
}

func TestLFUEvictsLeastFrequentlyUsedFirst(t *testing.T) {
	c := New(LFU, 30)
	defer c.Close()

	require.NoError(t, c.Put(Key("a"), make([]byte, 10), time.Minute))
	require.NoError(t, c.Put(Key("b"), make([]byte, 10), time.Minute))
	require.NoError(t, c.Put(Key("c"), make([]byte, 10), time.Minute))

	_, _ = c.Get(Key("a"))
	_, _ = c.Get(Key("a"))
	_, _ = c.Get(Key("c"))

	require.NoError(t, c.Put(Key("d"), make([]byte, 10), time.Minute))

	_, hasB := c.Get(Key("b"))
	assert.False(t, hasB, "b had the fewest accesses and should have been evicted")
}

func TestPutRejectsEntryLargerThanCeilingEvenAfterEviction(t *testing.T) {
	c := New(LRU, 100)
	defer c.Close()
	err := c.Put(Key("huge"), make([]byte, 200), time.Minute)
	assert.Error(t, err)
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c := New(LRU, 1<<20)
	defer c.Close()
	require.NoError(t, c.Put(Key("k"), []byte("v"), time.Minute))
	c.Invalidate(Key("k"))
	_, ok := c.Get(Key("k"))
	assert.False(t, ok)
}

func TestClearEmptiesCacheAndResetsUsedBytes(t *testing.T) {
	c := New(LRU, 1<<20)
	defer c.Close()
	require.NoError(t, c.Put(Key("k"), []byte("v"), time.Minute))
	c.Clear()
	assert.Equal(t, int64(0), c.UsedBytes())
	_, ok := c.Get(Key("k"))
	assert.False(t, ok)
}
