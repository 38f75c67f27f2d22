package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashAlgorithm(t *testing.T) {
	for name, size := range map[string]int{"sha1": 20, "SHA256": 32, "sha512": 64} {
		algorithm, err := GetHashAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, size, algorithm.Size)
		assert.Len(t, algorithm.NewHasher().Hash().Bytes(), size)
	}

	_, err := GetHashAlgorithm("md5")
	assert.Error(t, err)
}

func TestHasherFramesValues(t *testing.T) {
	hash := func(parts ...string) HashCode {
		hasher := DefaultHashAlgorithm().NewHasher()
		for _, part := range parts {
			hasher.PutString(part)
		}
		return hasher.Hash()
	}

	assert.Equal(t, hash("ab", "c"), hash("ab", "c"))
	assert.NotEqual(t, hash("ab", "c"), hash("a", "bc"))
	assert.NotEqual(t, hash(""), hash())
}

func TestHashCodeText(t *testing.T) {
	code := contentHash("x")
	text, err := code.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, code.String(), string(text))

	var parsed HashCode
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, code, parsed)

	_, err = ParseHashCode("not hex")
	assert.Error(t, err)

	assert.True(t, HashCode("").IsZero())
	assert.False(t, code.IsZero())
}

func TestSignaturesDiffer(t *testing.T) {
	assert.NotEqual(t, DirSignature, MissingFileSignature)
	assert.Equal(t, Signature("DIR"), DirSignature)
}

func TestSortedIndex(t *testing.T) {
	type item struct{ key string }
	index := newSortedIndex[item](0, func(i *item) string { return i.key }, nil)
	assert.True(t, index.IsEmpty())

	for _, key := range []string{"c", "a", "b"} {
		assert.True(t, index.Insert(&item{key: key}, UnaccountedContext))
	}
	assert.Equal(t, 3, index.Length())

	found, context := index.Find("b")
	require.NotNil(t, found)
	assert.Equal(t, UnaccountedContext, context)

	assert.True(t, index.UpdateContext("b", AccountedContext))

	var unaccounted []string
	assert.True(t, index.ForEachContext(UnaccountedContext, func(i *item) bool {
		unaccounted = append(unaccounted, i.key)
		return true
	}))
	assert.Equal(t, []string{"a", "c"}, unaccounted)

	assert.False(t, index.ForEachContext(UnaccountedContext, func(*item) bool { return false }))

	assert.True(t, index.Delete("a"))
	missing, _ := index.Find("a")
	assert.Nil(t, missing)
}
