package disk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExtension(t *testing.T) {
	assert.Equal(t, "txt", ExtractExtension("notes.txt"))
	assert.Equal(t, "gz", ExtractExtension("archive.tar.gz"))
	assert.Equal(t, "jpg", ExtractExtension("PHOTO.JPG"))
	assert.Equal(t, "", ExtractExtension("README"))
	assert.Equal(t, "", ExtractExtension("trailing."))
	// hostile characters are stripped
	assert.Equal(t, "txt", ExtractExtension("evil.t/x\\t"))
}

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, ExtensionAllowed("report.pdf"))
	assert.True(t, ExtensionAllowed("main.go"))
	assert.True(t, ExtensionAllowed("no-extension"))
	assert.False(t, ExtensionAllowed("malware.xyz123"))
}

func TestNewStoredName(t *testing.T) {
	a := NewStoredName("txt")
	b := NewStoredName("txt")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".txt"))
	assert.NotContains(t, a, "-")

	bare := NewStoredName("")
	assert.NotContains(t, bare, ".")
}

func TestSwapExtension(t *testing.T) {
	assert.Equal(t, "abc.pdf", swapExtension("abc.txt", "pdf"))
	assert.Equal(t, "abc.pdf", swapExtension("abc", "pdf"))
	assert.Equal(t, "abc", swapExtension("abc.txt", ""))
}

func TestHashReader(t *testing.T) {
	hash, size, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", hash)

	same, _, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, hash, same)
}
