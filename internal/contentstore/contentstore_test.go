package contentstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/peer-support/internal/config"
)

func TestObjectKey(t *testing.T) {
	k := objectKey("/photos/", `..\..\evil.PNG`)
	assert.True(t, strings.HasPrefix(k, "photos/"))
	assert.True(t, strings.HasSuffix(k, ".png"))
	assert.NotContains(t, k, "evil")

	assert.NotContains(t, objectKey("a", "x.averyveryverylongext"), ".averyvery")
}

func TestMemoryPutDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	url, err := m.Put(ctx, "messages", "note.txt", strings.NewReader("hi"), 2, "text/plain")
	require.NoError(t, err)
	assert.True(t, m.Has(url))

	require.NoError(t, m.Delete(ctx, url))
	assert.False(t, m.Has(url))
	assert.ErrorIs(t, m.Delete(ctx, "https://elsewhere/x"), ErrForeignURL)

	m.FailPut = errors.New("down")
	_, err = m.Put(ctx, "messages", "a.txt", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
	assert.Zero(t, m.Len())
}

func TestNewMinIORequiresCredentials(t *testing.T) {
	_, err := NewMinIO(config.MinIOConfig{})
	assert.Error(t, err)
	_, err = NewMinIO(config.MinIOConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}

func TestMinIODeleteRejectsForeignURL(t *testing.T) {
	m, err := NewMinIO(config.MinIOConfig{
		Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s",
		Bucket: "b", PublicURL: "http://localhost:9000",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/b", m.baseURL)
	assert.ErrorIs(t, m.Delete(context.Background(), "http://other/b/x"), ErrForeignURL)
}
