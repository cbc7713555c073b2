package filemeta

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metagraph/internal/metadata"
)

func setupProvider(t *testing.T) (*metadata.Service, *Provider) {
	t.Helper()
	svc, err := metadata.NewService()
	require.NoError(t, err)
	p := NewProvider(svc, nil)
	require.NoError(t, svc.RegisterProvider(p))
	return svc, p
}

func TestProvider_Digest(t *testing.T) {
	_, p := setupProvider(t)
	path := filepath.Join(t.TempDir(), "Foo.java")
	require.NoError(t, os.WriteFile(path, []byte("class Foo {}"), 0644))

	digest, err := p.Digest(path)
	require.NoError(t, err)

	assert.True(t, digest.IsValid())
	assert.Equal(t, path, digest.Path)
	assert.Equal(t, int64(12), digest.Size)
	assert.Equal(t, HashBytes([]byte("class Foo {}")), digest.Hash)
}

func TestProvider_MissingFileIsInvalid(t *testing.T) {
	_, p := setupProvider(t)

	digest, err := p.Digest(filepath.Join(t.TempDir(), "Missing.java"))
	require.NoError(t, err)
	assert.False(t, digest.IsValid())
}

func TestProvider_RejectsForeignIdentifier(t *testing.T) {
	_, p := setupProvider(t)

	_, err := p.Get("MID:Other#x")
	assert.ErrorIs(t, err, metadata.ErrInvalidIdentifier)
}

func TestProvider_TrackRecomputesOnChange(t *testing.T) {
	svc, p := setupProvider(t)
	path := filepath.Join(t.TempDir(), "Foo.java")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	id, err := p.Track(path)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, svc.Dependencies().Downstream(ResourceID(path)))

	before, err := p.Digest(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	require.NoError(t, svc.Dependencies().NotifyDownstream(ResourceID(path)))

	after, err := p.Digest(path)
	require.NoError(t, err)
	assert.NotEqual(t, before.Hash, after.Hash)
	assert.Equal(t, uint64(2), svc.Stats().Providers[ProvidesType].Invocations)
}

func TestProvider_Untrack(t *testing.T) {
	svc, p := setupProvider(t)
	path := filepath.Join(t.TempDir(), "Foo.java")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	_, err := p.Track(path)
	require.NoError(t, err)
	_, err = p.Digest(path)
	require.NoError(t, err)

	require.NoError(t, p.Untrack(path))
	assert.Empty(t, svc.Dependencies().Edges())
	assert.Equal(t, 0, svc.Stats().CacheCurrentSize)
}

func TestHasher_SumFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	h := NewHasher()
	got, err := h.SumFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", got.Hash)
	assert.Equal(t, int64(5), got.Size)
	assert.Equal(t, HashBytes([]byte("hello")), got.Hash)

	_, err = h.SumFile(path + ".missing")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
