package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metagraph/internal/filemeta"
	"github.com/conduit-lang/metagraph/internal/metadata"
	"github.com/conduit-lang/metagraph/internal/process"
)

func setupNotifier(t *testing.T) (*metadata.Service, *filemeta.Provider, *Notifier) {
	t.Helper()
	svc, err := metadata.NewService()
	require.NoError(t, err)
	files := filemeta.NewProvider(svc, nil)
	require.NoError(t, svc.RegisterProvider(files))
	return svc, files, NewNotifier(svc, files, process.NewManager(nil), nil)
}

func TestNotifier_TrackThenChange(t *testing.T) {
	svc, files, n := setupNotifier(t)
	path := filepath.Join(t.TempDir(), "Foo.java")
	writeFile(t, path, "v1")

	require.NoError(t, n.Track(context.Background(), []string{path}))
	before, err := files.Digest(path)
	require.NoError(t, err)

	writeFile(t, path, "v2")
	require.NoError(t, n.HandleChanges(context.Background(), []string{path}))

	after, err := files.Digest(path)
	require.NoError(t, err)
	assert.NotEqual(t, before.Hash, after.Hash)

	stats := svc.Stats()
	assert.Equal(t, uint64(1), stats.CacheMisses)
	assert.Equal(t, uint64(2), stats.CacheHits)
	assert.Equal(t, uint64(1), stats.Notifications)
}

func TestNotifier_NewFileIsTracked(t *testing.T) {
	svc, _, n := setupNotifier(t)
	path := filepath.Join(t.TempDir(), "New.java")
	writeFile(t, path, "class New {}")

	require.NoError(t, n.HandleChanges(context.Background(), []string{path}))

	id, err := filemeta.InstanceID(path)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, svc.Dependencies().Downstream(filemeta.ResourceID(path)))
	assert.Equal(t, 1, svc.Stats().CacheCurrentSize)
}

func TestNotifier_RemovedFileBecomesInvalid(t *testing.T) {
	_, files, n := setupNotifier(t)
	path := filepath.Join(t.TempDir(), "Gone.java")
	writeFile(t, path, "class Gone {}")
	require.NoError(t, n.Track(context.Background(), []string{path}))

	require.NoError(t, os.Remove(path))
	require.NoError(t, n.HandleChanges(context.Background(), []string{path}))

	digest, err := files.Digest(path)
	require.NoError(t, err)
	assert.False(t, digest.IsValid())
}

func TestNotifier_HooksRunAfterBatch(t *testing.T) {
	_, _, n := setupNotifier(t)
	path := filepath.Join(t.TempDir(), "Foo.java")
	writeFile(t, path, "v1")

	var seen []string
	n.AfterBatch(func(ctx context.Context, paths []string) error {
		_, inOperation := process.FromContext(ctx)
		assert.True(t, inOperation)
		seen = append(seen, paths...)
		return nil
	})

	require.NoError(t, n.HandleChanges(context.Background(), []string{path}))
	assert.Equal(t, []string{path}, seen)
}
