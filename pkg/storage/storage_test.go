package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-analyzer/config"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
	"github.com/feichai0017/pdf-analyzer/pkg/storage/local"
)

func newLocalArtifactStore(t *testing.T) (*ArtifactStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := local.NewLocalStorage(dir, logger.NewTestLogger())
	require.NoError(t, err)
	return NewArtifactStore(s, logger.NewTestLogger()), dir
}

func TestArtifactStore_RoundTrip(t *testing.T) {
	store, _ := newLocalArtifactStore(t)
	ctx := context.Background()

	content := "Capital adequacy\nTier 1 ≥ 6%\n"
	loc, err := store.Write(ctx, "report", models.ArtifactCleaned, content)
	require.NoError(t, err)

	got, err := store.Read(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestArtifactStore_LastWriteWins(t *testing.T) {
	store, _ := newLocalArtifactStore(t)
	ctx := context.Background()

	first, err := store.Write(ctx, "report", models.ArtifactKeywords, "old")
	require.NoError(t, err)
	second, err := store.Write(ctx, "report", models.ArtifactKeywords, "new")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	got, err := store.Read(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestArtifactStore_FileNames(t *testing.T) {
	store, dir := newLocalArtifactStore(t)
	ctx := context.Background()
	batch := store.WithPrefix("batch-1")

	for _, kind := range []models.ArtifactKind{
		models.ArtifactTranscript,
		models.ArtifactCleaned,
		models.ArtifactKeyTerms,
		models.ArtifactKeywords,
		models.ArtifactRequirements,
	} {
		_, err := batch.Write(ctx, "policy", kind, string(kind))
		require.NoError(t, err)
	}

	for _, name := range []string{
		"policy.txt",
		"policy_cleaned.txt",
		"policy_key_compliance_terms.txt",
		"policy_keywords.txt",
		"policy_requirements.txt",
	} {
		assert.FileExists(t, filepath.Join(dir, "batch-1", name))
	}
	assert.Equal(t, "batch-1/policy.pdf", batch.Key("policy", models.ArtifactSource))
}

func TestArtifactStore_ConcurrentWritersSameKey(t *testing.T) {
	store, _ := newLocalArtifactStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Write(ctx, "doc", models.ArtifactSummary, strings.Repeat(fmt.Sprint(i%10), 4096))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.Read(ctx, store.Key("doc", models.ArtifactSummary))
	require.NoError(t, err)
	require.Len(t, got, 4096)
	// one writer's content, never interleaved
	assert.Equal(t, strings.Repeat(got[:1], 4096), got)
}

func TestArtifactStore_ReadMissing(t *testing.T) {
	store, _ := newLocalArtifactStore(t)
	_, err := store.Read(context.Background(), "nope.txt")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_KeysCannotEscapeRoot(t *testing.T) {
	dir := t.TempDir()
	s, err := local.NewLocalStorage(filepath.Join(dir, "root"), logger.NewTestLogger())
	require.NoError(t, err)

	_, err = s.Store(context.Background(), strings.NewReader("x"), "../../escape.txt")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
	assert.FileExists(t, filepath.Join(dir, "root", "escape.txt"))
}

func TestLocalStorage_CleanupBefore(t *testing.T) {
	dir := t.TempDir()
	s, err := local.NewLocalStorage(dir, logger.NewTestLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Store(ctx, strings.NewReader("old"), "a/old.txt")
	require.NoError(t, err)
	_, err = s.Store(ctx, strings.NewReader("fresh"), "a/fresh.txt")
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "a", "old.txt"), past, past))

	require.NoError(t, s.CleanupBefore(ctx, time.Now().Add(-24*time.Hour)))

	_, err = s.Get(ctx, "a/old.txt")
	assert.True(t, IsNotFound(err))
	rc, err := s.Get(ctx, "a/fresh.txt")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "fresh", string(data))
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	s, err := local.NewLocalStorage(t.TempDir(), logger.NewTestLogger())
	require.NoError(t, err)
	assert.NoError(t, s.Delete(context.Background(), "ghost.txt"))
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), config.StorageConfig{Type: "local", LocalDir: t.TempDir()}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.IsType(t, &local.LocalStorage{}, s)

	_, err = NewStorage(context.Background(), config.StorageConfig{Type: "tape"}, logger.NewTestLogger())
	assert.Error(t, err)
}
