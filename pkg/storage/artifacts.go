package storage

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"path"
	"sync"

	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
)

const lockStripes = 64

// ArtifactStore persists per-document text artifacts on top of a Storage.
// Writes to the same key are serialized; the last write wins.
type ArtifactStore struct {
	storage Storage
	prefix  string
	locks   *[lockStripes]sync.Mutex
	logger  logger.Logger
}

func NewArtifactStore(s Storage, log logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		storage: s,
		locks:   new([lockStripes]sync.Mutex),
		logger:  log,
	}
}

// WithPrefix returns a store that writes below prefix, e.g. a batch id.
// It shares the per-key locks of the parent.
func (a *ArtifactStore) WithPrefix(prefix string) *ArtifactStore {
	child := *a
	child.prefix = path.Join(a.prefix, prefix)
	return &child
}

func (a *ArtifactStore) Storage() Storage {
	return a.storage
}

// Key returns the storage key of an artifact, e.g. "<prefix>/report_keywords.txt".
func (a *ArtifactStore) Key(documentID string, kind models.ArtifactKind) string {
	name := kind.FileName(documentID)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// Write stores content as the artifact of the given kind and returns its location.
func (a *ArtifactStore) Write(ctx context.Context, documentID string, kind models.ArtifactKind, content string) (string, error) {
	return a.WriteBytes(ctx, documentID, kind, []byte(content))
}

func (a *ArtifactStore) WriteBytes(ctx context.Context, documentID string, kind models.ArtifactKind, content []byte) (string, error) {
	key := a.Key(documentID, kind)

	mu := a.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	location, err := a.storage.Store(ctx, bytes.NewReader(content), key)
	if err != nil {
		return "", fmt.Errorf("failed to write %s artifact for %s: %w", kind, documentID, err)
	}
	a.logger.Debug("Artifact written",
		logger.String("document", documentID),
		logger.String("kind", string(kind)),
		logger.String("location", location),
		logger.Int("bytes", len(content)),
	)
	return location, nil
}

// WriteTranscript stores the raw extracted text of a document.
func (a *ArtifactStore) WriteTranscript(ctx context.Context, documentID, text string) (string, error) {
	return a.Write(ctx, documentID, models.ArtifactTranscript, text)
}

// Read returns the content stored at location.
func (a *ArtifactStore) Read(ctx context.Context, location string) (string, error) {
	data, err := a.Load(ctx, location)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Load reads the bytes stored under key. The prefix is not applied.
func (a *ArtifactStore) Load(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (a *ArtifactStore) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &a.locks[h.Sum32()%lockStripes]
}
