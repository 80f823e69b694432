package clientcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"collabhub.app/pkg/errors"
	"collabhub.app/pkg/logger"
)

const blobExtension = ".cache.json"

// blobTier stores oversized payloads as individual files, one JSON envelope
// per key. Filenames are hashes of the key so arbitrary keys stay
// filesystem-safe.
type blobTier struct {
	dir string
	log *logger.Logger
}

func newBlobTier(dir string) (*blobTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewConfigurationError("failed to create large-object cache directory", err)
	}
	return &blobTier{
		dir: dir,
		log: logger.New().WithFields(map[string]interface{}{
			"component": "client-cache",
			"tier":      string(TierLargeObject),
		}),
	}, nil
}

func (b *blobTier) name() Tier {
	return TierLargeObject
}

func (b *blobTier) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:16])+blobExtension)
}

func (b *blobTier) set(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.NewSerializationError("failed to encode large-object entry", err)
	}

	if err := os.WriteFile(b.path(entry.Key), data, 0o644); err != nil {
		return errors.NewCacheError("failed to write large-object entry", err)
	}
	return nil
}

func (b *blobTier) get(key string) (Entry, bool) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// corrupt envelope: drop it and report a miss
		_ = os.Remove(b.path(key))
		return Entry{}, false
	}
	return entry, true
}

func (b *blobTier) remove(key string) {
	_ = os.Remove(b.path(key))
}

func (b *blobTier) entries() []Entry {
	files, err := os.ReadDir(b.dir)
	if err != nil {
		b.log.Error("Failed to enumerate large-object cache", "error", err, "dir", b.dir)
		return nil
	}

	collected := make([]Entry, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), blobExtension) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(b.dir, file.Name()))
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		collected = append(collected, entry)
	}
	return collected
}

// clear removes envelope files from the directory listing directly so that
// corrupt files it can no longer decode are dropped too.
func (b *blobTier) clear() {
	files, err := os.ReadDir(b.dir)
	if err != nil {
		b.log.Error("Failed to enumerate large-object cache", "error", err, "dir", b.dir)
		return
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), blobExtension) {
			continue
		}
		_ = os.Remove(filepath.Join(b.dir, file.Name()))
	}
}

func (b *blobTier) close() error {
	return nil
}
