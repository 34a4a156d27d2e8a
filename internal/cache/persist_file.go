package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferro-labs/ai-shield/internal/logging"
)

// FileStore persists cache entries to a local directory: one JSON metadata
// record per key, with binary payloads written as separate .bin blob files
// referenced by BlobRef so metadata records stay small.
type FileStore struct {
	dir string
}

// NewFileStore creates (if needed) the storage directory and returns a
// FileStore rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes the metadata record and, for non-empty blobs, the blob file.
func (f *FileStore) Save(rec Record, blob []byte) error {
	if len(blob) > 0 {
		rec.BlobRef = rec.Key + ".bin"
		if err := os.WriteFile(filepath.Join(f.dir, rec.BlobRef), blob, 0o640); err != nil {
			return fmt.Errorf("write blob: %w", err)
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(f.recordPath(rec.Key), data, 0o640); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Load reads one record and its blob payload, if any.
func (f *FileStore) Load(key string) (*Record, []byte, error) {
	data, err := os.ReadFile(f.recordPath(key))
	if err != nil {
		return nil, nil, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode record: %w", err)
	}

	var blob []byte
	if rec.BlobRef != "" {
		blob, err = os.ReadFile(filepath.Join(f.dir, rec.BlobRef))
		if err != nil {
			return nil, nil, fmt.Errorf("read blob: %w", err)
		}
	}
	return &rec, blob, nil
}

// Delete removes the record file and any blob file.
func (f *FileStore) Delete(key string) error {
	if err := os.Remove(f.recordPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove record: %w", err)
	}
	if err := os.Remove(filepath.Join(f.dir, key+".bin")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// ListAll scans the directory for record files. Unreadable or corrupt
// records are logged and skipped; a damaged file never fails the scan.
func (f *FileStore) ListAll() ([]Record, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("scan cache dir: %w", err)
	}

	var recs []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			logging.Logger.Warn("cache: read record file", "file", e.Name(), "error", err)
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			logging.Logger.Warn("cache: corrupt record file", "file", e.Name(), "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Clear removes every record and blob file in the directory.
func (f *FileStore) Clear() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("scan cache dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".bin")) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *FileStore) Close() error { return nil }

func (f *FileStore) recordPath(key string) string {
	return filepath.Join(f.dir, key+".json")
}
