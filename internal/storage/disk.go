package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore is the disk-backed ObjectStore. Buckets are directories under
// root; public URLs resolve to the /files/ subtree served by the router.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates a DiskStore rooted at root. baseURL is the external
// base URL of the service (no trailing slash).
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	for _, bucket := range []string{BucketEnseignantsPhotos, BucketCampusPhotos, BucketHorairesPDF} {
		if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bucket directory %s: %w", bucket, err)
		}
	}
	return &DiskStore{root: root, baseURL: baseURL}, nil
}

// Root returns the storage root directory.
func (s *DiskStore) Root() string {
	return s.root
}

// Upload stores the object and returns its public URL. The write goes to a
// temporary file first and is renamed into place so readers never observe a
// partial object.
func (s *DiskStore) Upload(ctx context.Context, bucket, filename string, r io.Reader) (string, error) {
	if err := validBucket(bucket); err != nil {
		return "", err
	}
	if err := validFilename(filename); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, bucket)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary object: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close object: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, filename)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	return s.PublicURL(bucket, filename), nil
}

// PublicURL returns the publicly resolvable URL for an object.
func (s *DiskStore) PublicURL(bucket, filename string) string {
	return s.baseURL + "/files/" + bucket + "/" + filename
}

// Delete removes an object. An already absent object is not an error so
// compensation and sweeping stay idempotent.
func (s *DiskStore) Delete(ctx context.Context, bucket, filename string) error {
	if err := validBucket(bucket); err != nil {
		return err
	}
	if err := validFilename(filename); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.root, bucket, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns the object filenames in a bucket with their modification
// times. In-progress temporary files are skipped.
func (s *DiskStore) List(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	if err := validBucket(bucket); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, bucket))
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}

	var objects []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) > 0 && entry.Name()[0] == '.' {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat object %s: %w", entry.Name(), err)
		}
		objects = append(objects, ObjectInfo{
			Bucket:   bucket,
			Filename: entry.Name(),
			ModTime:  info.ModTime(),
		})
	}

	return objects, nil
}

// compile-time interface check
var _ ObjectStore = (*DiskStore)(nil)
