// Package storage provides the object store for uploaded files.
//
// Objects live in named buckets and are addressed by generated filenames.
// Every stored object is publicly readable through its public URL; access
// control applies to writes only.
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Bucket names used by the application.
const (
	BucketEnseignantsPhotos = "enseignants_photos"
	BucketCampusPhotos      = "campus_photos"
	BucketHorairesPDF       = "horaires_pdf"
)

// ObjectStore is the object persistence interface.
type ObjectStore interface {
	// Upload stores the object and returns its public URL.
	Upload(ctx context.Context, bucket, filename string, r io.Reader) (string, error)
	// PublicURL returns the publicly resolvable URL for an object.
	PublicURL(bucket, filename string) string
	// Delete removes an object. Deleting an absent object is not an error.
	Delete(ctx context.Context, bucket, filename string) error
	// List returns the object filenames in a bucket with their modification
	// times.
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket   string
	Filename string
	ModTime  time.Time
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// GenerateFilename builds a collision-resistant object filename from the
// original upload name: a unix-millisecond timestamp prefix joined to the
// original name with whitespace runs replaced by underscores.
func GenerateFilename(now time.Time, originalName string) string {
	sanitized := whitespaceRe.ReplaceAllString(strings.TrimSpace(originalName), "_")
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + sanitized
}

// ObjectNameFromURL extracts the object filename from a public URL in the
// given bucket. Returns false for empty or foreign URLs.
func ObjectNameFromURL(url, bucket string) (string, bool) {
	marker := "/files/" + bucket + "/"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", false
	}
	name := url[i+len(marker):]
	return name, name != ""
}

// validBucket rejects bucket names outside the known set. Object filenames
// come from GenerateFilename but are re-checked against path separators so a
// crafted name can never escape the bucket directory.
func validBucket(bucket string) error {
	switch bucket {
	case BucketEnseignantsPhotos, BucketCampusPhotos, BucketHorairesPDF:
		return nil
	}
	return fmt.Errorf("unknown bucket: %s", bucket)
}

func validFilename(filename string) error {
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid object filename: %s", filename)
	}
	return nil
}
