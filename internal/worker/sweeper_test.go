package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/model"
	"github.com/ftsi/facsite/internal/storage"
)

type mockSessionRepo struct {
	listExpiredFunc   func(ctx context.Context) ([]string, error)
	deleteExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}

func (m *mockSessionRepo) ListExpired(ctx context.Context) ([]string, error) {
	return m.listExpiredFunc(ctx)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return m.deleteExpiredFunc(ctx)
}

type mockRefLister struct {
	urls []string
}

func (m *mockRefLister) ListReferencedURLs(ctx context.Context) ([]string, error) {
	return m.urls, nil
}

type recordingObserver struct {
	ended []string
}

func (r *recordingObserver) SessionEnded(sessionID string) {
	r.ended = append(r.ended, sessionID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func putObject(t *testing.T, store *storage.DiskStore, bucket, name, content string, age time.Duration) string {
	t.Helper()
	url, err := store.Upload(context.Background(), bucket, name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if age > 0 {
		old := time.Now().Add(-age)
		if err := os.Chtimes(filepath.Join(store.Root(), bucket, name), old, old); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}
	return url
}

func TestSweep_RemovesExpiredSessionsAndNotifiesObserver(t *testing.T) {
	deleted := false
	sessions := &mockSessionRepo{
		listExpiredFunc: func(ctx context.Context) ([]string, error) {
			return []string{"s1", "s2"}, nil
		},
		deleteExpiredFunc: func(ctx context.Context) (int64, error) {
			deleted = true
			return 2, nil
		},
	}
	observer := &recordingObserver{}
	store, err := storage.NewDiskStore(t.TempDir(), "http://ftsi.test")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	s := NewSweeper(sessions, &mockRefLister{}, store, observer, metrics.NewCollector(), time.Hour, 24*time.Hour, discardLogger())
	s.Sweep(context.Background())

	if !deleted {
		t.Error("expired sessions not deleted")
	}
	if len(observer.ended) != 2 || observer.ended[0] != "s1" || observer.ended[1] != "s2" {
		t.Errorf("observer notified with %v", observer.ended)
	}
}

func TestSweep_RemovesOnlyOldUnreferencedObjects(t *testing.T) {
	store, err := storage.NewDiskStore(t.TempDir(), "http://ftsi.test")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}
	ctx := context.Background()

	referencedURL := putObject(t, store, storage.BucketCampusPhotos, "1_kept.jpg", "kept", 48*time.Hour)
	putObject(t, store, storage.BucketCampusPhotos, "2_orphan.jpg", "orphan", 48*time.Hour)
	putObject(t, store, storage.BucketHorairesPDF, "3_orphan.pdf", "orphan", 48*time.Hour)
	putObject(t, store, storage.BucketCampusPhotos, "4_fresh.jpg", "fresh", 0)

	sessions := &mockSessionRepo{
		listExpiredFunc:   func(ctx context.Context) ([]string, error) { return nil, nil },
		deleteExpiredFunc: func(ctx context.Context) (int64, error) { return 0, nil },
	}

	s := NewSweeper(sessions, &mockRefLister{urls: []string{referencedURL}}, store, &recordingObserver{},
		metrics.NewCollector(), time.Hour, 24*time.Hour, discardLogger())
	s.Sweep(ctx)

	remaining := func(bucket string) []string {
		objects, err := store.List(ctx, bucket)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		var names []string
		for _, o := range objects {
			names = append(names, o.Filename)
		}
		return names
	}

	photos := remaining(storage.BucketCampusPhotos)
	if len(photos) != 2 {
		t.Fatalf("campus_photos after sweep = %v", photos)
	}
	for _, name := range photos {
		if name == "2_orphan.jpg" {
			t.Error("old orphan survived the sweep")
		}
	}
	if pdfs := remaining(storage.BucketHorairesPDF); len(pdfs) != 0 {
		t.Errorf("horaires_pdf after sweep = %v", pdfs)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	sessions := &mockSessionRepo{
		listExpiredFunc:   func(ctx context.Context) ([]string, error) { return nil, nil },
		deleteExpiredFunc: func(ctx context.Context) (int64, error) { return 0, nil },
	}
	store, err := storage.NewDiskStore(t.TempDir(), "http://ftsi.test")
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	s := NewSweeper(sessions, &mockRefLister{}, store, &recordingObserver{},
		metrics.NewCollector(), 10*time.Millisecond, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
