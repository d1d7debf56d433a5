// Package worker runs the periodic maintenance jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ftsi/facsite/internal/metrics"
	"github.com/ftsi/facsite/internal/repository"
	"github.com/ftsi/facsite/internal/storage"
)

// SessionEndObserver is notified when the sweeper removes an expired
// session. The auth resolver satisfies it.
type SessionEndObserver interface {
	SessionEnded(sessionID string)
}

// Sweeper removes expired sessions and orphaned storage objects.
//
// An object is an orphan when no content row references its URL and it is
// older than orphanTTL. The age guard keeps the sweeper from racing an
// upload whose database row is still on its way.
type Sweeper struct {
	sessions  repository.SessionRepository
	refs      repository.ObjectRefLister
	store     storage.ObjectStore
	observer  SessionEndObserver
	collector *metrics.Collector
	interval  time.Duration
	orphanTTL time.Duration
	logger    *slog.Logger
}

// NewSweeper creates the Sweeper.
func NewSweeper(
	sessions repository.SessionRepository,
	refs repository.ObjectRefLister,
	store storage.ObjectStore,
	observer SessionEndObserver,
	collector *metrics.Collector,
	interval time.Duration,
	orphanTTL time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		sessions:  sessions,
		refs:      refs,
		store:     store,
		observer:  observer,
		collector: collector,
		interval:  interval,
		orphanTTL: orphanTTL,
		logger:    logger,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("orphan_ttl", s.orphanTTL),
	)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Failures are logged and the pass continues; the
// next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	sessionCount, err := s.sweepSessions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "session sweep failed", slog.String("error", err.Error()))
	}

	objectCount, err := s.sweepObjects(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "object sweep failed", slog.String("error", err.Error()))
	}

	s.collector.RecordSweep(sessionCount, objectCount)
	if sessionCount > 0 || objectCount > 0 {
		s.logger.InfoContext(ctx, "sweep finished",
			slog.Int("expired_sessions", sessionCount),
			slog.Int("orphaned_objects", objectCount),
		)
	}
}

func (s *Sweeper) sweepSessions(ctx context.Context) (int, error) {
	expired, err := s.sessions.ListExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	// Observers learn about the expiry before the rows disappear, so their
	// state never outlives the session.
	for _, id := range expired {
		s.observer.SessionEnded(id)
	}

	if _, err := s.sessions.DeleteExpired(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return len(expired), nil
}

func (s *Sweeper) sweepObjects(ctx context.Context) (int, error) {
	urls, err := s.refs.ListReferencedURLs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list referenced urls: %w", err)
	}
	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		referenced[u] = struct{}{}
	}

	cutoff := time.Now().Add(-s.orphanTTL)
	removed := 0

	for _, bucket := range []string{
		storage.BucketEnseignantsPhotos,
		storage.BucketCampusPhotos,
		storage.BucketHorairesPDF,
	} {
		objects, err := s.store.List(ctx, bucket)
		if err != nil {
			return removed, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
		}

		for _, obj := range objects {
			if obj.ModTime.After(cutoff) {
				continue
			}
			if _, ok := referenced[s.store.PublicURL(obj.Bucket, obj.Filename)]; ok {
				continue
			}

			if err := s.store.Delete(ctx, obj.Bucket, obj.Filename); err != nil {
				s.logger.WarnContext(ctx, "failed to delete orphaned object",
					slog.String("bucket", obj.Bucket),
					slog.String("object", obj.Filename),
					slog.String("error", err.Error()),
				)
				continue
			}
			removed++
		}
	}

	return removed, nil
}
