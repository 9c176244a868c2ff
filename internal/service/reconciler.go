package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docportal/internal/repository"
	"docportal/internal/storage"
)

// UploadPrefix is the key prefix under which all uploads are stored.
const UploadPrefix = "users/"

// Reconciler removes stored objects that no document references, i.e. uploads
// whose metadata write failed and whose rollback did not go through.
type Reconciler struct {
	store storage.Storage
	repo  repository.DocumentRepository
	grace time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewReconciler returns a reconciler that leaves objects younger than grace alone,
// so uploads still between object write and metadata write are not touched.
func NewReconciler(store storage.Storage, repo repository.DocumentRepository, grace time.Duration, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		store: store,
		repo:  repo,
		grace: grace,
		log:   log.With(zap.String("component", "reconciler")),
		now:   time.Now,
	}
}

// Sweep deletes every orphaned object older than the grace period and returns
// how many were removed. Failures on single objects do not stop the sweep.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	objects, err := r.store.List(ctx, UploadPrefix)
	if err != nil {
		return 0, fmt.Errorf("list objects: %w", err)
	}

	cutoff := r.now().Add(-r.grace)
	removed := 0
	var errs []error
	for _, obj := range objects {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		referenced, err := r.repo.StorageRefExists(ctx, obj.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", obj.Key, err))
			continue
		}
		if referenced {
			continue
		}
		if err := r.store.Delete(ctx, obj.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", obj.Key, err))
			continue
		}
		removed++
		r.log.Info("orphaned object removed", zap.String("key", obj.Key))
	}
	return removed, errors.Join(errs...)
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// disables the sweep.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.log.Warn("reconciler disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		removed, err := r.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			r.log.Warn("sweep incomplete", zap.Int("removed", removed), zap.Error(err))
		} else {
			r.log.Debug("sweep done", zap.Int("removed", removed))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
