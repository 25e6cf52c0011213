package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/tillpoint/tillsync/pkg/logger"
)

const defaultPreviewRetention = 4 * time.Hour

type previewCleanupRepo interface {
	DeletePreviewsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PreviewCleanupJobParams configure the stale preview sweep.
type PreviewCleanupJobParams struct {
	Logger     *logger.Logger
	Repository previewCleanupRepo
	Retention  time.Duration
}

// NewPreviewCleanupJob builds the job that deletes abandoned preview orders.
func NewPreviewCleanupJob(params PreviewCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("order repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultPreviewRetention
	}
	return &previewCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type previewCleanupJob struct {
	logg      *logger.Logger
	repo      previewCleanupRepo
	retention time.Duration
	now       func() time.Time
}

func (j *previewCleanupJob) Name() string { return "preview-cleanup" }

func (j *previewCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeletePreviewsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("preview cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "preview cleanup complete")
	return nil
}
