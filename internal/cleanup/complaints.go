package cleanup

import (
	"context"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"
	"time"
)

// ComplaintJob drops pending complaints nobody reviewed within the
// retention period.
type ComplaintJob struct {
	store     storage.ComplaintStore
	retention time.Duration

	Clock func() time.Time
}

func NewComplaintJob(store storage.ComplaintStore, retention time.Duration) *ComplaintJob {
	if retention <= 0 {
		retention = config.DefaultComplaintRetention
	}
	return &ComplaintJob{store: store, retention: retention, Clock: time.Now}
}

func (j *ComplaintJob) Name() string    { return "complaints" }
func (j *ComplaintJob) LockKey() string { return config.ComplaintLockKey }

func (j *ComplaintJob) Run(ctx context.Context) (Report, error) {
	n, err := j.store.DeleteComplaintsBefore(ctx, models.ComplaintPending, j.Clock().Add(-j.retention))
	if err != nil {
		return Report{}, err
	}
	return Report{Processed: int(n)}, nil
}
