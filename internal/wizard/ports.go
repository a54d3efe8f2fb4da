package wizard

import (
	"context"

	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/outcome"
)

// Store persists datasets keyed by id. Get returns models.ErrNotFound for
// unknown ids. Save replaces the whole aggregate; the last write wins.
type Store interface {
	Create(ctx context.Context, ds *models.Dataset) error
	Get(ctx context.Context, id int64) (*models.Dataset, error)
	Save(ctx context.Context, ds *models.Dataset) error
}

// Syncer pushes the known fields of a dataset to the external catalog.
// It never fails its caller; failures come back as unavailable results.
type Syncer interface {
	Sync(ctx context.Context, ds *models.Dataset) outcome.Result[models.SyncReceipt]
}

// PublishNotifier is told about every dataset that was published
type PublishNotifier interface {
	NotifyPublished(ctx context.Context, ds *models.Dataset) error
}
