package port

import (
	"context"

	"github.com/bornholm/sectioncache/internal/core/model"
)

// ObjectStore is the queried collection of stored objects.
type ObjectStore interface {
	Objects(ctx context.Context, query *model.Query) ([]model.Object, error)
}
