package port

import (
	"context"
	"io"

	"github.com/buildflow/procurement/internal/domain/entity"
)

// Notifier sends a templated notification to a recipient. Delivery is
// fire-and-forget: callers log errors and never fail a committed transition
// on them.
type Notifier interface {
	Send(ctx context.Context, recipient, template string, data map[string]interface{}) error
}

// BlobStore persists uploaded files and reports their stored metadata
type BlobStore interface {
	SaveUploaded(ctx context.Context, folder, filename string, content io.Reader) (*entity.FileMeta, error)
}
