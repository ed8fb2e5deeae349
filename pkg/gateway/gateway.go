// Package gateway is the HTTP client of the tenant API used by the sync
// orchestrator.
package gateway

import (
	"context"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// Gateway defines the remote operations the orchestrator depends on.
// All failures are classified with syncerr.
type Gateway interface {
	Create(ctx context.Context, t entity.Type, payload entity.Payload) (*entity.RemoteRecord, error)
	Update(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.RemoteRecord, error)
	Delete(ctx context.Context, t entity.Type, id string) error
	// ListChangesSince returns records changed strictly after since, or the full
	// set when since is nil.
	ListChangesSince(ctx context.Context, t entity.Type, since *time.Time) ([]*entity.RemoteRecord, error)
	// Perform invokes a custom verb (POST /{id}/{verb}) with a raw JSON body.
	Perform(ctx context.Context, t entity.Type, id string, verb entity.Operation, body []byte) (*entity.RemoteRecord, error)
	Ping(ctx context.Context) error
}
