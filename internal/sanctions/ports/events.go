package ports

import (
	"context"

	"pldft/internal/sanctions/models"
)

// Publisher emits facts after they are committed. Delivery is best-effort:
// callers log failures and never roll back on them.
type Publisher interface {
	PublishSync(ctx context.Context, report models.SyncReport) error
	PublishConflict(ctx context.Context, conflict models.Conflict) error
}
