// Package store persists sanction records and identity profiles.
//
// Two implementations share the same contract: an in-memory store used by
// tests and single-process runs, and a PostgreSQL store that relies on pg_trgm
// for fuzzy matching and pgvector for embedding distance.
package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"pldft/internal/sanctions/models"
)

// EmbeddingDimensions is the vector width of the embedding column.
const EmbeddingDimensions = 1536

// Reader is the read-only query surface. Every read observes committed data
// only.
type Reader interface {
	Get(ctx context.Context, id int64) (*models.SanctionRecord, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.IdentityProfile, error)
	CountBySource(ctx context.Context, source string) (int, error)
	// SearchExact matches query as a case-insensitive substring of the entity
	// name or of any alias name, ordered by id.
	SearchExact(ctx context.Context, query string, limit int) ([]models.SanctionRecord, error)
	// SearchFuzzy returns records whose trigram similarity to query exceeds
	// threshold, most similar first.
	SearchFuzzy(ctx context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error)
	// SearchVector returns embedded records by ascending cosine distance.
	SearchVector(ctx context.Context, embedding []float32, limit int) ([]models.ScoredRecord, error)
	// ListByProfiles returns every member of the given profiles, ordered by id.
	ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]models.SanctionRecord, error)
	ListUnassigned(ctx context.Context, limit int) ([]models.SanctionRecord, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]models.SanctionRecord, error)
}

// Tx is the view handed to RunInTx callbacks. Writes become visible to readers
// only when the callback returns nil.
type Tx interface {
	Reader
	ListDataIDs(ctx context.Context, source string) ([]string, error)
	// Upsert inserts rec or overwrites every feed field of the existing row
	// with the same (source, data_id). Profile assignment and embedding are
	// left untouched. created reports whether a new row was inserted.
	Upsert(ctx context.Context, rec models.CanonicalRecord) (created bool, err error)
	// DeleteByDataIDs removes rows of source whose data_id is listed. Rows of
	// other sources with the same data_id are never touched.
	DeleteByDataIDs(ctx context.Context, source string, dataIDs []string) (int, error)
	// SharedStrongKeys lists strong keys carried by more than one record.
	SharedStrongKeys(ctx context.Context) ([]string, error)
	// ListByStrongKey returns the records carrying key, oldest first (ties by
	// id).
	ListByStrongKey(ctx context.Context, key string) ([]models.SanctionRecord, error)
	CreateProfile(ctx context.Context, profile models.IdentityProfile) error
	// AssignProfile links the listed records to profileID, skipping records
	// that already belong to a profile. It returns the number linked.
	AssignProfile(ctx context.Context, profileID uuid.UUID, recordIDs []int64) (int, error)
	TouchProfile(ctx context.Context, profileID uuid.UUID) error
}

// escapeLike escapes LIKE wildcards so user input is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
