package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"pldft/internal/sanctions/models"
	dErrors "pldft/pkg/domain-errors"
	"pldft/pkg/platform/sentinel"
)

const (
	defaultPostgresTxTimeout = 2 * time.Minute
	uniqueViolation          = "23505"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists records in PostgreSQL. Outside a transaction it
// queries the pool; inside RunInTx the callback receives a copy bound to the
// transaction.
type PostgresStore struct {
	db        *sql.DB
	q         queryer
	txTimeout time.Duration
}

type PostgresOption func(*PostgresStore)

// WithTxTimeout bounds RunInTx when the caller's context has no deadline.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, q: db, txTimeout: defaultPostgresTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx opens a transaction, takes a transaction-scoped advisory lock on
// lockKey and commits only if fn succeeds. The lock is released by commit or
// rollback, so writers of the same key are serialized even across processes.
func (s *PostgresStore) RunInTx(ctx context.Context, lockKey string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if lockKey != "" {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return fmt.Errorf("acquire advisory lock %q: %w", lockKey, err)
		}
	}

	if err := fn(&PostgresStore{db: s.db, q: tx, txTimeout: s.txTimeout}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const recordColumns = `
	id, source, data_id, entity_name, program, remarks, reference_number, list_type,
	gender, nationality, listed_on, sanction_date, last_updated,
	aliases, addresses, designations, birth_dates, birth_places, documents,
	COALESCE(strong_key, ''), profile_id, embedding IS NOT NULL, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.SanctionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM sanctions WHERE id = $1`
	rec, err := scanRecord(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.IdentityProfile, error) {
	var p models.IdentityProfile
	err := s.q.QueryRowContext(ctx,
		`SELECT id, primary_name, created_at, updated_at FROM identity_profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.PrimaryName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) CountBySource(ctx context.Context, source string) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sanctions WHERE source = $1`, source).Scan(&n); err != nil {
		return 0, fmt.Errorf("count by source: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SearchExact(ctx context.Context, query string, limit int) ([]models.SanctionRecord, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	q := `
		SELECT ` + recordColumns + `
		FROM sanctions
		WHERE entity_name ILIKE $1
		   OR EXISTS (SELECT 1 FROM jsonb_array_elements(aliases) a WHERE a->>'name' ILIKE $1)
		ORDER BY id
		LIMIT $2`
	rows, err := s.q.QueryContext(ctx, q, pattern, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("exact search: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) SearchFuzzy(ctx context.Context, query string, threshold float64, limit int) ([]models.ScoredRecord, error) {
	q := `
		SELECT ` + recordColumns + `, similarity(entity_name, $1) AS score
		FROM sanctions
		WHERE similarity(entity_name, $1) > $2
		ORDER BY score DESC, id
		LIMIT $3`
	rows, err := s.q.QueryContext(ctx, q, query, threshold, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}
	return collectScored(rows)
}

func (s *PostgresStore) SearchVector(ctx context.Context, embedding []float32, limit int) ([]models.ScoredRecord, error) {
	q := `
		SELECT ` + recordColumns + `, embedding <=> $1 AS score
		FROM sanctions
		WHERE embedding IS NOT NULL
		ORDER BY score, id
		LIMIT $2`
	rows, err := s.q.QueryContext(ctx, q, pgvector.NewVector(embedding), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return collectScored(rows)
}

func (s *PostgresStore) ListByProfiles(ctx context.Context, profileIDs []uuid.UUID) ([]models.SanctionRecord, error) {
	if len(profileIDs) == 0 {
		return []models.SanctionRecord{}, nil
	}
	ids := make([]string, len(profileIDs))
	for i, id := range profileIDs {
		ids[i] = id.String()
	}
	q := `SELECT ` + recordColumns + ` FROM sanctions WHERE profile_id = ANY($1::uuid[]) ORDER BY id`
	rows, err := s.q.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list by profiles: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) ListUnassigned(ctx context.Context, limit int) ([]models.SanctionRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM sanctions WHERE profile_id IS NULL ORDER BY id LIMIT $1`
	rows, err := s.q.QueryContext(ctx, q, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list unassigned: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.SanctionRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM sanctions WHERE embedding IS NULL ORDER BY id LIMIT $1`
	rows, err := s.q.QueryContext(ctx, q, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list missing embeddings: %w", err)
	}
	return collectRecords(rows)
}

// SetEmbedding stores the vector for one record.
func (s *PostgresStore) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	res, err := s.q.ExecContext(ctx, `UPDATE sanctions SET embedding = $2 WHERE id = $1`, id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return requireAffected(res, fmt.Sprintf("record %d", id))
}

func (s *PostgresStore) ListDataIDs(ctx context.Context, source string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT data_id FROM sanctions WHERE source = $1 ORDER BY data_id`, source)
	if err != nil {
		return nil, fmt.Errorf("list data ids: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan data id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data ids: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec models.CanonicalRecord) (bool, error) {
	if rec.Source == "" || rec.DataID == "" {
		return false, fmt.Errorf("upsert %s/%s: %w", rec.Source, rec.DataID, sentinel.ErrInvalidState)
	}
	lists, err := encodeLists(rec)
	if err != nil {
		return false, err
	}
	// xmax is zero only for a freshly inserted tuple.
	query := `
		INSERT INTO sanctions (
			source, data_id, entity_name, program, remarks, reference_number, list_type,
			gender, nationality, listed_on, sanction_date, last_updated,
			aliases, addresses, designations, birth_dates, birth_places, documents, strong_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULLIF($19, ''))
		ON CONFLICT (source, data_id) DO UPDATE SET
			entity_name = EXCLUDED.entity_name,
			program = EXCLUDED.program,
			remarks = EXCLUDED.remarks,
			reference_number = EXCLUDED.reference_number,
			list_type = EXCLUDED.list_type,
			gender = EXCLUDED.gender,
			nationality = EXCLUDED.nationality,
			listed_on = EXCLUDED.listed_on,
			sanction_date = EXCLUDED.sanction_date,
			last_updated = EXCLUDED.last_updated,
			aliases = EXCLUDED.aliases,
			addresses = EXCLUDED.addresses,
			designations = EXCLUDED.designations,
			birth_dates = EXCLUDED.birth_dates,
			birth_places = EXCLUDED.birth_places,
			documents = EXCLUDED.documents,
			strong_key = EXCLUDED.strong_key,
			updated_at = NOW()
		RETURNING (xmax = 0)`
	var inserted bool
	err = s.q.QueryRowContext(ctx, query,
		rec.Source,
		rec.DataID,
		rec.EntityName,
		rec.Program,
		rec.Remarks,
		rec.ReferenceNumber,
		rec.ListType,
		rec.Gender,
		rec.Nationality,
		rec.ListedOn,
		rec.SanctionDate,
		rec.LastUpdated,
		lists[0], lists[1], lists[2], lists[3], lists[4], lists[5],
		rec.StrongKey,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert %s/%s: %w", rec.Source, rec.DataID, err)
	}
	return inserted, nil
}

func (s *PostgresStore) DeleteByDataIDs(ctx context.Context, source string, dataIDs []string) (int, error) {
	if len(dataIDs) == 0 {
		return 0, nil
	}
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM sanctions WHERE source = $1 AND data_id = ANY($2::text[])`, source, pq.Array(dataIDs))
	if err != nil {
		return 0, fmt.Errorf("delete stale records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale records rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) SharedStrongKeys(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT strong_key
		FROM sanctions
		WHERE strong_key IS NOT NULL
		GROUP BY strong_key
		HAVING COUNT(*) > 1
		ORDER BY strong_key`)
	if err != nil {
		return nil, fmt.Errorf("shared strong keys: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan strong key: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strong keys: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListByStrongKey(ctx context.Context, key string) ([]models.SanctionRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM sanctions WHERE strong_key = $1 ORDER BY created_at, id`
	rows, err := s.q.QueryContext(ctx, q, key)
	if err != nil {
		return nil, fmt.Errorf("list by strong key: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) CreateProfile(ctx context.Context, profile models.IdentityProfile) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO identity_profiles (id, primary_name, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, NOW()), COALESCE($4, NOW()))`,
		profile.ID, profile.PrimaryName, nullTime(profile.CreatedAt), nullTime(profile.UpdatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("profile %s: %w", profile.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) AssignProfile(ctx context.Context, profileID uuid.UUID, recordIDs []int64) (int, error) {
	if len(recordIDs) == 0 {
		return 0, nil
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE sanctions SET profile_id = $1
		WHERE id = ANY($2::bigint[]) AND profile_id IS NULL`,
		profileID, pq.Array(recordIDs))
	if err != nil {
		return 0, fmt.Errorf("assign profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("assign profile rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) TouchProfile(ctx context.Context, profileID uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, `UPDATE identity_profiles SET updated_at = NOW() WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("touch profile: %w", err)
	}
	return requireAffected(res, "profile "+profileID.String())
}

// Ping reports whether the database answers.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, extra ...any) (*models.SanctionRecord, error) {
	var (
		rec                                 models.SanctionRecord
		listedOn, sanctionDate, lastUpdated sql.NullTime
		aliases, addresses, designations    []byte
		birthDates, birthPlaces, documents  []byte
		profileID                           uuid.NullUUID
	)
	dest := []any{
		&rec.ID, &rec.Source, &rec.DataID, &rec.EntityName, &rec.Program, &rec.Remarks,
		&rec.ReferenceNumber, &rec.ListType, &rec.Gender, &rec.Nationality,
		&listedOn, &sanctionDate, &lastUpdated,
		&aliases, &addresses, &designations, &birthDates, &birthPlaces, &documents,
		&rec.StrongKey, &profileID, &rec.HasEmbedding, &rec.CreatedAt, &rec.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.ListedOn = timePtr(listedOn)
	rec.SanctionDate = timePtr(sanctionDate)
	rec.LastUpdated = timePtr(lastUpdated)
	if profileID.Valid {
		id := profileID.UUID
		rec.ProfileID = &id
	}
	decoders := []struct {
		raw  []byte
		into any
	}{
		{aliases, &rec.Aliases},
		{addresses, &rec.Addresses},
		{designations, &rec.Designations},
		{birthDates, &rec.BirthDates},
		{birthPlaces, &rec.BirthPlaces},
		{documents, &rec.Documents},
	}
	for _, d := range decoders {
		if len(d.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(d.raw, d.into); err != nil {
			return nil, fmt.Errorf("decode record %d lists: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]models.SanctionRecord, error) {
	defer rows.Close()
	out := make([]models.SanctionRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func collectScored(rows *sql.Rows) ([]models.ScoredRecord, error) {
	defer rows.Close()
	out := make([]models.ScoredRecord, 0)
	for rows.Next() {
		var score float64
		rec, err := scanRecord(rows, &score)
		if err != nil {
			return nil, fmt.Errorf("scan scored record: %w", err)
		}
		out = append(out, models.ScoredRecord{Record: *rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scored records: %w", err)
	}
	return out, nil
}

// encodeLists serializes the JSONB columns in insert order. Nil slices are
// stored as empty arrays.
func encodeLists(rec models.CanonicalRecord) ([6]string, error) {
	values := []any{
		orEmpty(rec.Aliases),
		orEmpty(rec.Addresses),
		orEmpty(rec.Designations),
		orEmpty(rec.BirthDates),
		orEmpty(rec.BirthPlaces),
		orEmpty(rec.Documents),
	}
	var out [6]string
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("encode record %s/%s: %w", rec.Source, rec.DataID, err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// limitArg maps a non-positive limit to SQL "LIMIT NULL" (no limit).
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}
