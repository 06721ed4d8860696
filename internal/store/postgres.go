package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-verify/internal/db"
	"github.com/sells-group/provider-verify/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS providers (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id              TEXT NOT NULL,
	country              TEXT NOT NULL,
	npi_number           TEXT,
	provider_id          TEXT,
	name                 TEXT NOT NULL,
	first_name           TEXT,
	last_name            TEXT,
	phone                TEXT,
	address_line1        TEXT,
	address_line2        TEXT,
	city                 TEXT,
	state                TEXT,
	postal_code          TEXT,
	specialty            TEXT,
	organization_name    TEXT,
	taxonomy_code        TEXT,
	taxonomy_description TEXT,
	enumeration_type     TEXT,
	raw_payload          JSONB,
	source               TEXT NOT NULL,
	correctness_score    INTEGER,
	needs_review         BOOLEAN NOT NULL DEFAULT FALSE,
	last_synced_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_user_country_npi
	ON providers(user_id, country, npi_number) WHERE npi_number IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_user_country_pid
	ON providers(user_id, country, provider_id) WHERE provider_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_providers_user_created
	ON providers(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sync_history (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id           TEXT NOT NULL,
	action            TEXT NOT NULL,
	country           TEXT NOT NULL,
	identifier        TEXT,
	correctness_score INTEGER,
	field_scores      JSONB,
	notes             TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sync_history_user_created
	ON sync_history(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sync_history_created
	ON sync_history(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const providerColumns = `id, user_id, country, npi_number, provider_id, name, first_name, last_name,
	phone, address_line1, address_line2, city, state, postal_code, specialty,
	organization_name, taxonomy_code, taxonomy_description, enumeration_type,
	raw_payload, source, correctness_score, needs_review, last_synced_at, created_at, updated_at`

const providerUpdateSet = `name = EXCLUDED.name, first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name, phone = EXCLUDED.phone,
	address_line1 = EXCLUDED.address_line1, address_line2 = EXCLUDED.address_line2,
	city = EXCLUDED.city, state = EXCLUDED.state, postal_code = EXCLUDED.postal_code,
	specialty = EXCLUDED.specialty, organization_name = EXCLUDED.organization_name,
	taxonomy_code = EXCLUDED.taxonomy_code, taxonomy_description = EXCLUDED.taxonomy_description,
	enumeration_type = EXCLUDED.enumeration_type, raw_payload = EXCLUDED.raw_payload,
	source = EXCLUDED.source, correctness_score = EXCLUDED.correctness_score,
	needs_review = EXCLUDED.needs_review, last_synced_at = EXCLUDED.last_synced_at,
	updated_at = EXCLUDED.updated_at`

// UpsertProvider inserts or fully replaces the record for its
// (user, country, identifier) key. The conflict target follows the
// identifier column for the record's country, so US and IN records never
// collide on NULL identifiers.
func (s *PostgresStore) UpsertProvider(ctx context.Context, rec model.SavedProvider) (*model.SavedProvider, error) {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.LastSyncedAt.IsZero() {
		rec.LastSyncedAt = now
	}
	rec.UpdatedAt = now

	conflict := `(user_id, country, npi_number) WHERE npi_number IS NOT NULL`
	if rec.Country == model.CountryIN {
		conflict = `(user_id, country, provider_id) WHERE provider_id IS NOT NULL`
	}

	query := `INSERT INTO providers (` + providerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT ` + conflict + ` DO UPDATE SET ` + providerUpdateSet + `
		RETURNING id, created_at`

	row := s.pool.QueryRow(ctx, query,
		rec.ID, rec.UserID, string(rec.Country),
		nullString(rec.NPINumber), nullString(rec.ProviderID),
		rec.Name, nullString(rec.FirstName), nullString(rec.LastName),
		nullString(rec.Phone), nullString(rec.AddressLine1), nullString(rec.AddressLine2),
		nullString(rec.City), nullString(rec.State), nullString(rec.PostalCode),
		nullString(rec.Specialty), nullString(rec.OrganizationName),
		nullString(rec.TaxonomyCode), nullString(rec.TaxonomyDesc),
		nullString(rec.EnumerationType), []byte(rec.RawPayload), string(rec.Source),
		rec.CorrectnessScore, rec.NeedsReview, rec.LastSyncedAt, now, now,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert provider")
	}
	return &rec, nil
}

func (s *PostgresStore) GetProvider(ctx context.Context, userID string, country model.Country, identifier string) (*model.SavedProvider, error) {
	column := "npi_number"
	if country == model.CountryIN {
		column = "provider_id"
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE user_id = $1 AND country = $2 AND `+column+` = $3`,
		userID, string(country), identifier,
	)
	rec, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get provider")
	}
	return rec, nil
}

func (s *PostgresStore) ListProviders(ctx context.Context, userID string, filter ProviderFilter) ([]model.SavedProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE user_id = $1`
	args := []any{userID}
	if filter.Country != "" {
		query += ` AND country = $2`
		args = append(args, string(filter.Country))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list providers")
	}
	defer rows.Close()

	var out []model.SavedProvider
	for rows.Next() {
		rec, err := scanProvider(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list providers rows")
}

func (s *PostgresStore) AppendAudit(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	var fieldScores []byte
	if entry.FieldScores != nil {
		var err error
		fieldScores, err = json.Marshal(entry.FieldScores)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal field scores")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_history (id, user_id, action, country, identifier, correctness_score, field_scores, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, string(entry.Action), string(entry.Country),
		nullString(entry.Identifier), entry.CorrectnessScore, fieldScores,
		nullString(entry.Notes), entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: append audit")
	}
	return &entry, nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, userID string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, action, country, identifier, correctness_score, field_scores, notes, created_at
		 FROM sync_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()
	return collectAudit(rows)
}

func (s *PostgresStore) ListAuditSince(ctx context.Context, since time.Time, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, action, country, identifier, correctness_score, field_scores, notes, created_at
		 FROM sync_history WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit since")
	}
	defer rows.Close()
	return collectAudit(rows)
}

func collectAudit(rows pgx.Rows) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	for rows.Next() {
		var (
			e           model.AuditEntry
			action      string
			country     string
			identifier  sql.NullString
			notes       sql.NullString
			fieldScores []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &country, &identifier,
			&e.CorrectnessScore, &fieldScores, &notes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		e.Action = model.AuditAction(action)
		e.Country = model.Country(country)
		e.Identifier = identifier.String
		e.Notes = notes.String
		if len(fieldScores) > 0 {
			if err := json.Unmarshal(fieldScores, &e.FieldScores); err != nil {
				return nil, eris.Wrap(err, "postgres: decode field scores")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: audit rows")
}

// scanner covers both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(row scanner) (*model.SavedProvider, error) {
	var (
		rec        model.SavedProvider
		country    string
		source     string
		npi        sql.NullString
		pid        sql.NullString
		optionals  = make([]sql.NullString, 13)
		rawPayload []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &country, &npi, &pid, &rec.Name,
		&optionals[0], &optionals[1], &optionals[2], &optionals[3], &optionals[4],
		&optionals[5], &optionals[6], &optionals[7], &optionals[8], &optionals[9],
		&optionals[10], &optionals[11], &optionals[12],
		&rawPayload, &source, &rec.CorrectnessScore, &rec.NeedsReview,
		&rec.LastSyncedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Country = model.Country(country)
	rec.Source = model.Source(source)
	rec.NPINumber = npi.String
	rec.ProviderID = pid.String
	rec.FirstName = optionals[0].String
	rec.LastName = optionals[1].String
	rec.Phone = optionals[2].String
	rec.AddressLine1 = optionals[3].String
	rec.AddressLine2 = optionals[4].String
	rec.City = optionals[5].String
	rec.State = optionals[6].String
	rec.PostalCode = optionals[7].String
	rec.Specialty = optionals[8].String
	rec.OrganizationName = optionals[9].String
	rec.TaxonomyCode = optionals[10].String
	rec.TaxonomyDesc = optionals[11].String
	rec.EnumerationType = optionals[12].String
	rec.RawPayload = rawPayload
	return &rec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
