package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/provider-verify/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend for single-user CLI use; the schema mirrors the postgres one.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS providers (
	id                   TEXT PRIMARY KEY,
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
	raw_payload          TEXT,
	source               TEXT NOT NULL,
	correctness_score    INTEGER,
	needs_review         INTEGER NOT NULL DEFAULT 0,
	last_synced_at       DATETIME NOT NULL,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_user_country_npi
	ON providers(user_id, country, npi_number) WHERE npi_number IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_user_country_pid
	ON providers(user_id, country, provider_id) WHERE provider_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_providers_user_created
	ON providers(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sync_history (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	action            TEXT NOT NULL,
	country           TEXT NOT NULL,
	identifier        TEXT,
	correctness_score INTEGER,
	field_scores      TEXT,
	notes             TEXT,
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_history_user_created
	ON sync_history(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sync_history_created
	ON sync_history(created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProvider(ctx context.Context, rec model.SavedProvider) (*model.SavedProvider, error) {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT ` + conflict + ` DO UPDATE SET ` + providerUpdateSet + `
		RETURNING id, created_at`

	row := s.db.QueryRowContext(ctx, query,
		rec.ID, rec.UserID, string(rec.Country),
		nullString(rec.NPINumber), nullString(rec.ProviderID),
		rec.Name, nullString(rec.FirstName), nullString(rec.LastName),
		nullString(rec.Phone), nullString(rec.AddressLine1), nullString(rec.AddressLine2),
		nullString(rec.City), nullString(rec.State), nullString(rec.PostalCode),
		nullString(rec.Specialty), nullString(rec.OrganizationName),
		nullString(rec.TaxonomyCode), nullString(rec.TaxonomyDesc),
		nullString(rec.EnumerationType), rawPayloadArg(rec.RawPayload), string(rec.Source),
		rec.CorrectnessScore, rec.NeedsReview, rec.LastSyncedAt, now, now,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert provider")
	}
	return &rec, nil
}

func (s *SQLiteStore) GetProvider(ctx context.Context, userID string, country model.Country, identifier string) (*model.SavedProvider, error) {
	column := "npi_number"
	if country == model.CountryIN {
		column = "provider_id"
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE user_id = ? AND country = ? AND `+column+` = ?`,
		userID, string(country), identifier,
	)
	rec, err := scanProvider(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get provider")
	}
	return rec, nil
}

func (s *SQLiteStore) ListProviders(ctx context.Context, userID string, filter ProviderFilter) ([]model.SavedProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE user_id = ?`
	args := []any{userID}
	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, string(filter.Country))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list providers")
	}
	defer rows.Close()

	var out []model.SavedProvider
	for rows.Next() {
		rec, err := scanProvider(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list providers rows")
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	var fieldScores any
	if entry.FieldScores != nil {
		b, err := json.Marshal(entry.FieldScores)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal field scores")
		}
		fieldScores = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_history (id, user_id, action, country, identifier, correctness_score, field_scores, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.Action), string(entry.Country),
		nullString(entry.Identifier), entry.CorrectnessScore, fieldScores,
		nullString(entry.Notes), entry.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: append audit")
	}
	return &entry, nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, userID string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, country, identifier, correctness_score, field_scores, notes, created_at
		 FROM sync_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()
	return collectAuditSQL(rows)
}

func (s *SQLiteStore) ListAuditSince(ctx context.Context, since time.Time, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, country, identifier, correctness_score, field_scores, notes, created_at
		 FROM sync_history WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit since")
	}
	defer rows.Close()
	return collectAuditSQL(rows)
}

func collectAuditSQL(rows *sql.Rows) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	for rows.Next() {
		var (
			e           model.AuditEntry
			action      string
			country     string
			identifier  sql.NullString
			notes       sql.NullString
			fieldScores sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &country, &identifier,
			&e.CorrectnessScore, &fieldScores, &notes, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		e.Action = model.AuditAction(action)
		e.Country = model.Country(country)
		e.Identifier = identifier.String
		e.Notes = notes.String
		if fieldScores.Valid && fieldScores.String != "" {
			if err := json.Unmarshal([]byte(fieldScores.String), &e.FieldScores); err != nil {
				return nil, eris.Wrap(err, "sqlite: decode field scores")
			}
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: audit rows")
}

func rawPayloadArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
