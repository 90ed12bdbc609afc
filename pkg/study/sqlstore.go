package study

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// SQLStore persists the result cache in a relational table, one row
// per entry keyed by the cache key. The insert ignores duplicate keys
// so concurrent writers race harmlessly.
type SQLStore struct {
	db    *sqlx.DB
	table string
}

type cacheRow struct {
	CacheKey string `db:"cache_key"`
	Payload  []byte `db:"payload"`
}

func NewSQLStore(db *sqlx.DB, table string) *SQLStore {
	if table == "" {
		table = "study_results"
	}
	return &SQLStore{db: db, table: table}
}

// Schema returns the DDL for the backing table.
func (s *SQLStore) Schema() string {
	return `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
    cache_key  VARCHAR(64) NOT NULL PRIMARY KEY,
    created_at DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
    payload    MEDIUMTEXT  NOT NULL
)`
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.Schema())
	return errors.Wrap(err, "study: migrating cache table")
}

func (s *SQLStore) Get(ctx context.Context, key Key) (*Record, error) {
	var row cacheRow
	err := s.db.GetContext(ctx, &row,
		"SELECT cache_key, payload FROM "+s.table+" WHERE cache_key = ?", string(key))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "study: cache select")
	}

	var record Record
	if err := json.Unmarshal(row.Payload, &record); err != nil {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s: undecodable entry", key)
	}
	if record.Key != key {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s: entry labeled %s", key, record.Key)
	}
	if err := record.Verify(); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SQLStore) Set(ctx context.Context, record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "study: encoding cache entry")
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT IGNORE INTO "+s.table+" (cache_key, payload) VALUES (?, ?)",
		string(record.Key), payload)
	return errors.Wrap(err, "study: cache insert")
}
