// Package kvstore provides the embedded key-value backends the cache store
// and quota tracker persist through.
package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/posterfall/ratingscout/internal/domain"
)

// SqliteStore implements domain.KVStore on an embedded sqlite database.
type SqliteStore struct {
	handler  *sql.DB
	log      zerolog.Logger
	squirrel sq.StatementBuilderType
}

var _ domain.KVStore = (*SqliteStore)(nil)

// NewSqliteStore opens (or creates) the database under dir and migrates the
// schema if needed.
func NewSqliteStore(dir string, log zerolog.Logger) (*SqliteStore, error) {
	s := &SqliteStore{
		log:      log.With().Str("module", "kvstore").Logger(),
		squirrel: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	dsn := filepath.Join(dir, "ratingscout.db") + "?_pragma=busy_timeout%3d1000"

	var err error
	s.handler, err = sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to database")
	}

	if _, err = s.handler.Exec(`PRAGMA journal_mode = wal;`); err != nil {
		return nil, errors.Wrap(err, "unable to enable WAL mode")
	}

	if err := s.migrate(); err != nil {
		s.handler.Close()
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	return s, nil
}

// migrate handles schema creation and upgrades using PRAGMA user_version.
func (s *SqliteStore) migrate() error {
	var version int
	if err := s.handler.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "failed to query schema version")
	}

	if version == len(migrations) {
		return nil
	} else if version > len(migrations) {
		return errors.Errorf("database schema version (%d) is newer than supported (%d)", version, len(migrations))
	}

	s.log.Info().Msgf("Beginning database schema upgrade from version %v to version: %v", version, len(migrations))

	tx, err := s.handler.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if version == 0 {
		if _, err := tx.Exec(schema); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
	} else {
		for i := version; i < len(migrations); i++ {
			if migrations[i] == "" {
				continue
			}
			s.log.Info().Msgf("Upgrading database schema to version: %v", i+1)
			if _, err := tx.Exec(migrations[i]); err != nil {
				return errors.Wrapf(err, "failed to execute migration #%v", i)
			}
		}
	}

	if _, err = tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return errors.Wrap(err, "failed to bump schema version")
	}

	return tx.Commit()
}

func (s *SqliteStore) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	queryBuilder := s.squirrel.
		Select("key", "value").
		From("kv").
		Where(sq.Eq{"key": keys})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	s.log.Trace().Str("query", query).Interface("args", args).Msg("GetMany")

	rows, err := s.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return result, nil
}

func (s *SqliteStore) SetMany(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().Format(time.RFC3339)

	queryBuilder := s.squirrel.
		Replace("kv").
		Columns("key", "value", "updated_at")
	for key, value := range items {
		queryBuilder = queryBuilder.Values(key, value, now)
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	s.log.Trace().Str("query", query).Msg("SetMany")

	if _, err = s.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

func (s *SqliteStore) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	queryBuilder := s.squirrel.
		Delete("kv").
		Where(sq.Eq{"key": keys})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	s.log.Trace().Str("query", query).Interface("args", args).Msg("RemoveMany")

	if _, err = s.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	return nil
}

func (s *SqliteStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	queryBuilder := s.squirrel.
		Select("key").
		From("kv").
		// Keys are normalized to [a-z0-9 |:] so the prefix never carries
		// LIKE wildcards.
		Where(sq.Like{"key": prefix + "%"})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	s.log.Trace().Str("query", query).Interface("args", args).Msg("ListKeys")

	rows, err := s.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return keys, nil
}

// Close runs query planner optimization and closes the connection.
func (s *SqliteStore) Close() error {
	if _, err := s.handler.Exec(`PRAGMA optimize;`); err != nil {
		return errors.Wrap(err, "query planner optimization")
	}

	return s.handler.Close()
}
