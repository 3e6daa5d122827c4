// Package sqlstore persists records as JSON documents in a single MySQL table.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"model-graphql/internal/store"

	sq "github.com/Masterminds/squirrel"
	"github.com/XSAM/otelsql"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TableName is the document table.
const TableName = "nodes"

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
  seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  model VARCHAR(191) NOT NULL,
  id VARCHAR(64) NOT NULL,
  data JSON NOT NULL,
  UNIQUE KEY model_id (model, id)
)`

// Config controls the MySQL connection.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Instrument      bool
}

// Store implements store.Store on MySQL.
type Store struct {
	db    *sql.DB
	newID func() string
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// Open connects to MySQL, verifies the connection, and creates the document table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	mysqlCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	mysqlCfg.ParseTime = true
	dsn := mysqlCfg.FormatDSN()

	var db *sql.DB
	if cfg.Instrument {
		db, err = otelsql.Open("mysql", dsn, otelsql.WithAttributes(semconv.DBSystemMySQL))
	} else {
		db, err = sql.Open("mysql", dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the document table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create %s table: %w", TableName, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func selectData(model string) sq.SelectBuilder {
	return sq.Select("data").From(TableName).Where(sq.Eq{"model": model})
}

func (s *Store) query(ctx context.Context, q queryer, builder sq.SelectBuilder) ([]store.Record, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec := store.Record{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode stored record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) getOne(ctx context.Context, q queryer, model, id string, forUpdate bool) (store.Record, error) {
	builder := selectData(model).Where(sq.Eq{"id": id}).Limit(1)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	recs, err := s.query(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return recs[0], nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, model string) ([]store.Record, error) {
	return s.query(ctx, s.db, selectData(model).OrderBy("seq"))
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, model, id string) (store.Record, error) {
	return s.getOne(ctx, s.db, model, id, false)
}

// FindByField implements store.Store.
func (s *Store) FindByField(ctx context.Context, model, field string, value any) ([]store.Record, error) {
	builder := selectData(model).
		Where("JSON_UNQUOTE(JSON_EXTRACT(data, ?)) = ?", "$."+field, fmt.Sprint(value)).
		OrderBy("seq")
	return s.query(ctx, s.db, builder)
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, model string, data store.Record) (store.Record, error) {
	rec := data.Clone()
	if rec == nil {
		rec = store.Record{}
	}
	id := s.newID()
	rec["id"] = id
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	query, args, err := sq.Insert(TableName).Columns("model", "id", "data").Values(model, id, payload).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, model, id string, patch store.Record) (result store.Record, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getOne(ctx, tx, model, id, true)
		if err != nil {
			return err
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			current[k] = v
		}
		payload, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		query, args, err := sq.Update(TableName).
			Set("data", payload).
			Where(sq.Eq{"model": model}).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		result = current
		return nil
	})
	return result, err
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, model, id string) (result store.Record, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getOne(ctx, tx, model, id, true)
		if err != nil {
			return err
		}
		query, args, err := sq.Delete(TableName).
			Where(sq.Eq{"model": model}).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		result = current
		return nil
	})
	return result, err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
