package mystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresStore keeps one table per entity kind, with the entity serialized
// as a JSONB document keyed by uid. Filterable fields are addressed with
// JSON-path expressions, so no per-kind schema is needed.
type postgresStore[T any] struct {
	pool  *pgxpool.Pool
	table string
}

func newPostgresStore[T any](c context.Context) (*postgresStore[T], func(), error) {
	pool, err := pgxpool.New(c, os.Getenv("POSTGRES_URL"))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating postgres pool: %s", err)
	}

	table := strings.ToLower(kindForType[T]())

	_, err = pool.Exec(c, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (uid TEXT PRIMARY KEY, value JSONB NOT NULL)`, table))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("error creating table %s: %s", table, err)
	}

	return &postgresStore[T]{
			pool:  pool,
			table: table,
		}, func() {
			pool.Close()
		}, nil
}

type ctxPgxTxKey struct{}

func (s *postgresStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	tx, err := s.pool.Begin(c)
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	// Shadow original context with new transactional context
	ctx := context.WithValue(c, ctxPgxTxKey{}, tx)

	err = f(ctx)
	if err != nil {
		rollbackErr := tx.Rollback(c)
		if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			return fmt.Errorf("error rolling back transaction: %s (original error: %s)", rollbackErr, err)
		}

		return err
	}

	err = tx.Commit(c)
	if err != nil {
		return fmt.Errorf("error committing transaction: %s", err)
	}

	return nil
}

func (s *postgresStore[T]) Put(c context.Context, uid string, value T) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error marshalling entity %s with uid %s: %s", s.table, uid, err)
	}

	sql := fmt.Sprintf(
		`INSERT INTO %s (uid, value) VALUES ($1, $2)
		 ON CONFLICT (uid) DO UPDATE SET value = EXCLUDED.value`, s.table)

	if tx, ok := c.Value(ctxPgxTxKey{}).(pgx.Tx); ok {
		_, err = tx.Exec(c, sql, uid, jsonValue)
	} else {
		_, err = s.pool.Exec(c, sql, uid, jsonValue)
	}
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %s", s.table, uid, err)
	}

	return nil
}

func (s *postgresStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	value := new(T)

	sql := fmt.Sprintf(`SELECT value FROM %s WHERE uid = $1`, s.table)

	var row pgx.Row
	if tx, ok := c.Value(ctxPgxTxKey{}).(pgx.Tx); ok {
		row = tx.QueryRow(c, sql, uid)
	} else {
		row = s.pool.QueryRow(c, sql, uid)
	}

	var jsonValue []byte
	err := row.Scan(&jsonValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return *value, false, nil
		}
		return *value, false, fmt.Errorf("error fetching entity %s with uid %s: %s", s.table, uid, err)
	}

	err = json.Unmarshal(jsonValue, value)
	if err != nil {
		return *value, false, fmt.Errorf("error unmarshalling entity %s with uid %s: %s", s.table, uid, err)
	}

	return *value, true, nil
}

func (s *postgresStore[T]) List(c context.Context) ([]T, error) {
	return s.rows(c, fmt.Sprintf(`SELECT value FROM %s`, s.table))
}

func (s *postgresStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	sql := fmt.Sprintf(`SELECT value FROM %s`, s.table)

	args := []any{}
	clauses := []string{}
	for _, f := range filters {
		args = append(args, fmt.Sprintf("%v", f.Value))
		clauses = append(clauses, fmt.Sprintf(`value->>'%s' %s $%d`, f.Field, f.Compare, len(args)))
	}
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	if orderByField != "" {
		sql += fmt.Sprintf(` ORDER BY value->>'%s'`, orderByField)
	}

	return s.rows(c, sql, args...)
}

func (s *postgresStore[T]) rows(c context.Context, sql string, args ...any) ([]T, error) {
	var rows pgx.Rows
	var err error
	if tx, ok := c.Value(ctxPgxTxKey{}).(pgx.Tx); ok {
		rows, err = tx.Query(c, sql, args...)
	} else {
		rows, err = s.pool.Query(c, sql, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying entities %s: %s", s.table, err)
	}
	defer rows.Close()

	results := []T{}
	for rows.Next() {
		var jsonValue []byte
		err = rows.Scan(&jsonValue)
		if err != nil {
			return nil, fmt.Errorf("error scanning entity %s: %s", s.table, err)
		}

		value := new(T)
		err = json.Unmarshal(jsonValue, value)
		if err != nil {
			return nil, fmt.Errorf("error unmarshalling entity %s: %s", s.table, err)
		}
		results = append(results, *value)
	}

	return results, rows.Err()
}
