/*
Copyright 2025 The Kubeflow authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package handle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"sigs.k8s.io/yaml"
)

// DB is the subset of a pgx connection or pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps handles as rows of a table keyed by handle key.
type PostgresStore struct {
	db    DB
	table string
}

var _ Store = &PostgresStore{}

// NewPostgresStore creates table if it does not exist and returns a store
// backed by it.
func NewPostgresStore(ctx context.Context, db DB, table string) (*PostgresStore, error) {
	s := &PostgresStore{db: db, table: pgx.Identifier{table}.Sanitize()}
	_, err := db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key text PRIMARY KEY,
	handle text NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %v", s.table, err)
	}
	return s, nil
}

func newPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}
	return pool, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, h Handle) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode session handle: %v", err)
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (key, handle, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET handle = EXCLUDED.handle, updated_at = now()`, s.table), key, string(data))
	if err != nil {
		return fmt.Errorf("failed to save session handle %s: %v", key, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) (Handle, error) {
	if err := ValidateKey(key); err != nil {
		return Handle{}, err
	}
	var data string
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT handle FROM %s WHERE key = $1`, s.table), key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Handle{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Handle{}, fmt.Errorf("failed to load session handle %s: %v", key, err)
	}
	var h Handle
	if err := yaml.Unmarshal([]byte(data), &h); err != nil {
		return Handle{}, fmt.Errorf("failed to decode session handle %s: %v", key, err)
	}
	return h, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table), key)
	if err != nil {
		return fmt.Errorf("failed to delete session handle %s: %v", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}
