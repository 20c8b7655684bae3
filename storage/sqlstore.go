package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"

	"github.com/golang/glog"
	"github.com/trillian-merkle/fuelmerkle/common"
)

// sqlSchema matches the row shape trillian's own MySQL-backed storage
// uses for tree nodes: a composite (prefix, key) primary key and an
// opaque node blob the SQL layer never interprets.
const sqlSchema = `
CREATE TABLE IF NOT EXISTS merkle_nodes (
	prefix BINARY(32) NOT NULL,
	node_key BINARY(32) NOT NULL,
	node_bytes BLOB NOT NULL,
	PRIMARY KEY (prefix, node_key)
)`

// SQLStore is a Store backed by a SQL database via database/sql, wired to
// the MySQL driver. It demonstrates a row-oriented disk-backed KV store,
// a different shape than EtcdStore's key-range store, against the same
// Store interface every tree package consumes.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens dsn with the MySQL driver and ensures the backing
// table exists.
func NewSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &common.StorageError{Op: "sql.open", Err: err}
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		db.Close()
		return nil, &common.StorageError{Op: "sql.migrate", Err: err}
	}
	glog.V(1).Infof("storage: SQL backing store ready")
	return &SQLStore{db: db}, nil
}

// Close releases the underlying database connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Get(ctx context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	var node []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT node_bytes FROM merkle_nodes WHERE prefix = ? AND node_key = ?`,
		prefix[:], key[:]).Scan(&node)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, &common.StorageError{Op: "sql.get", Err: err}
	}
	return node, true, nil
}

func (s *SQLStore) Set(ctx context.Context, prefix, key common.Digest, node []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO merkle_nodes (prefix, node_key, node_bytes) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE node_bytes = VALUES(node_bytes)`,
		prefix[:], key[:], node)
	if err != nil {
		return &common.StorageError{Op: "sql.set", Err: err}
	}
	return nil
}

func (s *SQLStore) Take(ctx context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, &common.StorageError{Op: "sql.take.begin", Err: err}
	}
	defer tx.Rollback()

	var node []byte
	err = tx.QueryRowContext(ctx,
		`SELECT node_bytes FROM merkle_nodes WHERE prefix = ? AND node_key = ?`,
		prefix[:], key[:]).Scan(&node)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, &common.StorageError{Op: "sql.take.get", Err: err}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM merkle_nodes WHERE prefix = ? AND node_key = ?`,
		prefix[:], key[:]); err != nil {
		return nil, false, &common.StorageError{Op: "sql.take.delete", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, &common.StorageError{Op: "sql.take.commit", Err: err}
	}
	return node, true, nil
}
