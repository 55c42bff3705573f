// Package sqlite stores expense items in a local SQLite database. Each item
// is a row in records plus one row per attribute, tagged with its kind.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	applog "expensetracker/internal/log"
	"expensetracker/internal/store"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Put replaces every attribute of the item in one transaction.
func (r *Repository) Put(ctx context.Context, it store.Item) error {
	id := it.ID()
	if id == "" {
		return errors.New("item has no id")
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureRecord(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("clear attributes: %w", err)
		}
		if err := upsertAttributes(ctx, tx, id, it); err != nil {
			return err
		}
		logger().DebugContext(ctx, "Item saved to SQLite", "id", id, "attributes", len(it))
		return nil
	})
}

// UpdateFields upserts the given attributes in one transaction. A missing
// record row is created first.
func (r *Repository) UpdateFields(ctx context.Context, id string, fields store.Item) error {
	if id == "" {
		return errors.New("empty id")
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureRecord(ctx, tx, id); err != nil {
			return err
		}
		return upsertAttributes(ctx, tx, id, fields)
	})
}

// DeleteByID removes the record and its attributes.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attributes WHERE record_id = ?`, id); err != nil {
			return fmt.Errorf("delete attributes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
}

// ScanAll returns every item ordered by creation.
func (r *Repository) ScanAll(ctx context.Context) ([]store.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, a.name, a.kind, a.value
		FROM records r
		LEFT JOIN attributes a ON a.record_id = r.id
		ORDER BY r.seq, a.name`)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	var (
		out     []store.Item
		current store.Item
	)
	for rows.Next() {
		var (
			id                string
			name, kind, value sql.NullString
		)
		if err := rows.Scan(&id, &name, &kind, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if current == nil || current.ID() != id {
			current = store.Item{"id": store.S(id)}
			out = append(out, current)
		}
		if !name.Valid {
			continue
		}
		k, err := store.ParseKind(kind.String)
		if err != nil {
			logger().WarnContext(ctx, "Skipping attribute with unknown kind", "id", id, "name", name.String, "kind", kind.String)
			continue
		}
		current[name.String] = store.Value{Kind: k, Raw: value.String}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func ensureRecord(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO records (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func upsertAttributes(ctx context.Context, tx *sql.Tx, id string, fields store.Item) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attributes (record_id, name, kind, value) VALUES (?, ?, ?, ?)
		ON CONFLICT(record_id, name) DO UPDATE SET kind = excluded.kind, value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare attribute upsert: %w", err)
	}
	defer stmt.Close()

	for name, v := range fields {
		if name == "id" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, name, v.Kind.String(), v.Raw); err != nil {
			return fmt.Errorf("upsert attribute %s: %w", name, err)
		}
	}
	return nil
}

func logger() *slog.Logger {
	return slog.Default().With(applog.FieldComponent, applog.ComponentStorage)
}
