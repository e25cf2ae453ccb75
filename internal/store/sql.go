package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/commissar/internal/core/db"
	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/types"
)

/*
 * SQL-backed record store.
 *
 * Each record is one row in records with its scalar fields JSON-encoded.
 * record_index holds one row per field with the value's canonical key so
 * lookup-by-criteria is an indexed equality query per criterion; the
 * per-criterion ID lists are intersected in memory.
 *
 * A save runs in one transaction covering the record, its index rows and
 * every child collection. Identities are assigned to the in-memory records
 * only after commit, so a failed save leaves new records new.
 */

// recordRow maps a records table row.
type recordRow struct {
	ID        string    `db:"record_id"`
	Type      string    `db:"type_name"`
	Fields    string    `db:"fields"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SQLStore persists records through sqlx.
type SQLStore struct {
	db      *sqlx.DB
	queries *db.Queries
	schema  *Schema
	logger  *slog.Logger
	now     func() time.Time
}

// NewSQLStore wraps an open, migrated connection. schema may be nil.
func NewSQLStore(conn *sqlx.DB, schema *Schema, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: conn, queries: queries, schema: schema, logger: logger, now: time.Now}, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, rec *entity.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}

	var commit []func()
	if err := s.saveTx(ctx, s.queries.WithTx(tx), rec, 0, &commit); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	for _, fn := range commit {
		fn()
	}
	s.logger.Debug("Saved record", "type", rec.TypeName(), "id", rec.ID())
	return nil
}

func (s *SQLStore) saveTx(ctx context.Context, q *db.Queries, rec *entity.Record, depth int, commit *[]func()) error {
	if depth > types.MaxPathDepth {
		return fmt.Errorf("%s: children nest deeper than %d", rec, types.MaxPathDepth)
	}
	children, err := childrenToSave(s.schema, rec)
	if err != nil {
		return err
	}

	fields := rec.Fields()
	data, err := json.Marshal(entity.EncodeFields(fields))
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec, err)
	}

	now := s.now().UTC()
	id := rec.ID()
	created := rec.IsNew()
	if created {
		id = string(types.NewRecordID())
	} else {
		res, err := q.Exec(ctx, "update-record", string(data), now, id, rec.TypeName())
		if err != nil {
			return fmt.Errorf("update %s: %w", rec, err)
		}
		// A client-supplied ID that was never stored is inserted as-is.
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			created = true
		}
	}
	if created {
		if _, err := q.Exec(ctx, "insert-record", id, rec.TypeName(), string(data), now, now); err != nil {
			return fmt.Errorf("insert %s: %w", rec, err)
		}
	}

	if _, err := q.Exec(ctx, "delete-record-index", id); err != nil {
		return fmt.Errorf("clear index for %s: %w", rec, err)
	}
	for field, value := range fields {
		if _, err := q.Exec(ctx, "insert-record-index", id, rec.TypeName(), field, valueKey(value)); err != nil {
			return fmt.Errorf("index %s.%s: %w", rec, field, err)
		}
	}

	*commit = append(*commit, func() {
		rec.MarkPersisted(id)
		if created {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		rec.Attach(s)
	})

	for _, set := range children {
		for _, kid := range set.kids {
			kid.Set(set.assoc.ForeignKey, id)
			if err := s.saveTx(ctx, q, kid, depth+1, commit); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindByID implements entity.Repository.
func (s *SQLStore) FindByID(ctx context.Context, typeName, id string) (*entity.Record, error) {
	var row recordRow
	err := s.queries.Get(ctx, "get-record", &row, id, typeName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", typeName, id, types.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", typeName, id, err)
	}

	rec, err := s.decode(row)
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, s, s.schema, rec, 0); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByCriteria implements entity.Repository. Results are ordered by ID.
func (s *SQLStore) FindByCriteria(ctx context.Context, typeName string, criteria []entity.Criterion) ([]*entity.Record, error) {
	if len(criteria) == 0 {
		return nil, fmt.Errorf("find %s: no criteria", typeName)
	}

	var ids []string
	for i, c := range criteria {
		var matched []string
		if err := s.queries.Select(ctx, "find-record-ids-by-field", &matched, typeName, c.Field, valueKey(c.Value)); err != nil {
			return nil, fmt.Errorf("find %s by %s: %w", typeName, c.Field, err)
		}
		if i == 0 {
			ids = matched
		} else {
			ids = intersect(ids, matched)
		}
		if len(ids) == 0 {
			return nil, nil
		}
	}

	var rows []recordRow
	if err := s.queries.SelectIn(ctx, "get-records-by-ids", &rows, typeName, ids); err != nil {
		return nil, fmt.Errorf("load %s records: %w", typeName, err)
	}

	out := make([]*entity.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLStore) decode(row recordRow) (*entity.Record, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(row.Fields), &raw); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", row.Type, row.ID, err)
	}
	fields, err := entity.DecodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", row.Type, row.ID, err)
	}

	rec := entity.NewRecord(row.Type, fields)
	rec.MarkPersisted(row.ID)
	rec.CreatedAt = row.CreatedAt
	rec.UpdatedAt = row.UpdatedAt
	rec.Attach(s)
	return rec, nil
}

// intersect keeps the elements of a that also appear in b, in a's order.
func intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	out := a[:0]
	for _, id := range a {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
