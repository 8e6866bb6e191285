// Package postgres adapts a JSONB table to the document repository
// contract. One row per document: a text primary key plus the full document
// as a jsonb payload.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/reisap/rest-hapi/repository/document"
	types "github.com/reisap/rest-hapi/types/http"
)

var _ document.Repository = &handler{}

const driverName = "postgres"

// Connect opens and pings a connection pool.
func Connect(conn string) (*sqlx.DB, error) {
	return sqlx.Connect(driverName, conn)
}

type handler struct {
	db    *sqlx.DB
	table string
}

func New(db *sqlx.DB, tableName string) *handler {
	return &handler{
		db:    db,
		table: pq.QuoteIdentifier(tableName),
	}
}

// Migrate creates the backing table when it does not exist.
func (h *handler) Migrate(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS "+h.table+" (id TEXT PRIMARY KEY, payload JSONB NOT NULL)")
	return err
}

func (h *handler) Find(ctx context.Context, q document.Query) ([]document.Data, *types.CommonError) {
	sqlQuery, args := h.buildSelect(q)

	rows, err := h.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var out []document.Data
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, dbError(err)
		}
		d, cerr := parsePayload(raw)
		if cerr != nil {
			return nil, cerr
		}
		out = append(out, applySelect(d, q.Select))
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}

	return out, nil
}

func (h *handler) FindOne(ctx context.Context, q document.Query) (document.Data, *types.CommonError) {
	q.Limit = 1
	docs, err := h.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (h *handler) Create(ctx context.Context, payload document.Data) (document.Data, *types.CommonError) {
	stored := payload.Clone()
	id := stored.ID()
	if id == "" {
		id = uuid.New().String()
		stored.WithID(id)
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, types.NewError(types.KindBadRequest, "document is not serializable: "+err.Error())
	}

	if _, err := h.db.ExecContext(ctx,
		"INSERT INTO "+h.table+" (id, payload) VALUES ($1, $2)", id, raw); err != nil {
		return nil, dbError(err)
	}

	return stored, nil
}

func (h *handler) Update(ctx context.Context, id string, payload document.Data) (document.Data, *types.CommonError) {
	merge := payload.Clone()
	delete(merge, document.IDField)

	raw, err := json.Marshal(merge)
	if err != nil {
		return nil, types.NewError(types.KindBadRequest, "document is not serializable: "+err.Error())
	}

	// merging a null field value unsets the field
	var updated []byte
	err = h.db.QueryRowContext(ctx,
		"UPDATE "+h.table+" SET payload = jsonb_strip_nulls(payload || $2::jsonb) WHERE id = $1 RETURNING payload",
		id, raw).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}

	return parsePayload(updated)
}

func (h *handler) Remove(ctx context.Context, id string) (document.Data, *types.CommonError) {
	var raw []byte
	err := h.db.QueryRowContext(ctx,
		"DELETE FROM "+h.table+" WHERE id = $1 RETURNING payload", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}

	return parsePayload(raw)
}

func (h *handler) buildSelect(q document.Query) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT payload FROM ")
	sb.WriteString(h.table)

	var clauses []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for field, cond := range q.Filter {
		expr := fieldExpr(field)
		switch c := cond.(type) {
		case document.In:
			clauses = append(clauses, expr+" = ANY("+arg(pq.Array(c.Values))+")")
		case document.NotEquals:
			clauses = append(clauses, expr+" IS DISTINCT FROM "+arg(stringValue(c.Value)))
		default:
			clauses = append(clauses, expr+" = "+arg(stringValue(cond)))
		}
	}
	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if q.Sort != "" {
		field, dir := q.Sort, "ASC"
		if field[0] == '-' {
			field, dir = field[1:], "DESC"
		}
		sb.WriteString(" ORDER BY " + fieldExpr(field) + " " + dir)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(q.Limit))
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + arg(q.Skip))
	}

	return sb.String(), args
}

// fieldExpr addresses a top-level document field as text. The id column is
// kept outside the payload for the primary key.
func fieldExpr(field string) string {
	if field == document.IDField {
		return "id"
	}
	return "payload->>" + pq.QuoteLiteral(field)
}

// stringValue renders a filter value the way jsonb ->> renders the stored
// field, so equality comparisons line up for strings, numbers and booleans.
func stringValue(v any) string {
	return fmt.Sprintf("%v", v)
}

func parsePayload(raw []byte) (document.Data, *types.CommonError) {
	var d document.Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, types.NewError(types.KindInternal, "stored payload is not valid JSON: "+err.Error())
	}
	return d, nil
}

func applySelect(d document.Data, fields []string) document.Data {
	if len(fields) == 0 {
		return d
	}
	out := document.Data{}
	if v, ok := d[document.IDField]; ok {
		out[document.IDField] = v
	}
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

func dbError(err error) *types.CommonError {
	return types.NewError(types.KindServerTimeout, "There was an error accessing the database: "+err.Error())
}
