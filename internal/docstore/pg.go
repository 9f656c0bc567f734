package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PG stores every document as a JSONB row in a single documents table,
// keyed by (collection, id). Unique indexes are declared in the migration.
type PG struct {
	pool *pgxpool.Pool
}

var _ Store = (*PG)(nil)

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

func (s *PG) FindOne(ctx context.Context, collection string, f Filter, out any) error {
	where, args := buildWhere(collection, f)
	q := `SELECT doc FROM documents WHERE ` + where + ` LIMIT 1`

	var raw []byte
	err := s.pool.QueryRow(ctx, q, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoDocuments
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *PG) FindMany(ctx context.Context, collection string, f Filter, sort *Sort, skip, limit int, out any) error {
	where, args := buildWhere(collection, f)
	q := `SELECT doc FROM documents WHERE ` + where
	if sort != nil {
		dir := "ASC"
		if sort.Desc {
			dir = "DESC"
		}
		q += ` ORDER BY doc->>'` + sort.Field + `' ` + dir
	}
	if limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(limit)
	}
	if skip > 0 {
		q += ` OFFSET ` + strconv.Itoa(skip)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		docs = append(docs, raw)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return decodeSlice(docs, out)
}

func (s *PG) Count(ctx context.Context, collection string, f Filter) (int64, error) {
	where, args := buildWhere(collection, f)
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE `+where, args...).Scan(&n)
	return n, err
}

func (s *PG) Insert(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, raw,
	)
	return mapUnique(err)
}

func (s *PG) UpdateByID(ctx context.Context, collection, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc = doc || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		collection, id, raw,
	)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoDocuments
	}
	return nil
}

func (s *PG) DeleteByID(ctx context.Context, collection, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PG) DeleteMany(ctx context.Context, collection string, f Filter) (int64, error) {
	where, args := buildWhere(collection, f)
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrUniqueViolation
	}
	return err
}

// buildWhere renders a Filter into a WHERE body over doc->>'field'
// expressions. Field names come from our own code, never from request input,
// so they are interpolated; values always go through placeholders.
func buildWhere(collection string, f Filter) (string, []any) {
	clause := `collection = $1`
	args := []any{collection}
	for field, cond := range f {
		expr := `doc->>'` + field + `'`
		switch v := cond.(type) {
		case In:
			vals := make([]string, len(v))
			for i, item := range v {
				vals[i] = scalarText(item)
			}
			args = append(args, vals)
			clause += fmt.Sprintf(` AND %s = ANY($%d)`, expr, len(args))
		case Ne:
			args = append(args, scalarText(v.Value))
			clause += fmt.Sprintf(` AND %s <> $%d`, expr, len(args))
		default:
			args = append(args, scalarText(v))
			clause += fmt.Sprintf(` AND %s = $%d`, expr, len(args))
		}
	}
	return clause, args
}

// scalarText mirrors the text form Postgres produces for doc->>'field'.
func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		raw, _ := json.Marshal(t)
		return string(bytes.Trim(raw, `"`))
	}
}

func decodeSlice(docs [][]byte, out any) error {
	buf := bytes.NewBufferString("[")
	for i, d := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(d)
	}
	buf.WriteByte(']')
	return json.Unmarshal(buf.Bytes(), out)
}
