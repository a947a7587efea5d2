package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"procurement-api/internal/apperr"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// Postgres keeps every collection in one JSONB table:
//
//	records(collection text, id text, data jsonb, created_at, updated_at)
//
// See db/migrations.
type Postgres struct {
	DB  *sql.DB
	now func() time.Time
}

// OpenPostgres opens and pings a pgx backed *sql.DB.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db, now: time.Now}
}

func (p *Postgres) Close() error { return p.DB.Close() }

var fieldPathRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// jsonPath turns "address.city" into the literal '{address,city}'. Paths
// are checked against fieldPathRe so they are safe to inline.
func jsonPath(field string) (string, bool) {
	if !fieldPathRe.MatchString(field) {
		return "", false
	}
	return "'{" + strings.ReplaceAll(field, ".", ",") + "}'", true
}

func (p *Postgres) List(ctx context.Context, collection string, q Query) ([]Record, int, error) {
	clauses := []string{"collection = $1"}
	args := []any{collection}
	arg := 2

	for field, value := range q.Filters {
		path, ok := jsonPath(field)
		if !ok {
			return nil, 0, apperr.Validation("invalid filter field %q", field)
		}
		clauses = append(clauses, fmt.Sprintf(
			"(CASE WHEN jsonb_typeof(data #> %[1]s) = 'array'"+
				" THEN EXISTS (SELECT 1 FROM jsonb_array_elements_text(data #> %[1]s) AS e(v) WHERE lower(e.v) = lower($%[2]d))"+
				" ELSE lower(data #>> %[1]s) = lower($%[2]d) END)",
			path, arg))
		args = append(args, value)
		arg++
	}

	if s := strings.TrimSpace(q.Search); s != "" {
		fields := q.SearchFields
		if len(fields) == 0 {
			fields = []string{"name", "title"}
		}
		ors := make([]string, 0, len(fields))
		for _, f := range fields {
			path, ok := jsonPath(f)
			if !ok {
				continue
			}
			ors = append(ors, fmt.Sprintf("data #>> %s ILIKE $%d", path, arg))
		}
		if len(ors) > 0 {
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
			args = append(args, "%"+s+"%")
			arg++
		}
	}

	where := ` FROM records WHERE ` + strings.Join(clauses, " AND ")

	var total int
	if err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(err, "count %s", collection)
	}

	sqlStr := `SELECT data` + where + buildOrderBy(q.Sort)
	if q.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		sqlStr += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := p.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, apperr.Internal(err, "list %s", collection)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, apperr.Internal(err, "scan %s", collection)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, 0, apperr.Internal(err, "decode %s", collection)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Internal(err, "list %s", collection)
	}
	return records, total, nil
}

// numericText matches the JSON text of numbers and encoded decimals.
const numericText = `'^-?[0-9]+(\.[0-9]+)?$'`

// buildOrderBy builds an ORDER BY clause over JSON fields. Numeric values
// compare as numbers, the rest as case-insensitive text, and missing values
// sort first, as in the memory store. Keys that are not plain field paths are
// dropped. Defaults to creation order.
func buildOrderBy(sortParam string) string {
	clauses := []string{}
	for _, k := range ParseSort(sortParam) {
		path, ok := jsonPath(k.Field)
		if !ok {
			continue
		}
		dir := " ASC NULLS FIRST"
		if k.Desc {
			dir = " DESC NULLS LAST"
		}
		text := "data #>> " + path
		clauses = append(clauses,
			"CASE WHEN "+text+" ~ "+numericText+" THEN ("+text+")::numeric END"+dir,
			"lower("+text+")"+dir)
	}
	if len(clauses) == 0 {
		return " ORDER BY created_at ASC, id ASC"
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Record, error) {
	var raw []byte
	err := p.DB.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(singular(collection), id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "get %s", collection)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, apperr.Internal(err, "decode %s", collection)
	}
	return rec, nil
}

// GetMany fetches the records with the given ids; missing ids are skipped.
func (p *Postgres) GetMany(ctx context.Context, collection string, ids []string) ([]Record, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT data FROM records WHERE collection = $1 AND id = ANY($2) ORDER BY id`,
		collection, pq.Array(ids))
	if err != nil {
		return nil, apperr.Internal(err, "get %s", collection)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, apperr.Internal(err, "scan %s", collection)
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, apperr.Internal(err, "decode %s", collection)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	out := stamp(rec, p.now())
	data, err := json.Marshal(out)
	if err != nil {
		return nil, apperr.Internal(err, "encode %s", collection)
	}
	res, err := p.DB.ExecContext(ctx, `
		INSERT INTO records (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`, collection, out.ID(), data)
	if err != nil {
		return nil, apperr.Internal(err, "create %s", collection)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Conflict("%s %q already exists", singular(collection), out.ID())
	}
	return out, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, rec Record) (Record, error) {
	prev, err := p.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	out := restamp(prev, rec, id, p.now())
	data, err := json.Marshal(out)
	if err != nil {
		return nil, apperr.Internal(err, "encode %s", collection)
	}
	res, err := p.DB.ExecContext(ctx, `
		UPDATE records SET data = $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2`, collection, id, data)
	if err != nil {
		return nil, apperr.Internal(err, "update %s", collection)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.NotFound(singular(collection), id)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return apperr.Internal(err, "delete %s", collection)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound(singular(collection), id)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
