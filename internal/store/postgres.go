package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/partlog/internal/model"
)

// TokenVerifier turns an access token into the user it was issued to.
type TokenVerifier interface {
	Verify(token string) (*model.User, error)
}

// Postgres is a Gateway backed directly by the database.
//
// Every statement is scoped to the owner taken from the request context, so
// rows of other tenants are never read or written even without row-level
// security in the database.
type Postgres struct {
	db       *sql.DB
	verifier TokenVerifier
}

// NewPostgres creates a gateway over db. Access tokens carried in request
// sessions are checked with verifier.
func NewPostgres(db *sql.DB, verifier TokenVerifier) *Postgres {
	return &Postgres{db: db, verifier: verifier}
}

var _ Gateway = (*Postgres)(nil)

// Ping verifies the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// CurrentUser verifies the session token in ctx. A missing, expired or
// tampered token yields a nil user and no error.
func (p *Postgres) CurrentUser(ctx context.Context) (*model.User, error) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.AccessToken == "" || p.verifier == nil {
		return nil, nil
	}
	u, err := p.verifier.Verify(s.AccessToken)
	if err != nil {
		return nil, nil
	}
	return u, nil
}

// SignOut is a no-op: tokens are stateless and the caller drops its cookie.
func (p *Postgres) SignOut(ctx context.Context) error {
	return nil
}

// owner returns the id of the user every statement is scoped to.
func (p *Postgres) owner(ctx context.Context) (string, error) {
	if u := UserFromContext(ctx); u != nil {
		return u.ID, nil
	}
	u, err := p.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUnauthenticated
	}
	return u.ID, nil
}

// args accumulates positional parameters for one statement.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// where renders "x.user_id = $1 AND ..." for owner plus filters.
func (a *args) where(owner string, filters []Filter) string {
	conds := []string{"x.user_id = " + a.add(owner)}
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			conds = append(conds, fmt.Sprintf("x.%s = %s", f.Column, a.add(f.Values[0])))
		case OpIn:
			ph := make([]string, len(f.Values))
			for i, v := range f.Values {
				ph[i] = a.add(v)
			}
			conds = append(conds, fmt.Sprintf("x.%s IN (%s)", f.Column, strings.Join(ph, ", ")))
		}
	}
	return strings.Join(conds, " AND ")
}

// changeRelations embeds the related printer and spare part in a change row,
// shaped like the joined rows of the REST API.
const changeRelations = ` || jsonb_build_object(` +
	`'printers', CASE WHEN p.id IS NULL THEN NULL ELSE jsonb_build_object('name', p.name) END, ` +
	`'spare_parts', CASE WHEN s.id IS NULL THEN NULL ELSE jsonb_build_object(` +
	`'code', s.code, 'description', s.description, 'high_rotation', s.high_rotation) END)` +
	` FROM spare_part_changes x` +
	` LEFT JOIN printers p ON p.id = x.printer_id AND p.user_id = x.user_id` +
	` LEFT JOIN spare_parts s ON s.id = x.spare_part_id AND s.user_id = x.user_id`

// List selects each row as a JSON object and decodes the whole result into
// dst. Change rows always carry their related printer and spare part.
func (p *Postgres) List(ctx context.Context, coll Collection, q Query, dst any) error {
	if err := checkQuery(coll, q); err != nil {
		return err
	}
	owner, err := p.owner(ctx)
	if err != nil {
		return err
	}

	var a args
	var b strings.Builder
	b.WriteString("SELECT to_jsonb(x)")
	if coll == PartChanges {
		b.WriteString(changeRelations)
	} else {
		fmt.Fprintf(&b, " FROM %s x", coll)
	}
	b.WriteString(" WHERE ")
	b.WriteString(a.where(owner, q.Filters))
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = fmt.Sprintf("x.%s %s", o.Column, dir)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := p.db.QueryContext(ctx, b.String(), a...)
	if err != nil {
		return wrapPgError(err)
	}
	defer rows.Close()

	var buf []byte
	buf = append(buf, '[')
	n := 0
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan %s: %w", coll, err)
		}
		if n > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, raw...)
		n++
	}
	if err := rows.Err(); err != nil {
		return wrapPgError(err)
	}
	buf = append(buf, ']')

	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

// Insert writes one row, generating its id when absent. The owner column is
// always set from the session.
func (p *Postgres) Insert(ctx context.Context, coll Collection, fields Fields) error {
	if err := checkFields(coll, fields); err != nil {
		return err
	}
	owner, err := p.owner(ctx)
	if err != nil {
		return err
	}

	row := make(Fields, len(fields)+2)
	for k, v := range fields {
		row[k] = v
	}
	row["user_id"] = owner
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}

	cols := sortedKeys(row)
	var a args
	ph := make([]string, len(cols))
	for i, c := range cols {
		ph[i] = a.add(row[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		coll, strings.Join(cols, ", "), strings.Join(ph, ", "))

	if _, err := p.db.ExecContext(ctx, query, a...); err != nil {
		return wrapPgError(err)
	}
	return nil
}

// Update sets the given columns on the row with id.
func (p *Postgres) Update(ctx context.Context, coll Collection, id string, fields Fields) error {
	if err := checkFields(coll, fields); err != nil {
		return err
	}
	if _, ok := fields["user_id"]; ok {
		return errors.New("user_id cannot be updated")
	}
	owner, err := p.owner(ctx)
	if err != nil {
		return err
	}

	var a args
	cols := sortedKeys(fields)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, a.add(fields[c]))
	}
	query := fmt.Sprintf("UPDATE %s x SET %s WHERE %s",
		coll, strings.Join(sets, ", "), a.where(owner, []Filter{Eq("id", id)}))

	res, err := p.db.ExecContext(ctx, query, a...)
	if err != nil {
		return wrapPgError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the owner's rows matching every filter.
func (p *Postgres) Delete(ctx context.Context, coll Collection, filters ...Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("delete from %s: refusing to delete without a filter", coll)
	}
	if err := checkQuery(coll, Query{Filters: filters}); err != nil {
		return err
	}
	owner, err := p.owner(ctx)
	if err != nil {
		return err
	}

	var a args
	query := fmt.Sprintf("DELETE FROM %s x WHERE %s", coll, a.where(owner, filters))
	if _, err := p.db.ExecContext(ctx, query, a...); err != nil {
		return wrapPgError(err)
	}
	return nil
}

// wrapPgError converts a server-reported error into *Error so callers can
// inspect its code without depending on the driver.
func wrapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}
	return err
}

func sortedKeys(f Fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
