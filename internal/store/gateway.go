// Package store is the gateway to the managed data store that holds every
// tenant's records and authenticates its users.
//
// Two implementations satisfy [Gateway]:
//
//   - [Postgres] talks to the database directly, scoping every statement to
//     the authenticated owner and verifying access tokens locally.
//   - [REST] talks to the store's HTTP API (PostgREST-style collections plus an
//     auth endpoint), leaving row-level access control to the store.
//
// Callers work with collection names and column/value pairs; decoding into
// typed records happens through the dst argument of [Gateway.List].
package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/partlog/internal/model"
)

// Collection names a set of records in the store.
type Collection string

const (
	Printers    Collection = "printers"
	SpareParts  Collection = "spare_parts"
	PartChanges Collection = "spare_part_changes"
)

// Fields holds column values for an insert or update.
type Fields map[string]any

// FilterOp is a comparison operator in a query filter.
type FilterOp string

const (
	OpEq FilterOp = "eq"
	OpIn FilterOp = "in"
)

// Filter restricts a query to rows where Column matches Values.
// OpEq uses Values[0]; OpIn matches any of Values.
type Filter struct {
	Column string
	Op     FilterOp
	Values []string
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Values: []string{value}}
}

// In builds a set-membership filter.
func In(column string, values ...string) Filter {
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Order sorts query results by Column.
type Order struct {
	Column string
	Desc   bool
}

// Query selects rows from a collection.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int // 0 means no limit
}

// Gateway is the set of operations the application needs from the store.
type Gateway interface {
	// List decodes the matching rows of coll into dst, a pointer to a slice.
	List(ctx context.Context, coll Collection, q Query, dst any) error

	// Insert creates one row. A uniqueness violation is reported as an *Error
	// with Code CodeUniqueViolation.
	Insert(ctx context.Context, coll Collection, fields Fields) error

	// Update changes the given columns of the row with the given id.
	Update(ctx context.Context, coll Collection, id string, fields Fields) error

	// Delete removes every row matching all filters. At least one filter is
	// required.
	Delete(ctx context.Context, coll Collection, filters ...Filter) error

	// CurrentUser returns the user for the session carried by ctx, or nil when
	// the session is missing or no longer valid.
	CurrentUser(ctx context.Context) (*model.User, error)

	// SignOut ends the session carried by ctx.
	SignOut(ctx context.Context) error
}

// Authenticator is implemented by gateways that can exchange credentials for
// a session.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

// columns lists the columns each collection accepts in filters, ordering and
// writes. Identifiers never reach SQL or a URL unless they appear here.
var columns = map[Collection]map[string]bool{
	Printers: {
		"id": true, "user_id": true, "name": true, "counter": true,
		"color": true, "created_at": true, "updated_at": true,
	},
	SpareParts: {
		"id": true, "user_id": true, "code": true, "description": true,
		"high_rotation": true, "created_at": true,
	},
	PartChanges: {
		"id": true, "user_id": true, "printer_id": true, "spare_part_id": true,
		"change_date": true, "printer_counter": true, "quantity": true,
		"detail": true, "created_at": true,
	},
}

// checkColumn reports an error if column is unknown for coll.
func checkColumn(coll Collection, column string) error {
	cols, ok := columns[coll]
	if !ok {
		return fmt.Errorf("unknown collection: %s", coll)
	}
	if !cols[column] {
		return fmt.Errorf("unknown column %q for %s", column, coll)
	}
	return nil
}

// checkQuery validates every identifier used by q.
func checkQuery(coll Collection, q Query) error {
	for _, f := range q.Filters {
		if err := checkFilter(coll, f); err != nil {
			return err
		}
	}
	for _, o := range q.Order {
		if err := checkColumn(coll, o.Column); err != nil {
			return err
		}
	}
	return nil
}

func checkFilter(coll Collection, f Filter) error {
	if err := checkColumn(coll, f.Column); err != nil {
		return err
	}
	switch f.Op {
	case OpEq:
		if len(f.Values) != 1 {
			return fmt.Errorf("filter %s: eq takes exactly one value", f.Column)
		}
	case OpIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("filter %s: in needs at least one value", f.Column)
		}
	default:
		return fmt.Errorf("filter %s: unsupported operator %q", f.Column, f.Op)
	}
	return nil
}

func checkFields(coll Collection, fields Fields) error {
	if len(fields) == 0 {
		return fmt.Errorf("no fields to write")
	}
	for col := range fields {
		if err := checkColumn(coll, col); err != nil {
			return err
		}
	}
	return nil
}
