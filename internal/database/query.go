package database

import (
	"fmt"
	"slices"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
)

// Logical tables read by the service
const (
	TableChatHistory = "chat_history"
	TableLeads       = "leads"
	TableProfiles    = "profiles"
)

// Op is a comparison operator supported by Filter
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "<>"
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter compares a column against a value
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Order sorts by a column
type Order struct {
	Column string
	Desc   bool
}

// Query is a table-agnostic filter-and-select description. Builder methods
// return modified copies, so a base query can be shared and extended.
type Query struct {
	Columns []string
	Filters []Filter
	Orders  []Order
	Limit   int // 0 means no limit
}

// Select starts a query projecting the given columns (all columns when empty)
func Select(columns ...string) Query {
	return Query{Columns: columns}
}

// Select replaces the projection
func (q Query) Select(columns ...string) Query {
	q.Columns = columns
	return q
}

// Where appends a filter
func (q Query) Where(column string, op Op, value any) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{Column: column, Op: op, Value: value})
	return q
}

func (q Query) Eq(column string, value any) Query  { return q.Where(column, OpEq, value) }
func (q Query) Lt(column string, value any) Query  { return q.Where(column, OpLt, value) }
func (q Query) Gte(column string, value any) Query { return q.Where(column, OpGte, value) }

// Asc appends an ascending sort key
func (q Query) Asc(column string) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Column: column})
	return q
}

// Desc appends a descending sort key
func (q Query) Desc(column string) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Column: column, Desc: true})
	return q
}

// Take limits the number of returned rows
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

func (f Filter) expression() (exp.Expression, error) {
	col := goqu.C(f.Column)
	switch f.Op {
	case OpEq:
		return col.Eq(f.Value), nil
	case OpNeq:
		return col.Neq(f.Value), nil
	case OpLt:
		return col.Lt(f.Value), nil
	case OpLte:
		return col.Lte(f.Value), nil
	case OpGt:
		return col.Gt(f.Value), nil
	case OpGte:
		return col.Gte(f.Value), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q on column %s", f.Op, f.Column)
	}
}

func (q Query) dataset(dialect, table string) (*goqu.SelectDataset, error) {
	ds := goqu.Dialect(dialect).From(table).Prepared(true)

	if len(q.Filters) > 0 {
		exprs := make([]exp.Expression, 0, len(q.Filters))
		for _, f := range q.Filters {
			e, err := f.expression()
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		ds = ds.Where(exprs...)
	}

	return ds, nil
}

// ToSQL renders the query against table in the given goqu dialect ("postgres", "mysql")
func (q Query) ToSQL(dialect, table string) (string, []any, error) {
	ds, err := q.dataset(dialect, table)
	if err != nil {
		return "", nil, err
	}

	if len(q.Columns) > 0 {
		cols := make([]any, 0, len(q.Columns))
		for _, c := range q.Columns {
			cols = append(cols, c)
		}
		ds = ds.Select(cols...)
	}

	for _, o := range q.Orders {
		if o.Desc {
			ds = ds.OrderAppend(goqu.C(o.Column).Desc())
		} else {
			ds = ds.OrderAppend(goqu.C(o.Column).Asc())
		}
	}

	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}

	return ds.ToSQL()
}

// CountSQL renders SELECT COUNT(*) over the filtered rows; columns, order and limit are ignored
func (q Query) CountSQL(dialect, table string) (string, []any, error) {
	ds, err := q.dataset(dialect, table)
	if err != nil {
		return "", nil, err
	}
	return ds.Select(goqu.COUNT(goqu.Star())).ToSQL()
}
