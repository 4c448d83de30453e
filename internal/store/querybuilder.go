package store

import "strings"

// queryBuilder builds parameterized WHERE clauses for dynamic queries.
// SQLite binds positionally with ?, so clauses carry their placeholder
// inline.
type queryBuilder struct {
	where []string
	args  []any
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{}
}

// Add appends a WHERE condition containing exactly one ? placeholder.
func (qb *queryBuilder) Add(clause string, val any) {
	qb.where = append(qb.where, clause)
	qb.args = append(qb.args, val)
}

// AddRaw appends a WHERE condition with no parameters.
func (qb *queryBuilder) AddRaw(clause string) {
	qb.where = append(qb.where, clause)
}

// WhereClause returns the full WHERE clause (including "WHERE") or empty string if no conditions.
func (qb *queryBuilder) WhereClause() string {
	if len(qb.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(qb.where, " AND ")
}

// Args returns all accumulated arguments.
func (qb *queryBuilder) Args() []any {
	return qb.args
}
