package database

import (
	"strings"
)

// QueryBuilder converts SQL queries with ? placeholders to dialect-specific format.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a new QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build numbers ? placeholders for dialects that need it. Question marks
// inside single-quoted literals are left alone.
//
//	input:    "SELECT id FROM maps WHERE seed = ? AND ruleset = ?"
//	SQLite:   "SELECT id FROM maps WHERE seed = ? AND ruleset = ?"
//	Postgres: "SELECT id FROM maps WHERE seed = $1 AND ruleset = $2"
func (qb *QueryBuilder) Build(query string) string {
	if qb.dialect.Placeholder(2) == "?" {
		return query
	}

	var result strings.Builder
	result.Grow(len(query) + 8)
	position := 1
	quoted := false

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			result.WriteByte(c)
		case c == '?' && !quoted:
			result.WriteString(qb.dialect.Placeholder(position))
			position++
		default:
			result.WriteByte(c)
		}
	}

	return result.String()
}

// BuildWithReturning appends a RETURNING clause if the dialect requires it.
func (qb *QueryBuilder) BuildWithReturning(query string, column string) string {
	converted := qb.Build(query)
	if !qb.dialect.SupportsLastInsertID() {
		converted += qb.dialect.ReturningClause(column)
	}
	return converted
}
