package fhir

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SearchQuery builds a parameterised SELECT from FHIR search criteria.
// Clauses are ANDed together; placeholders are numbered in call order.
type SearchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// NewSearchQuery creates a new SearchQuery for the given table and columns.
func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Idx returns the next available parameter index.
func (q *SearchQuery) Idx() int { return q.idx }

// Add appends a raw WHERE clause fragment (without leading "AND"). The
// fragment must use placeholders starting at Idx().
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// AddEqual adds an exact match on column.
func (q *SearchQuery) AddEqual(column string, value interface{}) {
	q.Add(fmt.Sprintf("%s = $%d", column, q.idx), value)
}

// AddToken adds a token search clause. Handles system|code, |code, system|, or just code.
func (q *SearchQuery) AddToken(sysCol, codeCol, value string) {
	clause, args, nextIdx := TokenSearchClause(sysCol, codeCol, value, q.idx)
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx = nextIdx
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *SearchQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// CountSQL returns the count query SQL.
func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *SearchQuery) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the arguments for the data query (search args + limit + offset).
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}

// TokenSearchClause handles token search parameters in the format "system|code", "|code", "system|", or just "code".
func TokenSearchClause(systemCol, codeCol string, value string, argIdx int) (string, []interface{}, int) {
	system, code, hasSystem := SplitToken(value)
	if hasSystem {
		switch {
		case system != "" && code != "":
			clause := fmt.Sprintf("(%s = $%d AND %s = $%d)", systemCol, argIdx, codeCol, argIdx+1)
			return clause, []interface{}{system, code}, argIdx + 2
		case system != "":
			return fmt.Sprintf("%s = $%d", systemCol, argIdx), []interface{}{system}, argIdx + 1
		case code != "":
			return fmt.Sprintf("((%s IS NULL OR %s = '') AND %s = $%d)", systemCol, systemCol, codeCol, argIdx), []interface{}{code}, argIdx + 1
		}
	}
	return fmt.Sprintf("%s = $%d", codeCol, argIdx), []interface{}{code}, argIdx + 1
}

// SplitToken splits a token search value. hasSystem reports whether a "|"
// was present; "|code" means the code must have no system.
func SplitToken(value string) (system, code string, hasSystem bool) {
	if i := strings.Index(value, "|"); i >= 0 {
		return value[:i], value[i+1:], true
	}
	return "", value, false
}

// ExtractSearchParams collects the search parameters of a GET query string or
// a form-encoded POST _search body. Result control parameters (_count,
// _offset, _format, _sort and friends) are dropped; _id is kept.
func ExtractSearchParams(c echo.Context) map[string]string {
	params := map[string]string{}
	values := c.QueryParams()
	if c.Request().Method == http.MethodPost {
		if form, err := c.FormParams(); err == nil {
			values = form
		}
	}
	for k, v := range values {
		if len(v) == 0 || v[0] == "" {
			continue
		}
		if strings.HasPrefix(k, "_") && k != "_id" {
			continue
		}
		params[k] = v[0]
	}
	return params
}
