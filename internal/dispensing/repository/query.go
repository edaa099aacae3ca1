// Package repository persists the dispensary records in PostgreSQL.
package repository

import (
	"fmt"
	"strings"
)

// where accumulates AND-ed conditions with positional arguments
type where struct {
	conds []string
	args  []interface{}
}

// add appends a condition; each "?" in cond is replaced by the next $n placeholder
func (w *where) add(cond string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the full argument list
func (w *where) page(limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		return "", w.args
	}
	args := append(append([]interface{}{}, w.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches search as a literal substring. Backslash is the
// default LIKE escape character in PostgreSQL.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(search)) + "%"
}
