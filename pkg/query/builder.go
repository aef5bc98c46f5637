package query

import (
	"fmt"
	"strings"
)

// SortField is one ORDER BY term. Field is a projected view name.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields parses "name,-signed_at" into sort fields. A leading "-"
// sorts descending. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if after, ok := strings.CutPrefix(part, "-"); ok {
			fields = append(fields, SortField{Field: after, Descending: true})
			continue
		}
		fields = append(fields, SortField{Field: part})
	}
	return fields
}

type condition struct {
	clause string
	args   []any
}

// Builder accumulates conditions and ordering for one projection.
// Conditions on unprojected fields are ignored, as are sort fields.
type Builder struct {
	projection  *Projection
	conditions  []condition
	orderBy     []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder with an optional default ordering.
func NewBuilder(projection *Projection, defaultSort ...SortField) *Builder {
	return &Builder{projection: projection, defaultSort: defaultSort}
}

// WhereEquals adds "field = ?".
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if col, ok := b.projection.Column(field); ok {
		b.conditions = append(b.conditions, condition{
			clause: col + " = ?",
			args:   []any{value},
		})
	}
	return b
}

// WhereSearch adds a case-insensitive substring match across fields,
// joined with OR. An empty search is a no-op.
func (b *Builder) WhereSearch(search string, fields ...string) *Builder {
	if search == "" {
		return b
	}

	pattern := "%" + strings.ToLower(search) + "%"
	var clauses []string
	var args []any
	for _, f := range fields {
		col, ok := b.projection.Column(f)
		if !ok {
			continue
		}
		clauses = append(clauses, "LOWER("+col+") LIKE ?")
		args = append(args, pattern)
	}
	if len(clauses) > 0 {
		b.conditions = append(b.conditions, condition{
			clause: "(" + strings.Join(clauses, " OR ") + ")",
			args:   args,
		})
	}
	return b
}

// OrderBy replaces the default ordering.
func (b *Builder) OrderBy(fields ...SortField) *Builder {
	b.orderBy = fields
	return b
}

// Build returns the SELECT statement and its arguments.
func (b *Builder) Build() (string, []any) {
	where, args := b.where()
	return fmt.Sprintf("SELECT %s FROM %s%s%s",
		b.projection.Columns(), b.projection.From(), where, b.order()), args
}

// BuildCount returns a COUNT(*) statement over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), where), args
}

// BuildPage returns Build limited to one 1-based page.
func (b *Builder) BuildPage(page, size int) (string, []any) {
	if page < 1 {
		page = 1
	}
	query, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, size, (page-1)*size), args
}

func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, len(b.conditions))
	var args []any
	for i, c := range b.conditions {
		clauses[i] = c.clause
		args = append(args, c.args...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *Builder) order() string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	var parts []string
	for _, f := range fields {
		col, ok := b.projection.Column(f.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
