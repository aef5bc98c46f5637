// Package query builds driver-neutral SELECT statements over a projected
// table. Statements use "?" placeholders; callers rebind them for drivers
// with numbered parameters.
package query

import "strings"

// Projection maps view field names to qualified columns (alias.column).
type Projection struct {
	table   string
	alias   string
	columns map[string]string
	list    []string
}

// NewProjection creates a Projection over table, referenced as alias.
func NewProjection(table, alias string) *Projection {
	return &Projection{
		table:   table,
		alias:   alias,
		columns: make(map[string]string),
	}
}

// Project adds column under the view name field.
func (p *Projection) Project(column, field string) *Projection {
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.list = append(p.list, qualified)
	return p
}

// From returns the table reference with its alias.
func (p *Projection) From() string {
	return p.table + " " + p.alias
}

// Column returns the qualified column for field and whether it is projected.
func (p *Projection) Column(field string) (string, bool) {
	col, ok := p.columns[field]
	return col, ok
}

// Columns returns the projected columns in declaration order.
func (p *Projection) Columns() string {
	return strings.Join(p.list, ", ")
}
