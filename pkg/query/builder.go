package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// condition renders one predicate. bind records an argument and returns
// its positional placeholder.
type condition func(bind func(any) string) string

// Builder assembles SELECT and COUNT statements over a projection.
// BuildCount and BuildPage render the same WHERE clause with the same args.
type Builder struct {
	projection  *ProjectionMap
	conditions  []condition
	orderBy     []SortField
	defaultSort SortField
}

// NewBuilder creates a Builder for the given projection with a default sort.
func NewBuilder(projection *ProjectionMap, defaultSort SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// BuildCount returns a COUNT(*) query with the current conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.where()
	return "SELECT COUNT(*) FROM " + b.projection.Table() + where, args
}

// BuildPage returns a paginated SELECT query with ordering, limit, and offset.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	if page < 1 {
		page = 1
	}
	where, args := b.where()

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(b.projection.Columns())
	sb.WriteString(" FROM ")
	sb.WriteString(b.projection.Table())
	sb.WriteString(where)
	sb.WriteString(b.order())
	fmt.Fprintf(&sb, " LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)
	return sb.String(), args
}

// BuildSingle returns a SELECT query for a single record by ID.
func (b *Builder) BuildSingle(idField string, id any) (string, []any) {
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(), b.projection.Table(), b.projection.Column(idField),
	), []any{id}
}

// OrderBy appends a sort field. Unknown fields are ignored.
func (b *Builder) OrderBy(field string, descending bool) *Builder {
	if field != "" && b.projection.Has(field) {
		b.orderBy = append(b.orderBy, SortField{Field: field, Descending: descending})
	}
	return b
}

// OrderByFields appends each sort field in order.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	for _, f := range fields {
		b.OrderBy(f.Field, f.Descending)
	}
	return b
}

// WhereEquals adds an equality condition. Nil values are ignored.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if value == nil {
		return b
	}
	return b.compare(field, "=", value)
}

// WhereContains adds a case-insensitive substring match. Nil or empty values are ignored.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	return b.compare(field, "ILIKE", "%"+*value+"%")
}

// WhereAfter adds field >= t. A zero t is ignored.
func (b *Builder) WhereAfter(field string, t time.Time) *Builder {
	if t.IsZero() {
		return b
	}
	return b.compare(field, ">=", t)
}

// WhereBefore adds field < t. A zero t is ignored.
func (b *Builder) WhereBefore(field string, t time.Time) *Builder {
	if t.IsZero() {
		return b
	}
	return b.compare(field, "<", t)
}

// WhereJSONContains adds a jsonb containment test. doc must be a JSON
// object encoded as text; empty documents are ignored.
func (b *Builder) WhereJSONContains(field, doc string) *Builder {
	if doc == "" || doc == "{}" {
		return b
	}
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		return col + " @> " + bind(doc) + "::jsonb"
	})
	return b
}

// WhereIn adds an IN condition for multiple values. Empty slices are ignored.
func (b *Builder) WhereIn(field string, values []any) *Builder {
	if len(values) == 0 {
		return b
	}
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		ph := make([]string, len(values))
		for i, v := range values {
			ph[i] = bind(v)
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")"
	})
	return b
}

// WhereSearch matches search against any of fields. Nil or empty search is ignored.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}
	pattern := "%" + *search + "%"
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = b.projection.Column(f) + " ILIKE " + bind(pattern)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	})
	return b
}

func (b *Builder) compare(field, op string, value any) *Builder {
	col := b.projection.Column(field)
	b.conditions = append(b.conditions, func(bind func(any) string) string {
		return col + " " + op + " " + bind(value)
	})
	return b
}

func (b *Builder) order() string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = []SortField{b.defaultSort}
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := " ASC"
		if f.Descending {
			dir = " DESC"
		}
		parts[i] = b.projection.Column(f.Field) + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (b *Builder) where() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	clauses := make([]string, len(b.conditions))
	for i, c := range b.conditions {
		clauses[i] = c(bind)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
