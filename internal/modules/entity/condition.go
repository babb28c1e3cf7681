package entity

import (
	"reflect"
	"strings"
)

// Operator selects how a group of field conditions is rendered.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpOr         Operator = "or"
	OpNot        Operator = "not"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpLike       Operator = "like"        // %value%
	OpLikePrefix Operator = "like_prefix" // value%
	OpLikeSuffix Operator = "like_suffix" // %value
	OpLikeExact  Operator = "like_exact"  // value
)

// Join is the boolean connective between conditions. Anything other than
// JoinAnd or JoinOr coerces to AND, malformed filters degrade instead of
// failing the request.
type Join string

const (
	JoinAnd Join = "AND"
	JoinOr  Join = "OR"
)

// Cond is a single field comparison inside a group.
type Cond struct {
	Field string
	Value interface{}
}

// Group is one operator group: an ordered field list rendered with Op and
// joined by Inner. Outer is the connective between this group and the NEXT
// group in the Where slice, it describes the separator to the right.
type Group struct {
	Op     Operator
	Fields []Cond
	Inner  Join
	Outer  Join
}

// Where is an ordered list of operator groups. A slice rather than a map:
// group order determines render order.
type Where []Group

// BuildWhere renders the where groups into one SQL predicate, without the
// leading WHERE keyword. Unknown fields are dropped from their group; a
// group left empty contributes neither an expression nor a separator. An
// empty result means no WHERE clause at all.
func (m *Model) BuildWhere(where Where) string {
	var parts []string
	var seps []Join

	for _, g := range where {
		expr := m.renderGroup(g)
		if expr == "" {
			continue
		}
		parts = append(parts, "("+expr+")")
		seps = append(seps, normalizeJoin(g.Outer, JoinAnd))
	}
	if len(parts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(string(seps[i-1]))
			b.WriteString(" ")
		}
		b.WriteString(part)
	}
	return b.String()
}

func (m *Model) renderGroup(g Group) string {
	inner := normalizeJoin(g.Inner, defaultInner(g.Op))

	var conds []string
	for _, c := range g.Fields {
		if !m.def.allowedColumn(c.Field) {
			continue
		}
		expr := m.renderCond(g.Op, c)
		if expr != "" {
			conds = append(conds, expr)
		}
	}
	return strings.Join(conds, " "+string(inner)+" ")
}

func (m *Model) renderCond(op Operator, c Cond) string {
	col := m.conn.EscapeIdentifier(c.Field)

	switch op {
	case OpEquals, OpOr:
		if c.Value == nil {
			return col + " IS NULL"
		}
		return col + " = " + m.conn.Escape(c.Value)
	case OpNot:
		if c.Value == nil {
			return col + " IS NOT NULL"
		}
		return col + " != " + m.conn.Escape(c.Value)
	case OpIn:
		return m.renderIn(col, c.Value, false)
	case OpNotIn:
		return m.renderIn(col, c.Value, true)
	case OpLike:
		return col + " LIKE '%" + m.conn.EscapeStr(c.Value) + "%'"
	case OpLikePrefix:
		return col + " LIKE '" + m.conn.EscapeStr(c.Value) + "%'"
	case OpLikeSuffix:
		return col + " LIKE '%" + m.conn.EscapeStr(c.Value) + "'"
	case OpLikeExact:
		return col + " LIKE '" + m.conn.EscapeStr(c.Value) + "'"
	}
	return ""
}

func (m *Model) renderIn(col string, value interface{}, negate bool) string {
	values := valueList(value)
	if len(values) == 0 {
		return ""
	}
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = m.conn.Escape(v)
	}
	kw := " IN ("
	if negate {
		kw = " NOT IN ("
	}
	return col + kw + strings.Join(escaped, ",") + ")"
}

// valueList flattens a scalar or slice into a value slice.
func valueList(value interface{}) []interface{} {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{value}
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// defaultInner picks the connective used within a group when the caller
// supplied none. The or-operator groups its fields with OR, everything
// else with AND.
func defaultInner(op Operator) Join {
	if op == OpOr {
		return JoinOr
	}
	return JoinAnd
}

func normalizeJoin(j Join, fallback Join) Join {
	switch strings.ToUpper(strings.TrimSpace(string(j))) {
	case "AND":
		return JoinAnd
	case "OR":
		return JoinOr
	}
	return fallback
}
