package schema

import (
	"strconv"
	"strings"
)

// Escaper is the slice of the connection used while rendering DDL.
type Escaper interface {
	Escape(value interface{}) string
	EscapeStr(value interface{}) string
	EscapeIdentifier(name string) string
}

// OpKind tags a column operation.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpChange OpKind = "change" // column rename, optionally with a new type
	OpModify OpKind = "modify"
	OpDrop   OpKind = "drop"
	OpRename OpKind = "rename" // table rename, a single-value operation
	OpCreate OpKind = "create"
)

// ColumnOp is one abstract schema operation. Consumed transiently by the
// generator, never persisted.
type ColumnOp struct {
	Kind    OpKind
	Field   string
	Type    TypeToken
	Length  int
	Values  []string // enum members
	Default string
	NewName string // change: new column name; rename: new table name
	After   string // add: insertion anchor
}

// Alter renders a column-operation batch into a single DDL statement for
// one table. Tracked and Locked come from the entity definition; fields
// failing those guards are skipped silently so the generator never emits
// invalid DDL.
type Alter struct {
	Table   string
	PKField string
	Tracked func(field string) bool
	Locked  func(field string) bool
}

// Build returns the statement, the new table name when the batch renames
// the table, and whether any DDL was produced at all. A false third return
// means "nothing to do", not an error.
func (a *Alter) Build(esc Escaper, ops []ColumnOp) (string, string, bool) {
	var creates []ColumnOp
	for _, op := range ops {
		if op.Kind == OpCreate && a.admissible(op) {
			creates = append(creates, op)
		}
	}
	if len(creates) > 0 {
		return a.buildCreate(esc, creates), "", true
	}

	// Column renames in this batch rewrite the AFTER anchor of later adds.
	renamed := make(map[string]string)
	for _, op := range ops {
		if op.Kind == OpChange && op.NewName != "" {
			renamed[op.Field] = op.NewName
		}
	}

	var frags []string
	newTable := ""
	for _, op := range ops {
		if !a.admissible(op) {
			continue
		}
		switch op.Kind {
		case OpAdd:
			frag := "ADD " + esc.EscapeIdentifier(op.Field) + " " + columnSQL(esc, op)
			if op.After != "" {
				anchor := op.After
				if to, ok := renamed[anchor]; ok {
					anchor = to
				}
				frag += " AFTER " + esc.EscapeIdentifier(anchor)
			}
			frags = append(frags, frag)
		case OpChange:
			frags = append(frags, "CHANGE "+esc.EscapeIdentifier(op.Field)+" "+
				esc.EscapeIdentifier(op.NewName)+" "+columnSQL(esc, op))
		case OpModify:
			frags = append(frags, "MODIFY "+esc.EscapeIdentifier(op.Field)+" "+columnSQL(esc, op))
		case OpDrop:
			frags = append(frags, "DROP "+esc.EscapeIdentifier(op.Field))
		case OpRename:
			frags = append(frags, "RENAME TO "+esc.EscapeIdentifier(op.NewName))
			newTable = op.NewName
		}
	}
	if len(frags) == 0 {
		return "", "", false
	}
	stmt := "ALTER TABLE " + esc.EscapeIdentifier(a.Table) + " " + strings.Join(frags, ", ")
	return stmt, newTable, true
}

// admissible applies the silent-skip guards: never touch the primary key
// or a locked column, and only add/create may name fields the definition
// does not track yet.
func (a *Alter) admissible(op ColumnOp) bool {
	switch op.Kind {
	case OpRename:
		return op.NewName != ""
	case OpAdd, OpCreate:
		if op.Field == "" || op.Field == a.PKField {
			return false
		}
		return a.Locked == nil || !a.Locked(op.Field)
	}
	if op.Field == "" || op.Field == a.PKField {
		return false
	}
	if a.Locked != nil && a.Locked(op.Field) {
		return false
	}
	if a.Tracked != nil && !a.Tracked(op.Field) {
		return false
	}
	if op.Kind == OpChange && op.NewName == "" {
		return false
	}
	return true
}

func (a *Alter) buildCreate(esc Escaper, ops []ColumnOp) string {
	pk := a.PKField
	if pk == "" {
		pk = "id"
	}
	cols := []string{
		esc.EscapeIdentifier(pk) + " INT(11) UNSIGNED NOT NULL AUTO_INCREMENT",
	}
	for _, op := range ops {
		cols = append(cols, esc.EscapeIdentifier(op.Field)+" "+columnSQL(esc, op))
	}
	cols = append(cols, "PRIMARY KEY ("+esc.EscapeIdentifier(pk)+")")
	return "CREATE TABLE " + esc.EscapeIdentifier(a.Table) + " (" + strings.Join(cols, ", ") + ")"
}

// columnSQL resolves the abstract type against the static type-rule table.
// Caller-supplied lengths apply only when valid and more restrictive than
// the type's maximum; everything else falls back to the rule defaults.
func columnSQL(esc Escaper, op ColumnOp) string {
	rule, ok := typeRules[op.Type]
	if !ok {
		rule = typeRules[TypeString]
	}

	var b strings.Builder
	b.WriteString(rule.sqlType)

	switch op.Type {
	case TypeEnum:
		members := make([]string, 0, len(op.Values))
		for _, v := range op.Values {
			members = append(members, "'"+esc.EscapeStr(v)+"'")
		}
		b.WriteString("(" + strings.Join(members, ",") + ")")
	case TypeDecimal:
		length := rule.defaultLen
		if op.Length > 0 && op.Length < rule.maxLen {
			length = op.Length
		}
		b.WriteString("(" + strconv.Itoa(length) + "," + strconv.Itoa(rule.decimals) + ")")
	default:
		if rule.defaultLen > 0 {
			length := rule.defaultLen
			if op.Length > 0 && op.Length < rule.maxLen {
				length = op.Length
			}
			b.WriteString("(" + strconv.Itoa(length) + ")")
		}
	}

	if rule.nullable {
		b.WriteString(" NULL")
		return b.String()
	}

	b.WriteString(" NOT NULL")
	switch {
	case op.Default != "":
		b.WriteString(" DEFAULT " + esc.Escape(op.Default))
	case op.Type == TypeEnum && len(op.Values) > 0:
		b.WriteString(" DEFAULT '" + esc.EscapeStr(op.Values[0]) + "'")
	case rule.hasDefault && rule.defaultVal != "":
		b.WriteString(" DEFAULT " + rule.defaultVal)
	}
	return b.String()
}
