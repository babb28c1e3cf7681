// Package schema owns the DDL side of the data layer: the static
// type-rule table mapping abstract field types to MySQL column types, the
// ALTER/CREATE statement generator, and the diff engine that turns an
// edited module definition into column operations and relation-table
// lifecycle actions.
package schema

import "strings"

// Cardinality of a relation between a dependent and an independent entity.
type Cardinality string

const (
	ManyToOne  Cardinality = "n:1"
	OneToMany  Cardinality = "1:n"
	ManyToMany Cardinality = "n:n"
)

// ParseCardinality normalizes a cardinality token, defaulting to n:1 for
// anything unrecognized.
func ParseCardinality(s string) Cardinality {
	switch Cardinality(strings.TrimSpace(s)) {
	case OneToMany:
		return OneToMany
	case ManyToMany:
		return ManyToMany
	}
	return ManyToOne
}

// TypeToken is an abstract field type from module configuration.
type TypeToken string

const (
	TypeString     TypeToken = "string"
	TypeText       TypeToken = "text"
	TypeInt        TypeToken = "int"
	TypeTinyInt    TypeToken = "tinyint"
	TypeBool       TypeToken = "bool"
	TypeDecimal    TypeToken = "decimal"
	TypeDate       TypeToken = "date"
	TypeDateTime   TypeToken = "datetime"
	TypeEnum       TypeToken = "enum"
	TypeSerialized TypeToken = "serialized"
)

// typeRule fixes how one abstract type renders as a MySQL column.
type typeRule struct {
	sqlType    string
	defaultLen int
	maxLen     int
	decimals   int
	hasDefault bool
	defaultVal string
	nullable   bool
}

var typeRules = map[TypeToken]typeRule{
	TypeString:     {sqlType: "VARCHAR", defaultLen: 255, maxLen: 255, hasDefault: true, defaultVal: "''"},
	TypeText:       {sqlType: "TEXT", nullable: true},
	TypeInt:        {sqlType: "INT", defaultLen: 11, maxLen: 11, hasDefault: true, defaultVal: "0"},
	TypeTinyInt:    {sqlType: "TINYINT", defaultLen: 3, maxLen: 3, hasDefault: true, defaultVal: "0"},
	TypeBool:       {sqlType: "TINYINT", defaultLen: 1, maxLen: 1, hasDefault: true, defaultVal: "0"},
	TypeDecimal:    {sqlType: "DECIMAL", defaultLen: 10, maxLen: 65, decimals: 2, hasDefault: true, defaultVal: "0"},
	TypeDate:       {sqlType: "DATE", nullable: true},
	TypeDateTime:   {sqlType: "DATETIME", nullable: true},
	TypeEnum:       {sqlType: "ENUM", hasDefault: true},
	TypeSerialized: {sqlType: "TEXT", nullable: true},
}

// KnownType reports whether token has a rule in the static type table.
func KnownType(token TypeToken) bool {
	_, ok := typeRules[token]
	return ok
}
