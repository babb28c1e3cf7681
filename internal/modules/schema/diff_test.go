package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffRelationsAddAndRemove(t *testing.T) {
	oldRel := []RelationField{
		{ID: 1, Name: "categories", Config: RelationConfig{Module: "categories", Cardinality: ManyToMany}},
	}
	newRel := []RelationField{
		{ID: 1, Name: "categories", Config: RelationConfig{Module: "categories", Cardinality: ManyToMany}},
		{ID: 2, Name: "tags", Config: RelationConfig{Module: "tags", Cardinality: ManyToMany}},
	}

	d := DiffRelations(oldRel, newRel)
	assert.Equal(t, []string{"tags"}, d.CreateTables)
	assert.Empty(t, d.DropTables)
	assert.Contains(t, d.Create, "tags")
	assert.Empty(t, d.Delete)

	d = DiffRelations(newRel, oldRel)
	assert.Equal(t, []string{"tags"}, d.DropTables)
	assert.Contains(t, d.Delete, "tags")
	assert.Empty(t, d.CreateTables)
}

func TestDiffRelationsRenameByID(t *testing.T) {
	oldRel := []RelationField{
		{ID: 3, Name: "cats", Config: RelationConfig{Module: "categories", Cardinality: ManyToMany}},
	}
	newRel := []RelationField{
		{ID: 3, Name: "categories", Config: RelationConfig{Module: "categories", Cardinality: ManyToMany}},
	}

	d := DiffRelations(oldRel, newRel)
	assert.Equal(t, "categories", d.RenameFields["cats"])
	assert.Empty(t, d.CreateTables)
	assert.Empty(t, d.DropTables)
	assert.Empty(t, d.Create)
	assert.Empty(t, d.Delete)
}

func TestDiffRelationsCardinalityChangeTruncates(t *testing.T) {
	oldRel := []RelationField{
		{ID: 1, Name: "categories", Config: RelationConfig{Module: "categories", Cardinality: ManyToOne}},
	}
	newRel := []RelationField{
		{ID: 1, Name: "categories", Config: RelationConfig{Module: "categories", Cardinality: ManyToMany}},
	}

	d := DiffRelations(oldRel, newRel)
	assert.Equal(t, []string{"categories"}, d.TruncateFields)
	assert.Empty(t, d.CreateTables)
	assert.Empty(t, d.DropTables)
}

func TestDiffRelationsCreateAndDropStayDisjoint(t *testing.T) {
	// A field moves off a module while another field claims it: the module
	// must end up only in the create set.
	oldRel := []RelationField{
		{ID: 1, Name: "primary_cat", Config: RelationConfig{Module: "categories", Cardinality: ManyToOne}},
	}
	newRel := []RelationField{
		{ID: 9, Name: "all_cats", Config: RelationConfig{Module: "categories", Cardinality: ManyToMany}},
	}

	d := DiffRelations(oldRel, newRel)
	assert.Equal(t, []string{"categories"}, d.CreateTables)
	assert.Empty(t, d.DropTables)

	for _, created := range d.CreateTables {
		assert.NotContains(t, d.DropTables, created)
	}
}

func TestDiffFieldsAddAnchorsAfterPredecessor(t *testing.T) {
	oldFields := []FieldDef{
		{ID: 1, Name: "title", Type: TypeString},
	}
	newFields := []FieldDef{
		{ID: 1, Name: "title", Type: TypeString},
		{ID: 2, Name: "summary", Type: TypeText},
	}

	ops := DiffFields(oldFields, newFields)
	require.Len(t, ops, 1)
	assert.Equal(t, OpAdd, ops[0].Kind)
	assert.Equal(t, "summary", ops[0].Field)
	assert.Equal(t, "title", ops[0].After)
}

func TestDiffFieldsRenameByID(t *testing.T) {
	oldFields := []FieldDef{{ID: 1, Name: "title", Type: TypeString}}
	newFields := []FieldDef{{ID: 1, Name: "name", Type: TypeString}}

	ops := DiffFields(oldFields, newFields)
	require.Len(t, ops, 1)
	assert.Equal(t, OpChange, ops[0].Kind)
	assert.Equal(t, "title", ops[0].Field)
	assert.Equal(t, "name", ops[0].NewName)
}

func TestDiffFieldsTypeChangeEmitsModify(t *testing.T) {
	oldFields := []FieldDef{{ID: 1, Name: "price", Type: TypeInt}}
	newFields := []FieldDef{{ID: 1, Name: "price", Type: TypeDecimal, Length: 8}}

	ops := DiffFields(oldFields, newFields)
	require.Len(t, ops, 1)
	assert.Equal(t, OpModify, ops[0].Kind)
	assert.Equal(t, TypeDecimal, ops[0].Type)
}

func TestDiffFieldsEnumMemberChangeEmitsModify(t *testing.T) {
	oldFields := []FieldDef{{ID: 1, Name: "status", Type: TypeEnum, Values: []string{"a", "b"}}}
	newFields := []FieldDef{{ID: 1, Name: "status", Type: TypeEnum, Values: []string{"a", "b", "c"}}}

	ops := DiffFields(oldFields, newFields)
	require.Len(t, ops, 1)
	assert.Equal(t, OpModify, ops[0].Kind)
}

func TestDiffFieldsDrop(t *testing.T) {
	oldFields := []FieldDef{
		{ID: 1, Name: "title", Type: TypeString},
		{ID: 2, Name: "legacy", Type: TypeString},
	}
	newFields := []FieldDef{{ID: 1, Name: "title", Type: TypeString}}

	ops := DiffFields(oldFields, newFields)
	require.Len(t, ops, 1)
	assert.Equal(t, OpDrop, ops[0].Kind)
	assert.Equal(t, "legacy", ops[0].Field)
}

func TestDiffFieldsUnchangedIsEmpty(t *testing.T) {
	fields := []FieldDef{
		{ID: 1, Name: "title", Type: TypeString, Length: 150},
		{ID: 2, Name: "status", Type: TypeEnum, Values: []string{"a", "b"}},
	}
	assert.Empty(t, DiffFields(fields, fields))
}

func TestParseCardinality(t *testing.T) {
	assert.Equal(t, ManyToOne, ParseCardinality("n:1"))
	assert.Equal(t, OneToMany, ParseCardinality("1:n"))
	assert.Equal(t, ManyToMany, ParseCardinality(" n:n "))
	assert.Equal(t, ManyToOne, ParseCardinality("bogus"))
}
