// Package relation manages the join tables that connect a dependent entity
// to an independent one under a named form field, in one of three
// cardinalities. Edge rows carry a dense 1-based sort index scoped to the
// fixed side of the relation plus the field name.
package relation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/database"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/entity"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/schema"
	"go.uber.org/zap"
)

// Relation is the accessor for one (dependent, independent, cardinality)
// join table. Table and column names derive deterministically from the two
// entity names, with a suffix disambiguating self-relations.
type Relation struct {
	dep      *entity.Model
	indep    *entity.Model
	card     schema.Cardinality
	conn     *database.Conn
	logger   *zap.Logger
	table    string
	depCol   string
	indepCol string
}

// New builds a relation manager over the dependent and independent entity
// accessors. Both accessors must share one connection.
func New(dep, indep *entity.Model, card schema.Cardinality, logger *zap.Logger) (*Relation, error) {
	if dep == nil || indep == nil {
		return nil, fmt.Errorf("relation: both entity accessors are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	depName := dep.Definition().Name
	indepName := indep.Definition().Name

	r := &Relation{
		dep:      dep,
		indep:    indep,
		card:     card,
		conn:     dep.Conn(),
		logger:   logger,
		table:    TableName(depName, indepName),
		depCol:   inflect.Singularize(depName) + "_id",
		indepCol: inflect.Singularize(indepName) + "_id",
	}
	if depName == indepName {
		r.indepCol = inflect.Singularize(indepName) + "_rel_id"
	}
	return r, nil
}

// TableName derives the join-table name for a dependent/independent pair.
func TableName(depName, indepName string) string {
	name := "rel_" + depName + "_" + indepName
	if depName == indepName {
		name = "rel_" + depName + "_self"
	}
	return name
}

// Table returns the join-table name.
func (r *Relation) Table() string { return r.table }

// Cardinality returns the relation's cardinality tag.
func (r *Relation) Cardinality() schema.Cardinality { return r.card }

// Add inserts edges from depID to each of indepIDs under field. Slice order
// becomes sort order, continuing after the current maximum for the
// (dependent, field) scope. The inserts are not wrapped in a transaction; a
// mid-sequence failure leaves the earlier edges in place.
func (r *Relation) Add(depID int64, indepIDs []int64, field string) (bool, error) {
	if len(indepIDs) == 0 || field == "" {
		return false, nil
	}
	base, err := r.maxSort(depID, field)
	if err != nil {
		return false, err
	}
	for i, indepID := range indepIDs {
		query := "INSERT INTO " + r.conn.EscapeIdentifier(r.table) +
			" (" + r.conn.EscapeIdentifier(r.depCol) + ", " + r.conn.EscapeIdentifier(r.indepCol) +
			", " + r.conn.EscapeIdentifier("field") + ", " + r.conn.EscapeIdentifier(entity.FieldSort) +
			") VALUES (" + r.conn.Escape(depID) + ", " + r.conn.Escape(indepID) +
			", " + r.conn.Escape(field) + ", " + strconv.Itoa(base+i+1) + ")"
		if _, err := r.conn.Query(query); err != nil {
			return false, fmt.Errorf("relation %q add: %w", r.table, err)
		}
	}
	return true, nil
}

// Get returns the independent rows related to depID under field, in sort
// order, parsed through the independent entity's own row parsing.
func (r *Relation) Get(depID int64, field string) ([]entity.Row, error) {
	return r.joined(r.indep, r.indepCol, r.depCol, depID, field)
}

// GetDep is the inverse of Get: the dependent rows related to indepID.
func (r *Relation) GetDep(indepID int64, field string) ([]entity.Row, error) {
	return r.joined(r.dep, r.depCol, r.indepCol, indepID, field)
}

func (r *Relation) joined(side *entity.Model, sideCol, scopeCol string, scopeID int64, field string) ([]entity.Row, error) {
	sideTable := r.conn.EscapeIdentifier(side.Table())
	relTable := r.conn.EscapeIdentifier(r.table)
	pk := r.conn.EscapeIdentifier(side.Definition().PKField)

	query := "SELECT " + sideTable + ".* FROM " + relTable +
		" JOIN " + sideTable + " ON " + relTable + "." + r.conn.EscapeIdentifier(sideCol) +
		" = " + sideTable + "." + pk +
		" WHERE " + relTable + "." + r.conn.EscapeIdentifier(scopeCol) + " = " + r.conn.Escape(scopeID)
	if field != "" {
		query += " AND " + relTable + "." + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(field)
	}
	query += " ORDER BY " + relTable + "." + r.conn.EscapeIdentifier(entity.FieldSort) + " ASC"

	res, err := r.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("relation %q get: %w", r.table, err)
	}
	rows := make([]entity.Row, 0, res.NumRows())
	for raw := res.Row(); raw != nil; raw = res.Row() {
		rows = append(rows, side.ParseRow(raw))
	}
	return rows, nil
}

// GetIDs returns the independent ids related to depID in sort order,
// optionally scoped by field.
func (r *Relation) GetIDs(depID int64, field string) ([]int64, error) {
	query := "SELECT " + r.conn.EscapeIdentifier(r.indepCol) +
		" FROM " + r.conn.EscapeIdentifier(r.table) +
		" WHERE " + r.conn.EscapeIdentifier(r.depCol) + " = " + r.conn.Escape(depID)
	if field != "" {
		query += " AND " + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(field)
	}
	query += " ORDER BY " + r.conn.EscapeIdentifier(entity.FieldSort) + " ASC"

	res, err := r.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("relation %q get_ids: %w", r.table, err)
	}
	ids := make([]int64, 0, res.NumRows())
	for raw := res.Row(); raw != nil; raw = res.Row() {
		ids = append(ids, asInt64(raw[r.indepCol]))
	}
	return ids, nil
}

// GetID returns the single related independent id for a many-to-one
// relation, false when no edge exists. At most one edge is semantically
// valid for n:1; any extras are ignored.
func (r *Relation) GetID(depID int64, field string) (int64, bool, error) {
	ids, err := r.GetIDs(depID, field)
	if err != nil || len(ids) == 0 {
		return 0, false, err
	}
	return ids[0], true, nil
}

// Filter is the inverse lookup used by list-page filters: the distinct
// dependent ids referencing any of indepIDs, ascending.
func (r *Relation) Filter(indepIDs []int64, field string) ([]int64, error) {
	if len(indepIDs) == 0 {
		return nil, nil
	}
	escaped := make([]string, len(indepIDs))
	for i, id := range indepIDs {
		escaped[i] = r.conn.Escape(id)
	}
	query := "SELECT DISTINCT " + r.conn.EscapeIdentifier(r.depCol) +
		" FROM " + r.conn.EscapeIdentifier(r.table) +
		" WHERE " + r.conn.EscapeIdentifier(r.indepCol) + " IN (" + strings.Join(escaped, ",") + ")"
	if field != "" {
		query += " AND " + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(field)
	}
	query += " ORDER BY " + r.conn.EscapeIdentifier(r.depCol) + " ASC"

	res, err := r.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("relation %q filter: %w", r.table, err)
	}
	ids := make([]int64, 0, res.NumRows())
	for raw := res.Row(); raw != nil; raw = res.Row() {
		ids = append(ids, asInt64(raw[r.depCol]))
	}
	return ids, nil
}

// Delete removes edges matching the supplied filters, AND-joined. All
// three are optional but at least one must be non-empty; with none the call
// is a silent no-op returning false, never a full-table delete.
func (r *Relation) Delete(depID int64, indepIDs []int64, field string) (bool, error) {
	var conds []string
	if depID != 0 {
		conds = append(conds, r.conn.EscapeIdentifier(r.depCol)+" = "+r.conn.Escape(depID))
	}
	if len(indepIDs) > 0 {
		escaped := make([]string, len(indepIDs))
		for i, id := range indepIDs {
			escaped[i] = r.conn.Escape(id)
		}
		conds = append(conds, r.conn.EscapeIdentifier(r.indepCol)+" IN ("+strings.Join(escaped, ",")+")")
	}
	if field != "" {
		conds = append(conds, r.conn.EscapeIdentifier("field")+" = "+r.conn.Escape(field))
	}
	if len(conds) == 0 {
		return false, nil
	}

	query := "DELETE FROM " + r.conn.EscapeIdentifier(r.table) +
		" WHERE " + strings.Join(conds, " AND ")
	if _, err := r.conn.Query(query); err != nil {
		return false, fmt.Errorf("relation %q delete: %w", r.table, err)
	}
	return true, nil
}

// SetSortOrderByDependent reassigns dense 1-based sort indices to the edges
// of one dependent row, in the order of orderedIndepIDs. The dependent id
// and field fix the sort scope.
func (r *Relation) SetSortOrderByDependent(depID int64, orderedIndepIDs []int64, field string) (bool, error) {
	return r.reorder(r.depCol, depID, r.indepCol, orderedIndepIDs, field)
}

// SetSortOrderByIndependent is the mirror: the independent id fixes the
// scope and the dependent edges are the ordered side.
func (r *Relation) SetSortOrderByIndependent(indepID int64, orderedDepIDs []int64, field string) (bool, error) {
	return r.reorder(r.indepCol, indepID, r.depCol, orderedDepIDs, field)
}

func (r *Relation) reorder(scopeCol string, scopeID int64, orderCol string, orderedIDs []int64, field string) (bool, error) {
	if scopeID == 0 || len(orderedIDs) == 0 {
		return false, nil
	}
	ok := true
	var firstErr error
	for i, id := range orderedIDs {
		query := "UPDATE " + r.conn.EscapeIdentifier(r.table) +
			" SET " + r.conn.EscapeIdentifier(entity.FieldSort) + " = " + strconv.Itoa(i+1) +
			" WHERE " + r.conn.EscapeIdentifier(scopeCol) + " = " + r.conn.Escape(scopeID) +
			" AND " + r.conn.EscapeIdentifier(orderCol) + " = " + r.conn.Escape(id)
		if field != "" {
			query += " AND " + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(field)
		}
		if _, err := r.conn.Query(query); err != nil {
			ok = false
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return false, fmt.Errorf("relation %q set_sort_order: %w", r.table, firstErr)
	}
	return ok, nil
}

// CreateTable creates the join table, truncating it instead when it already
// exists. Invoked only by the schema diff pass, never by row operations.
func (r *Relation) CreateTable() error {
	exists, err := r.tableExists()
	if err != nil {
		return err
	}
	if exists {
		return r.ClearTable()
	}

	query := "CREATE TABLE " + r.conn.EscapeIdentifier(r.table) + " (" +
		r.conn.EscapeIdentifier("id") + " INT(11) UNSIGNED NOT NULL AUTO_INCREMENT, " +
		r.conn.EscapeIdentifier(r.depCol) + " INT(11) UNSIGNED NOT NULL, " +
		r.conn.EscapeIdentifier(r.indepCol) + " INT(11) UNSIGNED NOT NULL, " +
		r.conn.EscapeIdentifier("field") + " VARCHAR(64) NOT NULL DEFAULT '', " +
		r.conn.EscapeIdentifier(entity.FieldSort) + " INT(11) NOT NULL DEFAULT 0, " +
		"PRIMARY KEY (" + r.conn.EscapeIdentifier("id") + "), " +
		"KEY (" + r.conn.EscapeIdentifier(r.depCol) + "), " +
		"KEY (" + r.conn.EscapeIdentifier(r.indepCol) + "))"
	if _, err := r.conn.Query(query); err != nil {
		return fmt.Errorf("relation %q create table: %w", r.table, err)
	}
	return nil
}

// DropTable removes the join table entirely.
func (r *Relation) DropTable() error {
	query := "DROP TABLE IF EXISTS " + r.conn.EscapeIdentifier(r.table)
	if _, err := r.conn.Query(query); err != nil {
		return fmt.Errorf("relation %q drop table: %w", r.table, err)
	}
	return nil
}

// ClearTable truncates the join table without dropping it. Used when a
// cardinality change invalidates the edge rows but keeps the table shape.
func (r *Relation) ClearTable() error {
	query := "TRUNCATE TABLE " + r.conn.EscapeIdentifier(r.table)
	if _, err := r.conn.Query(query); err != nil {
		return fmt.Errorf("relation %q clear table: %w", r.table, err)
	}
	return nil
}

// RenameField rewrites the field-name column, used when a schema edit
// renames the owning form field.
func (r *Relation) RenameField(oldName, newName string) error {
	if oldName == "" || newName == "" || oldName == newName {
		return nil
	}
	query := "UPDATE " + r.conn.EscapeIdentifier(r.table) +
		" SET " + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(newName) +
		" WHERE " + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(oldName)
	if _, err := r.conn.Query(query); err != nil {
		return fmt.Errorf("relation %q rename field: %w", r.table, err)
	}
	return nil
}

func (r *Relation) tableExists() (bool, error) {
	query := "SHOW TABLES LIKE '" + r.conn.EscapeStr(r.table) + "'"
	res, err := r.conn.Query(query)
	if err != nil {
		return false, fmt.Errorf("relation %q exists check: %w", r.table, err)
	}
	return res.NumRows() > 0, nil
}

func (r *Relation) maxSort(depID int64, field string) (int, error) {
	query := "SELECT MAX(" + r.conn.EscapeIdentifier(entity.FieldSort) + ") AS " +
		r.conn.EscapeIdentifier("max_sort") +
		" FROM " + r.conn.EscapeIdentifier(r.table) +
		" WHERE " + r.conn.EscapeIdentifier(r.depCol) + " = " + r.conn.Escape(depID) +
		" AND " + r.conn.EscapeIdentifier("field") + " = " + r.conn.Escape(field)
	res, err := r.conn.Query(query)
	if err != nil {
		return 0, fmt.Errorf("relation %q max sort: %w", r.table, err)
	}
	raw := res.ResultAssoc()
	if raw == nil || raw["max_sort"] == nil {
		return 0, nil
	}
	return int(asInt64(raw["max_sort"])), nil
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
