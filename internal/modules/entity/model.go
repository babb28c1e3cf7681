package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/database"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/schema"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/pkg/codec"
	"go.uber.org/zap"
)

// Row is a flat field→value map for one entity record.
type Row map[string]interface{}

// QueryParams drive GetRows and Count.
type QueryParams struct {
	Fields  []string
	Where   Where
	OrderBy string
	IsAsc   bool
	Offset  int
	Limit   int
}

// Model is the table accessor for one entity. All row access for the entity
// goes through it; it applies the value codec, strips reserved columns the
// definition does not enable, and keeps the shared slug table in sync.
type Model struct {
	def    Definition
	conn   *database.Conn
	logger *zap.Logger
	table  string
}

// New builds an accessor from a validated definition.
func New(conn *database.Conn, def Definition, logger *zap.Logger) (*Model, error) {
	if conn == nil {
		return nil, fmt.Errorf("entity %q: connection is required", def.Name)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{def: def, conn: conn, logger: logger, table: def.Name}, nil
}

// Definition returns the entity definition.
func (m *Model) Definition() Definition { return m.def }

// Table returns the current table name. It changes only through a rename
// operation in AlterTable.
func (m *Model) Table() string { return m.table }

// Conn returns the accessor's connection, shared with collaborators that
// build SQL against the same entity.
func (m *Model) Conn() *database.Conn { return m.conn }

// Get fetches a single row by primary key, or by slug when bySlug is set.
// Returns (nil, nil) when no row matches, or on a slug lookup against an
// entity without slug support.
func (m *Model) Get(idOrSlug interface{}, bySlug bool) (Row, error) {
	id := idOrSlug
	if bySlug {
		if !m.def.UseSlug {
			return nil, nil
		}
		slug, ok := idOrSlug.(string)
		if !ok {
			return nil, nil
		}
		rowID, err := m.slugRowID(slug)
		if err != nil {
			return nil, err
		}
		if rowID == 0 {
			return nil, nil
		}
		id = rowID
	}

	query := "SELECT * FROM " + m.conn.EscapeIdentifier(m.table) +
		" WHERE " + m.conn.EscapeIdentifier(m.def.PKField) + " = " + m.conn.Escape(id)
	res, err := m.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("entity %q get: %w", m.def.Name, err)
	}
	raw := res.ResultAssoc()
	if raw == nil {
		return nil, nil
	}
	return m.ParseRow(raw), nil
}

// GetRows fetches rows matching params. Ordering falls back to the title
// field when the requested column is not in the whitelist; a secondary
// ascending title sort keeps pagination deterministic whenever the primary
// order is some other column.
func (m *Model) GetRows(params QueryParams) ([]Row, error) {
	res, err := m.conn.Query(m.buildSelect(params, false))
	if err != nil {
		return nil, fmt.Errorf("entity %q get_rows: %w", m.def.Name, err)
	}
	rows := make([]Row, 0, res.NumRows())
	for raw := res.Row(); raw != nil; raw = res.Row() {
		rows = append(rows, m.ParseRow(raw))
	}
	return rows, nil
}

// Count returns the number of rows matching params, ignoring offset/limit.
func (m *Model) Count(params QueryParams) (int64, error) {
	res, err := m.conn.Query(m.buildSelect(params, true))
	if err != nil {
		return 0, fmt.Errorf("entity %q count: %w", m.def.Name, err)
	}
	raw := res.ResultAssoc()
	if raw == nil {
		return 0, nil
	}
	return toInt64(raw["count"]), nil
}

func (m *Model) buildSelect(params QueryParams, count bool) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if count {
		b.WriteString("COUNT(*) AS " + m.conn.EscapeIdentifier("count"))
	} else if len(params.Fields) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, 0, len(params.Fields))
		for _, f := range params.Fields {
			if m.def.allowedColumn(f) {
				cols = append(cols, m.conn.EscapeIdentifier(f))
			}
		}
		if len(cols) == 0 {
			b.WriteString("*")
		} else {
			b.WriteString(strings.Join(cols, ", "))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(m.conn.EscapeIdentifier(m.table))

	if where := m.BuildWhere(params.Where); where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if count {
		return b.String()
	}

	orderBy := params.OrderBy
	if !m.def.allowedColumn(orderBy) {
		orderBy = m.def.TitleField
	}
	if orderBy != "" {
		dir := " DESC"
		if params.IsAsc {
			dir = " ASC"
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(m.conn.EscapeIdentifier(orderBy))
		b.WriteString(dir)
		if m.def.TitleField != "" && orderBy != m.def.TitleField {
			b.WriteString(", ")
			b.WriteString(m.conn.EscapeIdentifier(m.def.TitleField))
			b.WriteString(" ASC")
		}
	}
	if params.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(params.Limit))
		if params.Offset > 0 {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(params.Offset))
		}
	}
	return b.String()
}

// Insert writes a new row merged over the entity defaults and returns the
// new primary key. Returns 0 with no error when nothing survives field
// filtering, the caller treats a zero id as failure.
func (m *Model) Insert(row Row) (int64, error) {
	values := m.def.Defaults()
	supplied := m.filterWritable(row)
	if len(supplied) == 0 {
		return 0, nil
	}
	for k, v := range supplied {
		values[k] = v
	}

	if m.def.UseActive {
		values[FieldActive] = 1
	}
	if m.def.UseArchive {
		values[FieldArchive] = 0
	}
	if m.def.UseSort {
		next, err := m.nextSortIndex()
		if err != nil {
			return 0, err
		}
		values[FieldSort] = next
	}
	values[FieldCreatedAt] = time.Now()

	cols := make([]string, 0, len(values))
	vals := make([]string, 0, len(values))
	for _, name := range m.writeOrder(values) {
		cols = append(cols, m.conn.EscapeIdentifier(name))
		vals = append(vals, m.conn.Escape(codec.Encode(values[name])))
	}

	query := "INSERT INTO " + m.conn.EscapeIdentifier(m.table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"
	res, err := m.conn.Query(query)
	if err != nil {
		return 0, fmt.Errorf("entity %q insert: %w", m.def.Name, err)
	}
	id := res.InsertID()

	if m.def.UseSlug {
		source, ok := values[m.def.SlugSource].(string)
		if ok && source != "" {
			if err := m.SetSlug(id, source); err != nil {
				m.logger.Warn("slug assignment failed",
					zap.String("entity", m.def.Name), zap.Int64("id", id), zap.Error(err))
			}
		}
	}
	return id, nil
}

// Update rewrites an existing row. The primary key must be present and
// non-empty in the payload; otherwise the call is a silent no-op returning
// false.
func (m *Model) Update(row Row) (bool, error) {
	pk, ok := row[m.def.PKField]
	if !ok || isEmptyID(pk) {
		return false, nil
	}
	values := m.filterWritable(row)
	if len(values) == 0 {
		return false, nil
	}
	values[FieldUpdatedAt] = time.Now()

	sets := make([]string, 0, len(values))
	for _, name := range m.writeOrder(values) {
		sets = append(sets, m.conn.EscapeIdentifier(name)+" = "+m.conn.Escape(codec.Encode(values[name])))
	}
	query := "UPDATE " + m.conn.EscapeIdentifier(m.table) +
		" SET " + strings.Join(sets, ", ") +
		" WHERE " + m.conn.EscapeIdentifier(m.def.PKField) + " = " + m.conn.Escape(pk)
	if _, err := m.conn.Query(query); err != nil {
		return false, fmt.Errorf("entity %q update: %w", m.def.Name, err)
	}

	if m.def.UseSlug {
		if source, ok := row[m.def.SlugSource].(string); ok && source != "" {
			if err := m.SetSlug(toInt64(pk), source); err != nil {
				m.logger.Warn("slug update failed",
					zap.String("entity", m.def.Name), zap.Any("id", pk), zap.Error(err))
			}
		}
	}
	return true, nil
}

// Delete removes rows by primary key along with their slug records.
// Removal of relation edges and uploaded files is the caller's concern,
// invoked around, not inside, this method.
func (m *Model) Delete(ids ...int64) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = m.conn.Escape(id)
	}
	query := "DELETE FROM " + m.conn.EscapeIdentifier(m.table) +
		" WHERE " + m.conn.EscapeIdentifier(m.def.PKField) + " IN (" + strings.Join(escaped, ",") + ")"
	if _, err := m.conn.Query(query); err != nil {
		return false, fmt.Errorf("entity %q delete: %w", m.def.Name, err)
	}
	if m.def.UseSlug {
		if err := m.DeleteSlugs(ids...); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SetActive toggles the active flag. A no-op returning false for entities
// that did not declare the flag.
func (m *Model) SetActive(ids []int64, active bool) (bool, error) {
	return m.setFlag(FieldActive, m.def.UseActive, ids, active)
}

// SetArchive toggles the archive flag, same contract as SetActive.
func (m *Model) SetArchive(ids []int64, archived bool) (bool, error) {
	return m.setFlag(FieldArchive, m.def.UseArchive, ids, archived)
}

func (m *Model) setFlag(field string, enabled bool, ids []int64, value bool) (bool, error) {
	if !enabled || len(ids) == 0 {
		return false, nil
	}
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = m.conn.Escape(id)
	}
	query := "UPDATE " + m.conn.EscapeIdentifier(m.table) +
		" SET " + m.conn.EscapeIdentifier(field) + " = " + m.conn.Escape(value) +
		" WHERE " + m.conn.EscapeIdentifier(m.def.PKField) + " IN (" + strings.Join(escaped, ",") + ")"
	if _, err := m.conn.Query(query); err != nil {
		return false, fmt.Errorf("entity %q set %s: %w", m.def.Name, field, err)
	}
	return true, nil
}

// SetSortOrder assigns dense 1-based sort indices in slice order. Writes
// continue past individual failures; the return value is false when any
// write failed, so partial application is possible.
func (m *Model) SetSortOrder(ids []int64) (bool, error) {
	if !m.def.UseSort || len(ids) == 0 {
		return false, nil
	}
	ok := true
	var firstErr error
	for i, id := range ids {
		query := "UPDATE " + m.conn.EscapeIdentifier(m.table) +
			" SET " + m.conn.EscapeIdentifier(FieldSort) + " = " + strconv.Itoa(i+1) +
			" WHERE " + m.conn.EscapeIdentifier(m.def.PKField) + " = " + m.conn.Escape(id)
		if _, err := m.conn.Query(query); err != nil {
			ok = false
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return false, fmt.Errorf("entity %q set_sort_order: %w", m.def.Name, firstErr)
	}
	return ok, nil
}

// AlterTable applies a column-operation batch to the entity's table.
// Returns false with no error when the batch produces no DDL.
func (m *Model) AlterTable(ops []schema.ColumnOp) (bool, error) {
	alter := schema.Alter{
		Table:   m.table,
		PKField: m.def.PKField,
		Tracked: m.def.HasField,
		Locked:  IsLocked,
	}
	stmt, newTable, ok := alter.Build(m.conn, ops)
	if !ok {
		return false, nil
	}
	if _, err := m.conn.Query(stmt); err != nil {
		return false, fmt.Errorf("entity %q alter: %w", m.def.Name, err)
	}
	if newTable != "" {
		m.table = newTable
	}
	return true, nil
}

// ParseRow decodes serialized cells and strips reserved columns the
// definition does not enable. Collaborators reading this entity's rows from
// their own queries route them through here for consistency.
func (m *Model) ParseRow(raw map[string]interface{}) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		if IsReserved(k) && !m.def.usesReserved(k) {
			continue
		}
		row[k] = codec.Decode(v)
	}
	return row
}

// filterWritable drops unknown, locked, reserved and primary-key fields
// from a caller payload. Silently: malformed payloads degrade, they do not
// fail the request.
func (m *Model) filterWritable(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		if k == m.def.PKField || IsLocked(k) || IsReserved(k) {
			continue
		}
		if !m.def.HasField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// writeOrder returns the column names of values in a stable order:
// definition order first, then the reserved/locked columns the accessor
// added.
func (m *Model) writeOrder(values Row) []string {
	out := make([]string, 0, len(values))
	for _, f := range m.def.Fields {
		if _, ok := values[f.Name]; ok {
			out = append(out, f.Name)
		}
	}
	for _, name := range []string{FieldActive, FieldArchive, FieldSort, FieldUploads, FieldCreatedAt, FieldUpdatedAt} {
		if _, ok := values[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (m *Model) nextSortIndex() (int, error) {
	query := "SELECT MAX(" + m.conn.EscapeIdentifier(FieldSort) + ") AS " +
		m.conn.EscapeIdentifier("max_sort") + " FROM " + m.conn.EscapeIdentifier(m.table)
	res, err := m.conn.Query(query)
	if err != nil {
		return 0, fmt.Errorf("entity %q max sort: %w", m.def.Name, err)
	}
	raw := res.ResultAssoc()
	if raw == nil || raw["max_sort"] == nil {
		return 1, nil
	}
	return int(toInt64(raw["max_sort"])) + 1, nil
}

func isEmptyID(v interface{}) bool {
	switch id := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(id) == "" || id == "0"
	case int:
		return id == 0
	case int64:
		return id == 0
	case float64:
		return id == 0
	}
	return false
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
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
