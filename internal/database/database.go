package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// Conn wraps a MySQL connection and owns every escaping primitive used to
// build SQL text in this codebase. No caller input reaches a statement
// without passing through Escape, EscapeStr or EscapeIdentifier.
type Conn struct {
	db     *sql.DB
	logger *zap.Logger
}

// Connect opens a MySQL connection from a DSN and verifies it with a ping.
func Connect(dsn string, logger *zap.Logger) (*Conn, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing sql.DB. Used by tests to inject a mock connection.
func New(db *sql.DB, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{db: db, logger: logger}
}

// Close releases the underlying connection pool.
func (c *Conn) Close() error {
	return c.db.Close()
}

// DB exposes the raw handle for collaborators that manage their own SQL.
func (c *Conn) DB() *sql.DB { return c.db }

// Escape renders a value as a quoted SQL literal. Numeric values are
// rendered bare, nil becomes NULL, everything else is a quoted string.
func (c *Conn) Escape(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05") + "'"
	}
	return "'" + c.EscapeStr(value) + "'"
}

// EscapeStr renders a value as escaped text without surrounding quotes.
func (c *Conn) EscapeStr(value interface{}) string {
	s := toString(value)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case 0x1a:
			b.WriteString(`\Z`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeIdentifier quotes a table or column name with backticks. Embedded
// backticks are doubled, the MySQL identifier escape.
func (c *Conn) EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Query executes a statement and returns its result. SELECT-like statements
// load all rows eagerly; everything else runs as an exec and carries the new
// auto-increment id in the Result. The Conn holds no per-query state, so one
// connection is safe under concurrent requests.
func (c *Conn) Query(query string) (*Result, error) {
	c.logger.Debug("sql", zap.String("query", query))

	if isReadQuery(query) {
		rows, err := c.db.Query(query)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w", err)
		}
		defer rows.Close()
		return loadResult(rows)
	}

	res, err := c.db.Exec(query)
	if err != nil {
		return nil, fmt.Errorf("exec failed: %w", err)
	}
	affected, _ := res.RowsAffected()
	out := &Result{affected: affected}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		out.insertID = id
	}
	return out, nil
}

func isReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, kw := range []string{"SELECT", "SHOW", "DESCRIBE", "EXPLAIN"} {
		if strings.HasPrefix(q, kw) {
			return true
		}
	}
	return false
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", value)
}

// Result holds the rows of a read query, or the affected-row count of a
// write. Rows are fully materialized; Row iterates them one at a time.
type Result struct {
	rows     []map[string]interface{}
	cursor   int
	affected int64
	insertID int64
}

func loadResult(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := &Result{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out.rows = append(out.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalizeValue converts driver byte slices to strings so row maps hold
// comparable values.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// InsertID returns the auto-increment id of the INSERT that produced this
// result, zero for reads and non-insert writes.
func (r *Result) InsertID() int64 { return r.insertID }

// NumRows reports the row count of a read, or the affected count of a write.
func (r *Result) NumRows() int {
	if len(r.rows) > 0 {
		return len(r.rows)
	}
	return int(r.affected)
}

// Row returns the next row, nil when exhausted.
func (r *Result) Row() map[string]interface{} {
	if r.cursor >= len(r.rows) {
		return nil
	}
	row := r.rows[r.cursor]
	r.cursor++
	return row
}

// ResultArray returns all rows.
func (r *Result) ResultArray() []map[string]interface{} {
	return r.rows
}

// ResultAssoc returns the first row, nil when the result is empty.
func (r *Result) ResultAssoc() map[string]interface{} {
	if len(r.rows) == 0 {
		return nil
	}
	return r.rows[0]
}
