package entity

import (
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/database"
)

func newMockModel(t *testing.T, def Definition) (*Model, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := New(database.New(db, nil), def, nil)
	require.NoError(t, err)
	return m, mock
}

func productsDef() Definition {
	return Definition{
		Name:       "products",
		PKField:    "id",
		TitleField: "title",
		Fields: []Field{
			{ID: 1, Name: "title"},
			{ID: 2, Name: "status", Default: "draft"},
		},
		UseActive: true,
		UseSort:   true,
	}
}

func TestGetReturnsNilWhenMissing(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	mock.ExpectQuery("SELECT * FROM `products` WHERE `id` = 9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	row, err := m.Get(int64(9), false)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRowsSortOrderWithTitleTiebreak(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	mock.ExpectQuery("SELECT * FROM `products` ORDER BY `sort_order` ASC, `title` ASC LIMIT 10").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "sort_order"}).
			AddRow(2, "Anvil", 1).AddRow(1, "Widget", 2))

	rows, err := m.GetRows(QueryParams{OrderBy: FieldSort, IsAsc: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Anvil", rows[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRowsUnknownOrderFallsBackToTitle(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	mock.ExpectQuery("SELECT * FROM `products` ORDER BY `title` DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))

	_, err := m.GetRows(QueryParams{OrderBy: "bogus_column"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRowsSelectsWhitelistedFields(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	mock.ExpectQuery("SELECT `id`, `title` FROM `products` ORDER BY `title` DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(1, "Widget"))

	rows, err := m.GetRows(QueryParams{Fields: []string{"id", "title", "secret"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountIgnoresPaging(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	mock.ExpectQuery("SELECT COUNT(*) AS `count` FROM `products`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := m.Count(QueryParams{Offset: 50, Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAppliesDefaultsAndReservedColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	m, err := New(database.New(db, nil), productsDef(), nil)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(`sort_order`) AS `max_sort` FROM `products`")).
		WillReturnRows(sqlmock.NewRows([]string{"max_sort"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `products` (`title`, `status`, `is_active`, `sort_order`, `created_at`) VALUES ('Widget', 'draft', 1, 4, '")).
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := m.Insert(Row{"title": "Widget", "id": 99, "slug": "nope", "unknown": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNothingWritableIsNoOp(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	id, err := m.Insert(Row{"id": 5, "created_at": "now", "unknown": 1})
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRequiresPrimaryKey(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	ok, err := m.Update(Row{"title": "Renamed"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Update(Row{"id": 0, "title": "Renamed"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWritesChangedFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	m, err := New(database.New(db, nil), productsDef(), nil)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `products` SET `title` = 'Renamed', `updated_at` = '")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := m.Update(Row{"id": int64(7), "title": "Renamed"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesRowsAndSlugs(t *testing.T) {
	def := productsDef()
	def.UseSlug = true
	def.SlugSource = "title"
	m, mock := newMockModel(t, def)

	mock.ExpectExec("DELETE FROM `products` WHERE `id` IN (3,4)").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `abstract_slug` WHERE `module` = 'products' AND `row_id` IN (3,4)").
		WillReturnResult(sqlmock.NewResult(0, 2))

	ok, err := m.Delete(3, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActiveDisabledFlagIsNoOp(t *testing.T) {
	def := productsDef()
	def.UseActive = false
	m, mock := newMockModel(t, def)

	ok, err := m.SetActive([]int64{1}, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSortOrderDenseIndices(t *testing.T) {
	m, mock := newMockModel(t, productsDef())

	mock.ExpectExec("UPDATE `products` SET `sort_order` = 1 WHERE `id` = 9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `products` SET `sort_order` = 2 WHERE `id` = 4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := m.SetSortOrder([]int64{9, 4})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseRowStripsDisabledReservedColumns(t *testing.T) {
	m, _ := newMockModel(t, productsDef())

	row := m.ParseRow(map[string]interface{}{
		"id": int64(1), "title": "Widget",
		"is_active": int64(1), "is_archived": int64(0), "has_uploads": int64(0),
	})
	assert.Contains(t, row, "is_active")
	assert.NotContains(t, row, "is_archived")
	assert.NotContains(t, row, "has_uploads")
}
