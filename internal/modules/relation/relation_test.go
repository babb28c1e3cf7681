package relation

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siestaatnoon/abstract-cms-sub000/internal/database"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/entity"
	"github.com/siestaatnoon/abstract-cms-sub000/internal/modules/schema"
)

func newTestRelation(t *testing.T, depName, indepName string, card schema.Cardinality) (*Relation, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn := database.New(db, nil)
	dep, err := entity.New(conn, entity.Definition{Name: depName, PKField: "id"}, nil)
	require.NoError(t, err)
	indep := dep
	if indepName != depName {
		indep, err = entity.New(conn, entity.Definition{Name: indepName, PKField: "id"}, nil)
		require.NoError(t, err)
	}
	rel, err := New(dep, indep, card, nil)
	require.NoError(t, err)
	return rel, mock
}

func TestTableAndColumnNaming(t *testing.T) {
	rel, _ := newTestRelation(t, "products", "categories", schema.ManyToMany)
	assert.Equal(t, "rel_products_categories", rel.Table())
	assert.Equal(t, "product_id", rel.depCol)
	assert.Equal(t, "category_id", rel.indepCol)
}

func TestSelfRelationNaming(t *testing.T) {
	rel, _ := newTestRelation(t, "pages", "pages", schema.OneToMany)
	assert.Equal(t, "rel_pages_self", rel.Table())
	assert.Equal(t, "page_id", rel.depCol)
	assert.Equal(t, "page_rel_id", rel.indepCol)
}

func TestAddContinuesSortSequence(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectQuery("SELECT MAX(`sort_order`) AS `max_sort` FROM `rel_products_categories`" +
		" WHERE `product_id` = 7 AND `field` = 'categories'").
		WillReturnRows(sqlmock.NewRows([]string{"max_sort"}).AddRow(2))
	mock.ExpectExec("INSERT INTO `rel_products_categories` (`product_id`, `category_id`, `field`, `sort_order`)" +
		" VALUES (7, 31, 'categories', 3)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `rel_products_categories` (`product_id`, `category_id`, `field`, `sort_order`)" +
		" VALUES (7, 12, 'categories', 4)").
		WillReturnResult(sqlmock.NewResult(2, 1))

	ok, err := rel.Add(7, []int64{31, 12}, "categories")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddEmptyInputIsNoOp(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	ok, err := rel.Add(7, nil, "categories")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rel.Add(7, []int64{1}, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIDsOrderedBySort(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectQuery("SELECT `category_id` FROM `rel_products_categories`" +
		" WHERE `product_id` = 7 AND `field` = 'categories' ORDER BY `sort_order` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"category_id"}).AddRow(31).AddRow(12).AddRow(5))

	ids, err := rel.GetIDs(7, "categories")
	require.NoError(t, err)
	assert.Equal(t, []int64{31, 12, 5}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIDSingleEdge(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "brands", schema.ManyToOne)

	mock.ExpectQuery("SELECT `brand_id` FROM `rel_products_brands`" +
		" WHERE `product_id` = 7 AND `field` = 'brand' ORDER BY `sort_order` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"brand_id"}).AddRow(4))

	id, ok, err := rel.GetID(7, "brand")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), id)

	mock.ExpectQuery("SELECT `brand_id` FROM `rel_products_brands`" +
		" WHERE `product_id` = 9 AND `field` = 'brand' ORDER BY `sort_order` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"brand_id"}))

	_, ok, err = rel.GetID(9, "brand")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterDistinctAscending(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectQuery("SELECT DISTINCT `product_id` FROM `rel_products_categories`" +
		" WHERE `category_id` IN (31,12) AND `field` = 'categories' ORDER BY `product_id` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow(3).AddRow(7))

	ids, err := rel.Filter([]int64{31, 12}, "categories")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRequiresAFilter(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	ok, err := rel.Delete(0, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJoinsFiltersWithAnd(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectExec("DELETE FROM `rel_products_categories`" +
		" WHERE `product_id` = 7 AND `category_id` IN (31) AND `field` = 'categories'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := rel.Delete(7, []int64{31}, "categories")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSortOrderByDependent(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectExec("UPDATE `rel_products_categories` SET `sort_order` = 1" +
		" WHERE `product_id` = 7 AND `category_id` = 12 AND `field` = 'categories'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `rel_products_categories` SET `sort_order` = 2" +
		" WHERE `product_id` = 7 AND `category_id` = 31 AND `field` = 'categories'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := rel.SetSortOrderByDependent(7, []int64{12, 31}, "categories")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableTruncatesExisting(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectQuery("SHOW TABLES LIKE 'rel_products_categories'").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_cms"}).AddRow("rel_products_categories"))
	mock.ExpectExec("TRUNCATE TABLE `rel_products_categories`").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, rel.CreateTable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableWhenMissing(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectQuery("SHOW TABLES LIKE 'rel_products_categories'").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_cms"}))
	mock.ExpectExec("CREATE TABLE `rel_products_categories` (" +
		"`id` INT(11) UNSIGNED NOT NULL AUTO_INCREMENT, " +
		"`product_id` INT(11) UNSIGNED NOT NULL, " +
		"`category_id` INT(11) UNSIGNED NOT NULL, " +
		"`field` VARCHAR(64) NOT NULL DEFAULT '', " +
		"`sort_order` INT(11) NOT NULL DEFAULT 0, " +
		"PRIMARY KEY (`id`), KEY (`product_id`), KEY (`category_id`))").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, rel.CreateTable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJoinsPartnerTable(t *testing.T) {
	rel, mock := newTestRelation(t, "products", "categories", schema.ManyToMany)

	mock.ExpectQuery("SELECT `categories`.* FROM `rel_products_categories`" +
		" JOIN `categories` ON `rel_products_categories`.`category_id` = `categories`.`id`" +
		" WHERE `rel_products_categories`.`product_id` = 7" +
		" AND `rel_products_categories`.`field` = 'categories'" +
		" ORDER BY `rel_products_categories`.`sort_order` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(31, "Hardware").AddRow(12, "Tools"))

	rows, err := rel.Get(7, "categories")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hardware", rows[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
