package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/developkariyer/IWApim/internal/core/models"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func TestVariantRepository_FindByUnique(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()
		id := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "marketplace_id", "unique_marketplace_id", "sku", "sale_price", "published"}).
			AddRow(id.String(), 7, "B000000001", "SKU-1", "19.99", true)
		mock.ExpectQuery(`SELECT \* FROM "iwapim"."variant_products" WHERE marketplace_id = \$1 AND unique_marketplace_id = \$2`).
			WithArgs(7, "B000000001", 1).
			WillReturnRows(rows)

		v, err := NewVariantRepository(db).FindByUnique(context.Background(), 7, "B000000001")
		require.NoError(t, err)
		assert.Equal(t, id, v.ID)
		assert.True(t, v.SalePrice.Equal(decimal.RequireFromString("19.99")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock, mockDB := newMockGorm(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "iwapim"."variant_products"`).
			WillReturnError(gorm.ErrRecordNotFound)

		v, err := NewVariantRepository(db).FindByUnique(context.Background(), 7, "nope")
		assert.Nil(t, v)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestVariantRepository_CreateAssignsID(t *testing.T) {
	db, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	mock.ExpectExec(`INSERT INTO "iwapim"."variant_products"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	v := &models.Variant{MarketplaceID: 3, UniqueMarketplaceID: "123", Published: true}
	require.NoError(t, NewVariantRepository(db).Create(context.Background(), v))
	assert.NotEqual(t, uuid.Nil, v.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVariantRepository_PublishedAndUnpublish(t *testing.T) {
	db, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()
	repo := NewVariantRepository(db)

	mock.ExpectQuery(`SELECT "unique_marketplace_id" FROM "iwapim"."variant_products" WHERE marketplace_id = \$1 AND published = \$2`).
		WithArgs(5, true).
		WillReturnRows(sqlmock.NewRows([]string{"unique_marketplace_id"}).AddRow("A").AddRow("B"))
	mock.ExpectExec(`UPDATE "iwapim"."variant_products" SET "published"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ids, err := repo.PublishedIDs(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)

	n, err := repo.Unpublish(context.Background(), 5, []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Unpublish(context.Background(), 5, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarketplaceRepository_ListPublished(t *testing.T) {
	db, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id", "key", "marketplace_type", "published", "credentials", "countries", "currency"}).
		AddRow(1, "bol-nl", "Bol.com", true, []byte(`{"client_id":"c","client_secret":"s"}`), "{NL,BE}", "EUR")
	mock.ExpectQuery(`SELECT \* FROM "iwapim"."marketplaces" WHERE published = \$1`).
		WithArgs(true).
		WillReturnRows(rows)

	list, err := NewMarketplaceRepository(db).ListPublished(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.MarketplaceBol, list[0].Type)
	assert.Equal(t, []string{"NL", "BE"}, []string(list[0].Countries))

	bundle, err := list[0].Bundle()
	require.NoError(t, err)
	assert.Equal(t, "c", bundle.Get("client_id"))
	assert.Empty(t, bundle.Missing("client_id", "client_secret"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpsertBatch(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO iwapim.marketplace_orders .* ON CONFLICT \(marketplace_id, order_id\) DO UPDATE`).
		WithArgs(uint(4), "A-1", `{"v":2}`, uint(4), "A-2", `{"v":1}`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	orders := []models.Order{
		{MarketplaceID: 4, OrderID: "A-1", JSON: []byte(`{"v":1}`)},
		{MarketplaceID: 4, OrderID: "A-2", JSON: []byte(`{"v":1}`)},
		{MarketplaceID: 4, OrderID: "A-1", JSON: []byte(`{"v":2}`)},
	}
	require.NoError(t, NewOrderRepository(mockDB).UpsertBatch(context.Background(), orders))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_LastValue(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT MAX\(json->>\$2\) FROM iwapim.marketplace_orders`).
		WithArgs(uint(9), "orderPlacedDateTime").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	last, err := NewOrderRepository(mockDB).LastValue(context.Background(), 9, "orderPlacedDateTime")
	require.NoError(t, err)
	assert.Empty(t, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Replace(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM iwapim.inventory_summaries`).
		WithArgs(uint(2), "DE").
		WillReturnResult(sqlmock.NewResult(0, 5))
	prep := mock.ExpectPrepare(`COPY "iwapim"."inventory_summaries"`)
	prep.ExpectExec().WithArgs(uint(2), "DE", "SKU-1", "B01", 4, `{"fnSku":"X"}`).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = NewInventoryRepository(mockDB).Replace(context.Background(), 2, "DE", []models.InventoryRecord{
		{Sku: "SKU-1", ExternalID: "B01", Quantity: 4, Detail: []byte(`{"fnSku":"X"}`)},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrencyRepository_RateOn(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	day := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT value FROM iwapim.currency_history`).
		WithArgs("EUR", "2024-06-03").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("35.1234"))
	mock.ExpectQuery(`SELECT value FROM iwapim.currency_history`).
		WithArgs("XXX", "2024-06-03").
		WillReturnError(sql.ErrNoRows)

	repo := NewCurrencyRepository(mockDB)
	rate, err := repo.RateOn(context.Background(), "EUR", day)
	require.NoError(t, err)
	assert.Equal(t, "35.1234", rate.String())

	_, err = repo.RateOn(context.Background(), "XXX", day)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryRepository(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO iwapim.registry`).WithArgs("amazon-asin", "B01", "SKU-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO iwapim.registry`).WithArgs("amazon-asin", "B02", "SKU-2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT value FROM iwapim.registry`).
		WithArgs("amazon-asin", "B01").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("SKU-1"))
	mock.ExpectQuery(`SELECT value FROM iwapim.registry`).
		WithArgs("amazon-asin", "B09").
		WillReturnError(sql.ErrNoRows)

	repo := NewRegistryRepository(mockDB)
	require.NoError(t, repo.SetMany(context.Background(), "amazon-asin", map[string]string{"B02": "SKU-2", "B01": "SKU-1"}))

	v, ok, err := repo.Get(context.Background(), "amazon-asin", "B01")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "SKU-1", v)

	_, ok, err = repo.Get(context.Background(), "amazon-asin", "B09")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
