package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supplierID = "7a1c2d3e-0000-4000-8000-0000000000b5"

var (
	itemColumns          = []string{"id", "clinic_id", "name", "sku", "quantity", "unit", "created_at", "updated_at"}
	purchaseOrderColumns = []string{"id", "clinic_id", "supplier_id", "status", "total_cents", "created_at"}
)

const supplierExists = `SELECT EXISTS (SELECT 1 FROM "suppliers" WHERE "id" = $1 AND "clinic_id" IN ($2))`

func assertConflict(t *testing.T, err error) {
	t.Helper()
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestCreatePurchaseOrder_SupplierOfAnotherClinicIsNotFound(t *testing.T) {
	mockDB, svc, _ := newService(t)

	mockDB.ExpectQuery(supplierExists).
		WithArgs(supplierID, clinicA).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))

	err := svc.CreatePurchaseOrder(context.Background(), staff(clinicA), &repository.PurchaseOrder{SupplierID: supplierID})
	assert.True(t, errors.IsNotFound(err))
	mockDB.ExpectationsWereMet(t)
}

func TestCreatePurchaseOrder_OwnerWritesToSelectedClinic(t *testing.T) {
	mockDB, svc, _ := newService(t)
	now := time.Now()

	mockDB.ExpectQuery(supplierExists).
		WithArgs(supplierID, clinicB).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`INSERT INTO "purchase_orders" ("supplier_id", "status", "total_cents", "clinic_id")`).
		WithArgs(supplierID, "draft", 5000, clinicB).
		WillReturnRows(testutil.MockRows(purchaseOrderColumns...).
			AddRow(rowID, clinicB, supplierID, "draft", 5000, now))

	po := &repository.PurchaseOrder{SupplierID: supplierID, TotalCents: 5000, ClinicID: clinicA}
	require.NoError(t, svc.CreatePurchaseOrder(context.Background(), owner(clinicB), po))
	assert.Equal(t, clinicB, po.ClinicID)
	assert.Equal(t, repository.PurchaseOrderDraft, po.Status)
	mockDB.ExpectationsWereMet(t)
}

func TestCreatePurchaseOrder_OwnerWithoutSelectionIsForbidden(t *testing.T) {
	mockDB, svc, _ := newService(t)

	err := svc.CreatePurchaseOrder(context.Background(), owner(""), &repository.PurchaseOrder{SupplierID: supplierID})
	assert.True(t, errors.IsForbidden(err))
	mockDB.ExpectationsWereMet(t)
}

const adjustQuantity = `UPDATE "inventory_items" SET "quantity" = "quantity" + $1, "updated_at" = NOW() WHERE "id" = $2 AND "quantity" + $3 >= 0 AND "clinic_id" IN ($4) RETURNING`

func TestAdjustStock(t *testing.T) {
	t.Run("applies the delta in one guarded statement", func(t *testing.T) {
		mockDB, svc, _ := newService(t)
		now := time.Now()

		mockDB.ExpectQuery(adjustQuantity).
			WithArgs(-3, rowID, -3, clinicA).
			WillReturnRows(testutil.MockRows(itemColumns...).
				AddRow(rowID, clinicA, "Gloves", nil, 7, "box", now, now))

		item, err := svc.AdjustStock(context.Background(), staff(clinicA), rowID, -3)
		require.NoError(t, err)
		assert.Equal(t, 7, item.Quantity)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("two withdrawals cannot both spend the same stock", func(t *testing.T) {
		mockDB, svc, _ := newService(t)
		now := time.Now()

		// Stock is 10; each request takes 6.
		mockDB.ExpectQuery(adjustQuantity).
			WithArgs(-6, rowID, -6, clinicA).
			WillReturnRows(testutil.MockRows(itemColumns...).
				AddRow(rowID, clinicA, "Gloves", nil, 4, "box", now, now))
		mockDB.ExpectQuery(adjustQuantity).
			WithArgs(-6, rowID, -6, clinicA).
			WillReturnRows(testutil.MockRows(itemColumns...))
		mockDB.ExpectQuery(`SELECT EXISTS (SELECT 1 FROM "inventory_items" WHERE "id" = $1 AND "clinic_id" IN ($2))`).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows("exists").AddRow(true))

		first, err := svc.AdjustStock(context.Background(), staff(clinicA), rowID, -6)
		require.NoError(t, err)
		assert.Equal(t, 4, first.Quantity)

		_, err = svc.AdjustStock(context.Background(), staff(clinicA), rowID, -6)
		assertConflict(t, err)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("item of another clinic is not found", func(t *testing.T) {
		mockDB, svc, _ := newService(t)

		mockDB.ExpectQuery(adjustQuantity).
			WithArgs(1, rowID, 1, clinicA).
			WillReturnRows(testutil.MockRows(itemColumns...))
		mockDB.ExpectQuery(`SELECT EXISTS (SELECT 1 FROM "inventory_items"`).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows("exists").AddRow(false))

		_, err := svc.AdjustStock(context.Background(), staff(clinicA), rowID, 1)
		assert.True(t, errors.IsNotFound(err))
		mockDB.ExpectationsWereMet(t)
	})
}

func TestUpdatePurchaseOrder_FinalStatesAreKept(t *testing.T) {
	for _, final := range []string{repository.PurchaseOrderReceived, repository.PurchaseOrderCancelled} {
		t.Run(final, func(t *testing.T) {
			mockDB, svc, _ := newService(t)

			mockDB.ExpectBegin()
			mockDB.ExpectQuery(`FROM "purchase_orders" WHERE "id" = $1 AND "clinic_id" IN ($2) FOR UPDATE`).
				WithArgs(rowID, clinicA).
				WillReturnRows(testutil.MockRows(purchaseOrderColumns...).
					AddRow(rowID, clinicA, supplierID, final, 900, time.Now()))
			mockDB.ExpectRollback()

			po := &repository.PurchaseOrder{ID: rowID, ClinicID: clinicA, Status: repository.PurchaseOrderOrdered}
			assertConflict(t, svc.UpdatePurchaseOrder(context.Background(), staff(clinicA), rowID, po))
			mockDB.ExpectationsWereMet(t)
		})
	}
}

func TestDeletePurchaseOrder_OnlyDrafts(t *testing.T) {
	mockDB, svc, _ := newService(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`FROM "purchase_orders" WHERE "id" = $1 AND "clinic_id" IN ($2) FOR UPDATE`).
		WithArgs(rowID, clinicA).
		WillReturnRows(testutil.MockRows(purchaseOrderColumns...).
			AddRow(rowID, clinicA, supplierID, "ordered", 900, time.Now()))
	mockDB.ExpectRollback()

	assertConflict(t, svc.DeletePurchaseOrder(context.Background(), staff(clinicA), rowID))
	mockDB.ExpectationsWereMet(t)
}
