package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		dispensed, prescribed int
		want                  Status
	}{
		{0, 100, StatusPending},
		{1, 100, StatusPartiallyDispensed},
		{99, 100, StatusPartiallyDispensed},
		{100, 100, StatusFullyDispensed},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.dispensed, tt.prescribed), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.dispensed, tt.prescribed))
		})
	}
}

func TestStatus_Cancellable(t *testing.T) {
	assert.True(t, StatusPending.Cancellable())
	assert.True(t, StatusPartiallyDispensed.Cancellable())
	assert.False(t, StatusFullyDispensed.Cancellable())
	assert.False(t, StatusCancelled.Cancellable())
	assert.False(t, Status("archived").Valid())
}

func TestStockEntry_IsLow(t *testing.T) {
	assert.True(t, (&StockEntry{CurrentQuantity: 10, MinAlertQuantity: 10}).IsLow())
	assert.False(t, (&StockEntry{CurrentQuantity: 11, MinAlertQuantity: 10}).IsLow())
}

func TestFulfillmentError_Is(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{NotFound(EntityPrescription), ErrNotFound},
		{InvalidQuantity(0), ErrInvalidQuantity},
		{InsufficientStock(10, 5), ErrInsufficientStock},
		{ExceedsPrescribedQuantity(15, 10), ErrExceedsPrescribedQuantity},
		{PrescriptionCancelled(), ErrPrescriptionCancelled},
		{StorageError(errors.New("conn reset")), ErrStorage},
	}

	for _, tt := range tests {
		t.Run(tt.sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("dispense: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			for _, other := range []error{ErrNotFound, ErrInvalidQuantity, ErrInsufficientStock, ErrExceedsPrescribedQuantity, ErrPrescriptionCancelled, ErrStorage} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestFulfillmentError_MessageIncludesRemaining(t *testing.T) {
	err := ExceedsPrescribedQuantity(15, 10)
	assert.Contains(t, err.Error(), "10")
	assert.Contains(t, err.Error(), "15")
	assert.Equal(t, "stock entry not found", NotFound(EntityStockEntry).Error())
}

func TestFulfillmentError_StorageUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := StorageError(cause)
	assert.ErrorIs(t, err, cause)
}

func TestFulfillmentError_AppError(t *testing.T) {
	tests := []struct {
		name       string
		err        *FulfillmentError
		wantStatus int
		wantCode   string
		details    map[string]string
	}{
		{"not found", NotFound(EntityStaff), http.StatusNotFound, "NOT_FOUND", map[string]string{"entity": "staff"}},
		{"invalid quantity", InvalidQuantity(-1), http.StatusBadRequest, "INVALID_QUANTITY", map[string]string{"quantity": "-1"}},
		{"insufficient", InsufficientStock(10, 5), http.StatusConflict, "INSUFFICIENT_STOCK", map[string]string{"available": "5", "requested": "10"}},
		{"exceeds", ExceedsPrescribedQuantity(15, 10), http.StatusConflict, "EXCEEDS_PRESCRIBED_QUANTITY", map[string]string{"remaining": "10", "requested": "15"}},
		{"cancelled", PrescriptionCancelled(), http.StatusConflict, "PRESCRIPTION_CANCELLED", nil},
		{"storage", StorageError(errors.New("secret dsn")), http.StatusInternalServerError, "STORAGE_ERROR", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := apperrors.AsAppError(fmt.Errorf("wrapped: %w", tt.err))
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantStatus, appErr.StatusCode)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.details, appErr.Details)
			assert.NotContains(t, appErr.Message, "secret")
		})
	}
}

func TestFulfillmentError_AppErrorMessageHasNumber(t *testing.T) {
	appErr := ExceedsPrescribedQuantity(15, 10).AppError()
	assert.Equal(t, "quantity to dispense exceeds remaining prescribed quantity of 10", appErr.Message)
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("x: %w", InsufficientStock(2, 1)))
	assert.True(t, ok)
	assert.Equal(t, KindInsufficientStock, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
