package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/medflow/dispensary-backend/pkg/errors"
)

// Kind classifies a fulfillment failure
type Kind string

const (
	KindNotFound                  Kind = "not_found"
	KindInvalidQuantity           Kind = "invalid_quantity"
	KindInsufficientStock         Kind = "insufficient_stock"
	KindExceedsPrescribedQuantity Kind = "exceeds_prescribed_quantity"
	KindPrescriptionCancelled     Kind = "prescription_cancelled"
	KindStorage                   Kind = "storage"
)

// Entity names the record a NotFound refers to
type Entity string

const (
	EntityPrescription Entity = "prescription"
	EntityStockEntry   Entity = "stock_entry"
	EntityStaff        Entity = "staff"
	EntityDispensation Entity = "dispensation"
)

func (e Entity) label() string {
	switch e {
	case EntityStockEntry:
		return "stock entry"
	case EntityStaff:
		return "staff member"
	default:
		return string(e)
	}
}

// Sentinels matched with errors.Is
var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidQuantity           = errors.New("invalid quantity")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrExceedsPrescribedQuantity = errors.New("exceeds prescribed quantity")
	ErrPrescriptionCancelled     = errors.New("prescription cancelled")
	ErrStorage                   = errors.New("storage error")
)

// FulfillmentError is returned by every dispensing operation that fails
type FulfillmentError struct {
	Kind   Kind
	Entity Entity
	// Requested is the quantity asked for
	Requested int
	// Remaining is the prescribed quantity not yet dispensed
	Remaining int
	// Available is the stock on hand
	Available int
	// Err is the underlying cause of a storage error
	Err error
}

// NotFound reports a missing record
func NotFound(entity Entity) *FulfillmentError {
	return &FulfillmentError{Kind: KindNotFound, Entity: entity}
}

// InvalidQuantity reports a non-positive quantity
func InvalidQuantity(requested int) *FulfillmentError {
	return &FulfillmentError{Kind: KindInvalidQuantity, Requested: requested}
}

// InsufficientStock reports a quantity above the stock on hand
func InsufficientStock(requested, available int) *FulfillmentError {
	return &FulfillmentError{Kind: KindInsufficientStock, Requested: requested, Available: available}
}

// ExceedsPrescribedQuantity reports a quantity above what is left to dispense
func ExceedsPrescribedQuantity(requested, remaining int) *FulfillmentError {
	return &FulfillmentError{Kind: KindExceedsPrescribedQuantity, Requested: requested, Remaining: remaining}
}

// PrescriptionCancelled reports a dispense against a cancelled prescription
func PrescriptionCancelled() *FulfillmentError {
	return &FulfillmentError{Kind: KindPrescriptionCancelled}
}

// StorageError wraps an unexpected persistence failure
func StorageError(cause error) *FulfillmentError {
	return &FulfillmentError{Kind: KindStorage, Err: cause}
}

func (e *FulfillmentError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s not found", e.Entity.label())
	case KindInvalidQuantity:
		return fmt.Sprintf("quantity to dispense must be greater than zero, got %d", e.Requested)
	case KindInsufficientStock:
		return fmt.Sprintf("quantity to dispense (%d) exceeds available stock (%d)", e.Requested, e.Available)
	case KindExceedsPrescribedQuantity:
		return fmt.Sprintf("quantity to dispense (%d) exceeds remaining prescribed quantity (%d)", e.Requested, e.Remaining)
	case KindPrescriptionCancelled:
		return "prescription is cancelled"
	case KindStorage:
		if e.Err != nil {
			return fmt.Sprintf("storage error: %v", e.Err)
		}
		return "storage error"
	default:
		return string(e.Kind)
	}
}

// Unwrap exposes the cause of a storage error
func (e *FulfillmentError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind
func (e *FulfillmentError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *FulfillmentError) sentinel() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindInvalidQuantity:
		return ErrInvalidQuantity
	case KindInsufficientStock:
		return ErrInsufficientStock
	case KindExceedsPrescribedQuantity:
		return ErrExceedsPrescribedQuantity
	case KindPrescriptionCancelled:
		return ErrPrescriptionCancelled
	default:
		return ErrStorage
	}
}

// AppError renders e for the HTTP layer. Storage causes stay in the logs.
func (e *FulfillmentError) AppError() *apperrors.AppError {
	switch e.Kind {
	case KindNotFound:
		appErr := apperrors.NotFound(e.Entity.label())
		appErr.Err = e
		appErr.Details = map[string]string{"entity": string(e.Entity)}
		return appErr

	case KindInvalidQuantity:
		return apperrors.NewWithKey(e, "INVALID_QUANTITY", "errors.invalid_quantity",
			http.StatusBadRequest, nil).
			WithDetails(map[string]string{"quantity": strconv.Itoa(e.Requested)})

	case KindInsufficientStock:
		available := strconv.Itoa(e.Available)
		return apperrors.NewWithKey(e, "INSUFFICIENT_STOCK", "errors.insufficient_stock",
			http.StatusConflict, map[string]string{"available": available}).
			WithDetails(map[string]string{"available": available, "requested": strconv.Itoa(e.Requested)})

	case KindExceedsPrescribedQuantity:
		remaining := strconv.Itoa(e.Remaining)
		return apperrors.NewWithKey(e, "EXCEEDS_PRESCRIBED_QUANTITY", "errors.exceeds_prescribed_quantity",
			http.StatusConflict, map[string]string{"remaining": remaining}).
			WithDetails(map[string]string{"remaining": remaining, "requested": strconv.Itoa(e.Requested)})

	case KindPrescriptionCancelled:
		return apperrors.NewWithKey(e, "PRESCRIPTION_CANCELLED", "errors.prescription_cancelled",
			http.StatusConflict, nil)

	default:
		return apperrors.NewWithKey(e, "STORAGE_ERROR", "errors.storage",
			http.StatusInternalServerError, nil)
	}
}

// KindOf returns the kind of a FulfillmentError anywhere in err's chain
func KindOf(err error) (Kind, bool) {
	var fe *FulfillmentError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
