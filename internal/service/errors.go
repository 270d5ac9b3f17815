package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Cart issues, rejected before any transaction begins
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrProductNotFound = errors.New("product not found")
	ErrMissingAddress  = errors.New("delivery address is required")
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInfrastructure    = errors.New("temporary failure, please retry")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidRange      = errors.New("invalid range")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateRequest  = errors.New("an order with this idempotency key is in progress")
)

// ValidationError reports a cart issue. It unwraps to one of the cart sentinels.
type ValidationError struct {
	Err       error
	ProductID int64
}

func (e *ValidationError) Error() string {
	if e.ProductID != 0 {
		return fmt.Sprintf("%v: product %d", e.Err, e.ProductID)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a cart issue
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InsufficientStockError names the product that could not be reserved
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %s)", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InfrastructureError hides a database or broker failure behind ErrInfrastructure.
// The cause stays reachable for logging through Unwrap.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrInfrastructure)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

func infra(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}
