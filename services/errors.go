package services

import (
	"errors"

	"github.com/Kariqs/galio-api/utils"
)

var (
	ErrEmptyCart            = errors.New("your cart is empty")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrProductUnavailable   = errors.New("product is not available")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrDeliveryAreaNotFound = errors.New("delivery area not found")
	ErrInvalidCoupon        = errors.New("invalid or expired coupon")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrPaymentInitiation    = errors.New("payment could not be started")
	ErrPaymentNotRecorded   = errors.New("payment request was sent but could not be recorded")
	ErrOrderNotFound        = errors.New("order not found")
	ErrConsistencyViolation = errors.New("payment and order state disagree")

	errAlreadyTerminal = errors.New("payment already settled")
)

// IsValidationError reports errors caused by the request itself. No state has been
// changed when one of these is returned.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmptyCart,
		ErrInvalidQuantity,
		ErrProductUnavailable,
		ErrDeliveryAreaNotFound,
		ErrInvalidCoupon,
		utils.ErrInvalidPhone,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
