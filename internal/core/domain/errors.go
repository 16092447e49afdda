package domain

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable category of a failure.
type Kind string

const (
	KindInvalidInput            Kind = "INVALID_INPUT"
	KindNotFound                Kind = "NOT_FOUND"
	KindItemUnavailable         Kind = "ITEM_UNAVAILABLE"
	KindItemNotInCart           Kind = "ITEM_NOT_IN_CART"
	KindEmptyCart               Kind = "EMPTY_CART"
	KindBelowMinimum            Kind = "BELOW_MINIMUM"
	KindCrossRestaurantOrder    Kind = "CROSS_RESTAURANT_ORDER"
	KindUnauthorized            Kind = "UNAUTHORIZED"
	KindForbidden               Kind = "FORBIDDEN"
	KindInvalidStatusTransition Kind = "INVALID_STATUS_TRANSITION"
	KindCancelWindowClosed      Kind = "CANCEL_WINDOW_CLOSED"
	KindAlreadyPaid             Kind = "ALREADY_PAID"
	KindOrderNotPayable         Kind = "ORDER_NOT_PAYABLE"
	KindPaymentDeclined         Kind = "PAYMENT_DECLINED"
	KindPaymentNotCancellable   Kind = "PAYMENT_NOT_CANCELLABLE"
	KindCancelFailed            Kind = "CANCEL_FAILED"
	KindInternal                Kind = "INTERNAL"
)

// Error is the typed error returned by the cart, order and payment engines.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
// Errors that carry no kind are INTERNAL.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the human readable message of a domain error, or the
// plain error text otherwise.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
