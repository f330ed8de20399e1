// Package core defines the failure taxonomy shared by the exchange layers.
//
// Every action either completes fully or fails with one of these sentinel
// errors wrapped in context; callers branch with errors.Is.
package core

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks rights over the
	// resource: cancelling someone else's order, or a non-admin whitelist call.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotWhitelisted is returned for a secondary-asset deposit whose symbol
	// has no whitelist entry or whose issuing contract does not match it.
	ErrNotWhitelisted = errors.New("symbol not whitelisted")

	// ErrInvalidNativeSource is returned when a native-asset deposit does not
	// originate from the canonical native token contract.
	ErrInvalidNativeSource = errors.New("native deposit from non-canonical contract")

	// ErrInvalidOrderSpec is returned for a malformed memo, a non-positive
	// implied price, or a non-positive computed counter-amount.
	ErrInvalidOrderSpec = errors.New("invalid order spec")

	// ErrOrderNotFound is returned when a cancellation references an id that
	// is not resting in the book.
	ErrOrderNotFound = errors.New("order not found")

	// ErrArithmeticOverflow is returned when a quantity or price computation
	// would not fit the fixed-precision representation.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)
