package streamswap

import (
	"errors"

	errorsmod "cosmossdk.io/errors"

	"github.com/xraph/streamswap/fixedpoint"
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
)

// Registered errors. All share the "streamswap" codespace so hosts can map
// them to stable ABCI-style codes.
var (
	// Arithmetic errors
	ErrArithmetic = fixedpoint.ErrArithmetic

	// Invariant and authorization errors
	ErrOperationNotAllowed = stream.ErrOperationNotAllowed
	ErrThresholdNotReached = stream.ErrThresholdNotReached
	ErrThresholdReached    = stream.ErrThresholdReached
	ErrThresholdNotSet     = stream.ErrThresholdNotSet
	ErrUnauthorized        = errorsmod.Register(fixedpoint.Codespace, 1130, "unauthorized")

	// Input validation errors
	ErrInvalidInput           = stream.ErrInvalidInput
	ErrZeroThreshold          = stream.ErrZeroThreshold
	ErrInvalidWithdrawAmount  = position.ErrInvalidWithdrawAmount
	ErrWithdrawExceedsBalance = position.ErrWithdrawExceedsBalance
	ErrZeroAmount             = errorsmod.Register(fixedpoint.Codespace, 1131, "amount must be positive")
	ErrUnknownCommand         = errorsmod.Register(fixedpoint.Codespace, 1132, "unknown command")

	// Already-settled errors
	ErrPositionAlreadyExited = position.ErrAlreadyExited

	// Lookup and store errors
	ErrStreamNotFound   = stream.ErrNotFound
	ErrPositionNotFound = position.ErrNotFound
	ErrAlreadyExists    = errorsmod.Register(fixedpoint.Codespace, 1133, "already exists")
	ErrStoreClosed      = errorsmod.Register(fixedpoint.Codespace, 1134, "store is closed")
)

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStreamNotFound) ||
		errors.Is(err, ErrPositionNotFound)
}

// IsRecoverable returns true if the caller can retry the same command once
// the stream's conditions change (status, threshold or authorization).
// Arithmetic and validation failures are not recoverable by waiting.
func IsRecoverable(err error) bool {
	return errorsmod.IsOf(err,
		ErrOperationNotAllowed,
		ErrThresholdNotReached,
		ErrThresholdReached,
		ErrUnauthorized,
	)
}
