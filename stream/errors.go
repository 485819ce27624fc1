package stream

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/xraph/streamswap/fixedpoint"
)

var (
	ErrArithmetic          = fixedpoint.ErrArithmetic
	ErrOperationNotAllowed = errorsmod.Register(fixedpoint.Codespace, 1101, "operation not allowed in current status")
	ErrThresholdNotReached = errorsmod.Register(fixedpoint.Codespace, 1102, "threshold not reached")
	ErrThresholdReached    = errorsmod.Register(fixedpoint.Codespace, 1103, "threshold reached")
	ErrThresholdNotSet     = errorsmod.Register(fixedpoint.Codespace, 1104, "threshold not set")
	ErrZeroThreshold       = errorsmod.Register(fixedpoint.Codespace, 1105, "threshold must be non-zero")
	ErrNotFound            = errorsmod.Register(fixedpoint.Codespace, 1106, "stream not found")
	ErrInvalidInput        = errorsmod.Register(fixedpoint.Codespace, 1107, "invalid input")
)
