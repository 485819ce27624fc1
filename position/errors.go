package position

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/xraph/streamswap/fixedpoint"
)

var (
	ErrNotFound               = errorsmod.Register(fixedpoint.Codespace, 1120, "position not found")
	ErrAlreadyExited          = errorsmod.Register(fixedpoint.Codespace, 1121, "position already exited")
	ErrInvalidWithdrawAmount  = errorsmod.Register(fixedpoint.Codespace, 1122, "invalid withdraw amount")
	ErrWithdrawExceedsBalance = errorsmod.Register(fixedpoint.Codespace, 1123, "withdraw exceeds balance")
)
