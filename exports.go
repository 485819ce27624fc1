package streamswap

import (
	"github.com/xraph/streamswap/position"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Re-export common types for convenience so users don't have to import the
// domain packages for everyday use.

// Stream is re-exported from the stream package.
type Stream = stream.Stream

// Position is re-exported from the position package.
type Position = position.Position

// Status is re-exported from the stream package.
type Status = stream.Status

// Coin is re-exported from types package.
type Coin = types.Coin

// Transfer is re-exported from types package.
type Transfer = types.Transfer

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Coin constructors
var (
	NewCoin      = types.NewCoin
	NewInt64Coin = types.NewInt64Coin
	ParseCoin    = types.ParseCoin
)

// DeriveStatus is re-exported from the stream package.
var DeriveStatus = stream.DeriveStatus
