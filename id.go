package streamswap

import "github.com/xraph/streamswap/id"

// ID is the primary identifier type for all streamswap entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// StreamID identifies a stream.
type StreamID = id.StreamID
