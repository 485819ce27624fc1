// Package streamswap provides a continuous, pro-rata asset-streaming ledger
// for Go applications.
//
// A creator locks a fixed pool of an "out" asset into a stream with a time
// window. Participants subscribe with an "in" asset. As time passes the out
// pool is released to participants in proportion to their shares while
// their unspent in balance is drawn down at the same rate. When the window
// closes the creator finalizes and collects the spent in asset.
//
// streamswap is a library, not a service. It never moves funds itself:
// every command returns a Receipt whose Transfers are intents the host
// executes once the operation is committed. It never reads the wall clock
// for accrual either; every command carries the current time.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/streamswap"
//	    "github.com/xraph/streamswap/store/memory"
//	)
//
//	eng := streamswap.New(memory.New(),
//	    streamswap.WithAdmin("admin"),
//	    streamswap.WithFeeCollector("treasury"),
//	    streamswap.WithExitFee(math.LegacyMustNewDecFromStr("0.01")),
//	)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	rcpt, err := eng.CreateStream(ctx, now, streamswap.CreateStream{
//	    Name:      "launch",
//	    Creator:   "creator",
//	    OutAsset:  streamswap.NewInt64Coin("ulaunch", 1_000_000),
//	    InDenom:   "uusdc",
//	    StartTime: now,
//	    EndTime:   now.Add(24 * time.Hour),
//	})
//
//	_, err = eng.Subscribe(ctx, now, streamswap.Subscribe{
//	    StreamID: rcpt.StreamID,
//	    Sender:   "alice",
//	    Amount:   math.NewInt(150),
//	})
//
// # Commands
//
// Every command is a value of one of the Command types and can be run
// through its own Engine method or through Engine.Execute. DecodeCommand
// accepts the JSON envelope form {"type": "subscribe", ...}.
//
// # Lifecycle
//
// A stream is waiting, then optionally bootstrapping, then active, then
// ended. Those statuses follow from the clock. Pause, cancellation and
// finalization are explicit transitions and stick. A command that is not
// valid in the stream's current status fails with ErrOperationNotAllowed.
//
// # Storage
//
// The engine depends only on store.Store. Memory, SQLite, PostgreSQL and
// MongoDB backends are provided under store/. Each operation persists the
// stream and position together or not at all.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	stream_01h2xcejqtf2nbrexx3vqjhp41  // Stream ID
//	pos_01h2xcejqtf2nbrexx3vqjhp41     // Position ID
//	xfer_01h455vb4pex5vsknk084sn02q    // Transfer ID
package streamswap
