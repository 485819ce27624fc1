package types

import "github.com/xraph/streamswap/id"

// TransferKind classifies a fund movement intent.
type TransferKind string

const (
	// TransferWithdraw returns unspent in-denom to a participant.
	TransferWithdraw TransferKind = "withdraw"
	// TransferExitPurchase pays purchased out-denom on exit.
	TransferExitPurchase TransferKind = "exit_purchase"
	// TransferExitRefund returns in-denom on exit (balance, or everything on a failed stream).
	TransferExitRefund TransferKind = "exit_refund"
	// TransferCreatorRevenue pays the creator the spent in-denom minus fees.
	TransferCreatorRevenue TransferKind = "creator_revenue"
	// TransferFee moves the exit fee to the fee collector.
	TransferFee TransferKind = "fee"
	// TransferOutRefund returns undistributed out-denom to the creator.
	TransferOutRefund TransferKind = "out_refund"
)

// Transfer is an intent to move Coin to Recipient. The engine never moves
// funds itself; the host executes transfers after the operation commits.
type Transfer struct {
	ID        id.TransferID `json:"id"`
	StreamID  id.StreamID   `json:"stream_id"`
	Kind      TransferKind  `json:"kind"`
	Recipient string        `json:"recipient"`
	Coin      Coin          `json:"coin"`
}

// NewTransfer builds a transfer intent with a fresh ID.
func NewTransfer(streamID id.StreamID, kind TransferKind, recipient string, coin Coin) Transfer {
	return Transfer{
		ID:        id.NewTransferID(),
		StreamID:  streamID,
		Kind:      kind,
		Recipient: recipient,
		Coin:      coin,
	}
}
