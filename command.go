package streamswap

import (
	"context"
	"encoding/json"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/math"

	"github.com/xraph/streamswap/id"
	"github.com/xraph/streamswap/stream"
	"github.com/xraph/streamswap/types"
)

// Command is one of the operations the engine accepts. The set is closed:
// only types in this package implement it.
type Command interface {
	// Op names the command, e.g. "subscribe".
	Op() string
	// Target is the stream the command acts on. It is nil for CreateStream.
	Target() id.StreamID

	isCommand()
}

// OpCreateStream names the CreateStream command.
const OpCreateStream = "create_stream"

// CreateStream opens a new stream. Creator receives revenue and refunds.
type CreateStream struct {
	Name                   string     `json:"name" validate:"required,min=2,max=64,printascii"`
	URL                    string     `json:"url,omitempty" validate:"omitempty,min=12,max=128,url"`
	Creator                string     `json:"creator" validate:"required"`
	OutAsset               types.Coin `json:"out_asset"`
	InDenom                string     `json:"in_denom" validate:"required"`
	StartTime              time.Time  `json:"start_time" validate:"required"`
	EndTime                time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	BootstrappingStartTime *time.Time `json:"bootstrapping_start_time,omitempty"`
	Threshold              *math.Int  `json:"threshold,omitempty"`
}

// Subscribe deposits Amount of the stream's in denom into Owner's position.
// Owner defaults to Sender. Only the owner can open a position; Operator is
// recorded when it does.
type Subscribe struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
	Owner    string      `json:"owner,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Amount   math.Int    `json:"amount"`
}

// Withdraw returns unspent in denom. A nil Cap withdraws the whole balance.
// Recipient defaults to the owner.
type Withdraw struct {
	StreamID  id.StreamID `json:"stream_id"`
	Sender    string      `json:"sender"`
	Owner     string      `json:"owner,omitempty"`
	Cap       *math.Int   `json:"cap,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
}

// UpdateStream syncs the stream's accumulators. Anyone may send it.
type UpdateStream struct {
	StreamID id.StreamID `json:"stream_id"`
}

// UpdatePosition syncs the stream and settles Owner's position.
type UpdatePosition struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
	Owner    string      `json:"owner,omitempty"`
}

// UpdateOperator replaces the operator of Sender's position. An empty
// Operator removes it.
type UpdateOperator struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
	Operator string      `json:"operator,omitempty"`
}

// Exit settles Owner's position for good and pays it out.
type Exit struct {
	StreamID  id.StreamID `json:"stream_id"`
	Sender    string      `json:"sender"`
	Owner     string      `json:"owner,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
}

// Finalize closes an ended stream and pays the creator.
type Finalize struct {
	StreamID        id.StreamID `json:"stream_id"`
	Sender          string      `json:"sender"`
	NewPayoutTarget string      `json:"new_payout_target,omitempty"`
}

// Pause freezes an active stream. Admin only.
type Pause struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
}

// Resume unfreezes a paused stream. Admin only.
type Resume struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
}

// Cancel terminates a paused stream. Admin only.
type Cancel struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
}

// CancelWithThreshold terminates an ended stream that missed its
// threshold. Creator only.
type CancelWithThreshold struct {
	StreamID id.StreamID `json:"stream_id"`
	Sender   string      `json:"sender"`
}

func (CreateStream) Op() string        { return OpCreateStream }
func (Subscribe) Op() string           { return stream.OpSubscribe }
func (Withdraw) Op() string            { return stream.OpWithdraw }
func (UpdateStream) Op() string        { return stream.OpUpdateStream }
func (UpdatePosition) Op() string      { return stream.OpUpdatePosition }
func (UpdateOperator) Op() string      { return stream.OpUpdateOperator }
func (Exit) Op() string                { return stream.OpExit }
func (Finalize) Op() string            { return stream.OpFinalize }
func (Pause) Op() string               { return stream.OpPause }
func (Resume) Op() string              { return stream.OpResume }
func (Cancel) Op() string              { return stream.OpCancel }
func (CancelWithThreshold) Op() string { return stream.OpCancelWithThreshold }

func (CreateStream) Target() id.StreamID          { return id.Nil }
func (c Subscribe) Target() id.StreamID           { return c.StreamID }
func (c Withdraw) Target() id.StreamID            { return c.StreamID }
func (c UpdateStream) Target() id.StreamID        { return c.StreamID }
func (c UpdatePosition) Target() id.StreamID      { return c.StreamID }
func (c UpdateOperator) Target() id.StreamID      { return c.StreamID }
func (c Exit) Target() id.StreamID                { return c.StreamID }
func (c Finalize) Target() id.StreamID            { return c.StreamID }
func (c Pause) Target() id.StreamID               { return c.StreamID }
func (c Resume) Target() id.StreamID              { return c.StreamID }
func (c Cancel) Target() id.StreamID              { return c.StreamID }
func (c CancelWithThreshold) Target() id.StreamID { return c.StreamID }

func (CreateStream) isCommand()        {}
func (Subscribe) isCommand()           {}
func (Withdraw) isCommand()            {}
func (UpdateStream) isCommand()        {}
func (UpdatePosition) isCommand()      {}
func (UpdateOperator) isCommand()      {}
func (Exit) isCommand()                {}
func (Finalize) isCommand()            {}
func (Pause) isCommand()               {}
func (Resume) isCommand()              {}
func (Cancel) isCommand()              {}
func (CancelWithThreshold) isCommand() {}

// Execute dispatches cmd to its handler at time now.
func (e *Engine) Execute(ctx context.Context, now time.Time, cmd Command) (*Receipt, error) {
	switch c := cmd.(type) {
	case CreateStream:
		return e.CreateStream(ctx, now, c)
	case Subscribe:
		return e.Subscribe(ctx, now, c)
	case Withdraw:
		return e.Withdraw(ctx, now, c)
	case UpdateStream:
		return e.UpdateStream(ctx, now, c)
	case UpdatePosition:
		return e.UpdatePosition(ctx, now, c)
	case UpdateOperator:
		return e.UpdateOperator(ctx, now, c)
	case Exit:
		return e.Exit(ctx, now, c)
	case Finalize:
		return e.Finalize(ctx, now, c)
	case Pause:
		return e.Pause(ctx, now, c)
	case Resume:
		return e.Resume(ctx, now, c)
	case Cancel:
		return e.Cancel(ctx, now, c)
	case CancelWithThreshold:
		return e.CancelWithThreshold(ctx, now, c)
	default:
		return nil, errorsmod.Wrapf(ErrUnknownCommand, "%T", cmd)
	}
}

// envelope is the wire form of a command: {"type": "<op>", ...fields}.
type envelope struct {
	Type string `json:"type"`
}

// DecodeCommand parses a JSON command envelope.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidInput, "decode command: %v", err)
	}

	switch env.Type {
	case OpCreateStream:
		return decodeAs[CreateStream](data)
	case stream.OpSubscribe:
		return decodeAs[Subscribe](data)
	case stream.OpWithdraw:
		return decodeAs[Withdraw](data)
	case stream.OpUpdateStream:
		return decodeAs[UpdateStream](data)
	case stream.OpUpdatePosition:
		return decodeAs[UpdatePosition](data)
	case stream.OpUpdateOperator:
		return decodeAs[UpdateOperator](data)
	case stream.OpExit:
		return decodeAs[Exit](data)
	case stream.OpFinalize:
		return decodeAs[Finalize](data)
	case stream.OpPause:
		return decodeAs[Pause](data)
	case stream.OpResume:
		return decodeAs[Resume](data)
	case stream.OpCancel:
		return decodeAs[Cancel](data)
	case stream.OpCancelWithThreshold:
		return decodeAs[CancelWithThreshold](data)
	default:
		return nil, errorsmod.Wrapf(ErrUnknownCommand, "%q", env.Type)
	}
}

func decodeAs[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, errorsmod.Wrapf(ErrInvalidInput, "decode %s: %v", cmd.Op(), err)
	}
	return cmd, nil
}

// EncodeCommand renders cmd as a JSON envelope accepted by DecodeCommand.
func EncodeCommand(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	op, err := json.Marshal(cmd.Op())
	if err != nil {
		return nil, err
	}
	fields["type"] = op
	return json.Marshal(fields)
}
