package audithook

// Action constants for audit events.
const (
	// Stream actions
	ActionStreamCreated   = "stream.created"
	ActionStreamSynced    = "stream.synced"
	ActionStreamPaused    = "stream.paused"
	ActionStreamResumed   = "stream.resumed"
	ActionStreamCanceled  = "stream.canceled"
	ActionStreamFinalized = "stream.finalized"

	// Position actions
	ActionPositionSubscribed = "position.subscribed"
	ActionPositionWithdrawn  = "position.withdrawn"
	ActionPositionUpdated    = "position.updated"
	ActionPositionExited     = "position.exited"

	// Failures
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceStream   = "stream"
	ResourcePosition = "position"
)

// Category constants for audit events.
const (
	CategoryLifecycle  = "lifecycle"
	CategoryTrading    = "trading"
	CategorySettlement = "settlement"
	CategoryAdmin      = "admin"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
