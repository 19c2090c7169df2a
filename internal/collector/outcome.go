package collector

import "github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"

// Error codes carried in caller-scoped error events.
const (
	CodeUnauthorizedRole   = "unauthorizedRole"
	CodeInvalidInput       = "invalidInput"
	CodeDuplicateAction    = "duplicateAction"
	CodePersistenceFailure = "persistenceFailure"
)

// Outcome is the caller-scoped terminal event for one inbound operation.
// A nil Outcome means the operation answered through group broadcasts
// alone.
type Outcome struct {
	Event   string
	Payload interface{}
}

func errorOutcome(code, message string) *Outcome {
	return &Outcome{
		Event:   types.EventError,
		Payload: types.ErrorPayload{Code: code, Message: message},
	}
}
