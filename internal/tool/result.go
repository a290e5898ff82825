package tool

import (
	"encoding/json"
	"fmt"

	xerrors "ChainPilot/internal/errors"
)

// Result is the uniform tool outcome rendered to a string at the model
// boundary. The model-facing protocol has no channel for raised errors, so
// failures travel inside the payload.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Code    string         `json:"error_code,omitempty"`
}

// Ok builds a success result.
func Ok(message string, details map[string]any) Result {
	return Result{Success: true, Message: message, Details: details}
}

// Fail builds a failure result carrying a pipeline error code.
func Fail(code xerrors.Code, message string) Result {
	if message == "" {
		message = xerrors.AttributesOf(code).Message
	}
	return Result{Success: false, Message: message, Code: string(code)}
}

// FailFromError maps an error to a failure result, preserving the code when
// the error is a coded pipeline error.
func FailFromError(err error) Result {
	if coded, ok := xerrors.From(err); ok {
		return Fail(coded.Code(), coded.Message())
	}
	return Fail(xerrors.CodeUnknown, err.Error())
}

// Render serialises the result for the model boundary.
func (r Result) Render() string {
	encoded, err := json.Marshal(r)
	if err != nil {
		// Details contained something unencodable; drop them rather than
		// losing the outcome.
		fallback := Result{Success: r.Success, Message: r.Message, Code: r.Code}
		encoded, err = json.Marshal(fallback)
		if err != nil {
			return fmt.Sprintf(`{"success":false,"message":%q}`, r.Message)
		}
	}
	return string(encoded)
}
