package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code identifies a failure class shared across the pipeline.
type Code string

// Severity describes how serious an error is, used for logging and audits.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	CodeUnknown               Code = "UNKNOWN"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeInitializationFailure Code = "INITIALIZATION_FAILURE"
	CodeStorageFailure        Code = "STORAGE_FAILURE"
	CodeTimeout               Code = "TIMEOUT"

	// Tool dispatch.
	CodeUnknownTool      Code = "UNKNOWN_TOOL"
	CodeInvalidArguments Code = "INVALID_ARGUMENTS"

	// Session and custody.
	CodeNoActiveSession Code = "NO_ACTIVE_SESSION"
	CodeNoWalletFound   Code = "NO_WALLET_FOUND"

	// Transaction execution.
	CodeAmountConversion    Code = "AMOUNT_CONVERSION"
	CodeSigning             Code = "SIGNING"
	CodeSubmission          Code = "SUBMISSION"
	CodeReverted            Code = "REVERTED"
	CodeConfirmationTimeout Code = "CONFIRMATION_TIMEOUT"
	CodeUpstreamQuote       Code = "UPSTREAM_QUOTE"

	// Run lifecycle.
	CodeRunFailed    Code = "RUN_FAILED"
	CodeRunCancelled Code = "RUN_CANCELLED"
)

// Attributes supplies default behaviour for a code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
}

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown:               {Message: "unknown error", Severity: SeverityCritical},
		CodeInvalidArgument:       {Message: "invalid argument", Severity: SeverityInfo},
		CodeNotFound:              {Message: "resource not found", Severity: SeverityInfo},
		CodeConflict:              {Message: "resource conflict", Severity: SeverityWarning},
		CodeInitializationFailure: {Message: "service not initialized", Severity: SeverityWarning, Retryable: true},
		CodeStorageFailure:        {Message: "storage failure", Severity: SeverityCritical, Retryable: true},
		CodeTimeout:               {Message: "operation timed out", Severity: SeverityWarning, Retryable: true},
		CodeUnknownTool:           {Message: "tool is not registered", Severity: SeverityInfo},
		CodeInvalidArguments:      {Message: "tool arguments do not satisfy the declared schema", Severity: SeverityInfo},
		CodeNoActiveSession:       {Message: "no authenticated session", Severity: SeverityInfo},
		CodeNoWalletFound:         {Message: "no wallet found for session", Severity: SeverityInfo},
		CodeAmountConversion:      {Message: "amount cannot be represented exactly", Severity: SeverityInfo},
		CodeSigning:               {Message: "transaction signing failed", Severity: SeverityWarning},
		CodeSubmission:            {Message: "node rejected the transaction", Severity: SeverityWarning},
		CodeReverted:              {Message: "transaction reverted on chain", Severity: SeverityWarning},
		CodeConfirmationTimeout:   {Message: "no confirmation observed in time", Severity: SeverityWarning, Retryable: true},
		CodeUpstreamQuote:         {Message: "bridge quote service failed", Severity: SeverityWarning, Retryable: true},
		CodeRunFailed:             {Message: "model run ended in failure", Severity: SeverityWarning},
		CodeRunCancelled:          {Message: "model run was cancelled", Severity: SeverityInfo},
	}
)

// Register lets a package add or override code attributes during init.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes for a code, falling back to UNKNOWN.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error is the coded error type used throughout the pipeline.
type Error struct {
	code     Code
	message  string
	cause    error
	metadata map[string]string
}

// Option configures an Error at construction time.
type Option func(*Error)

// WithMetadata attaches a key/value pair for diagnostics.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// New builds a coded error. An empty message falls back to the code default.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap attaches a cause to a new coded error.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches errors by code so errors.Is can test for a failure class.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the human readable message without the code prefix.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata returns a copy of the attached metadata.
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable reports the default retry hint for the error code.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return AttributesOf(e.code).Retryable
}

// Severity returns the severity associated with the error code.
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	return AttributesOf(e.code).Severity
}

// From extracts the coded error from an error chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or UNKNOWN.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// MessageOf returns the human readable message of a coded error, or the
// plain error text for anything else.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := From(err); ok && e.Message() != "" {
		return e.Message()
	}
	return err.Error()
}
