package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnavailable      ErrorCode = "UNAVAILABLE"
	CodeUnauthenticated  ErrorCode = "UNAUTHENTICATED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeCanceled         ErrorCode = "CANCELED"
	CodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"

	// CodeCapabilitiesUnavailable marks a provider or tool that is absent
	// from the current registry snapshot. Recoverable: routes to fallback.
	CodeCapabilitiesUnavailable ErrorCode = "CAPABILITIES_UNAVAILABLE"

	// CodeToolInvocation marks a transport, timeout, or non-success outcome
	// from a provider call. Recoverable: routes to fallback.
	CodeToolInvocation ErrorCode = "TOOL_INVOCATION_FAILED"

	// CodeGeneration marks an LLM failure during answer generation.
	CodeGeneration ErrorCode = "GENERATION_FAILED"
)

var (
	ErrNotAuthorized      = errors.New("knowledge base not found or unauthorized")
	ErrProviderNotFound   = errors.New("provider not found")
	ErrToolNotFound       = errors.New("tool not found")
	ErrRegistryNotReady   = errors.New("capabilities not yet discovered")
	ErrSessionNotFound    = errors.New("session not found")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrEmptyTurns         = errors.New("messages are required")
	ErrLastTurnNotUser    = errors.New("last message must be from user")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	return E(code, op, "", err)
}

// CodeFrom resolves the error code for any error, following wrapped causes
// and sentinel errors. Unknown errors report (CodeInternal, false).
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrNotAuthorized):
		return CodeUnauthenticated, true
	case errors.Is(err, ErrEmptyTurns), errors.Is(err, ErrLastTurnNotUser):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrProviderNotFound), errors.Is(err, ErrToolNotFound), errors.Is(err, ErrRegistryNotReady):
		return CodeCapabilitiesUnavailable, true
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrCollectionNotFound):
		return CodeNotFound, true
	default:
		return CodeInternal, false
	}
}

// Recoverable reports whether an error routes to the fallback branch rather
// than failing the question outright.
func Recoverable(err error) bool {
	code, ok := CodeFrom(err)
	if !ok {
		return false
	}
	switch code {
	case CodeCapabilitiesUnavailable, CodeToolInvocation, CodeUnavailable, CodeDeadlineExceeded:
		return true
	default:
		return false
	}
}
