package capability

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a capability can surface
type Kind int

const (
	KindUnknown             Kind = iota
	KindValidation                  // Missing or malformed input
	KindUnsupported                 // Option outside the supported set (e.g. target language)
	KindProviderUnavailable         // Provider unreachable, not initialized, circuit open
	KindProvider                    // Provider answered with an error or a malformed response
	KindDisabled                    // Capability switched off or missing credentials
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnsupported:
		return "unsupported"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindProvider:
		return "provider_error"
	case KindDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by every service wrapper
type Error struct {
	Capability string
	Kind       Kind
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Cause)
		}
	}
	if e.Capability != "" {
		return fmt.Sprintf("%s: %s", e.Capability, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Details returns the underlying provider message, if any
func (e *Error) Details() string {
	if e == nil || e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

// Validation builds a client error for bad input
func Validation(capability, message string) error {
	return &Error{Capability: capability, Kind: KindValidation, Message: message}
}

// Unsupported builds a client error for an unsupported option
func Unsupported(capability, message string) error {
	return &Error{Capability: capability, Kind: KindUnsupported, Message: message}
}

// Unavailable builds an operational error for a provider that cannot be reached
func Unavailable(capability, message string, cause error) error {
	return &Error{Capability: capability, Kind: KindProviderUnavailable, Message: message, Cause: cause}
}

// ProviderFailure builds an operational error for a failed provider call
func ProviderFailure(capability, message string, cause error) error {
	return &Error{Capability: capability, Kind: KindProvider, Message: message, Cause: cause}
}

// Disabled builds the error for a capability that is switched off
func Disabled(capability, reason string) error {
	return &Error{Capability: capability, Kind: KindDisabled, Message: reason}
}

// KindOf extracts the Kind of err, KindUnknown when err is not a *Error
func KindOf(err error) Kind {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Kind
	}
	return KindUnknown
}

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindUnsupported
}
