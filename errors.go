package goToken

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind classifies a goToken failure.
type ErrorKind uint8

const (
	// KindUnknown is reported by KindOf for errors that did not come from goToken.
	KindUnknown ErrorKind = iota
	// KindConfiguration marks invalid policy or tenant wiring. It is only raised at startup.
	KindConfiguration
	KindPolicyNotFound
	KindTenantNotFound
	KindPolicyNotAllowedForTenant
	KindNoKeyAvailable
	KindEncryptionNotSupported
	KindMalformedToken
	KindUnknownKey
	// KindInvalidToken covers every baseline and validator rejection; Error.Reason says which.
	KindInvalidToken
	KindCancelled
)

var kindNames = [...]string{
	KindUnknown:                   "unknown error",
	KindConfiguration:             "configuration error",
	KindPolicyNotFound:            "policy not found",
	KindTenantNotFound:            "tenant not found",
	KindPolicyNotAllowedForTenant: "policy not allowed for tenant",
	KindNoKeyAvailable:            "no signing key available",
	KindEncryptionNotSupported:    "token encryption not supported",
	KindMalformedToken:            "malformed token",
	KindUnknownKey:                "unknown key",
	KindInvalidToken:              "invalid token",
	KindCancelled:                 "operation cancelled",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Error is the typed failure returned by every goToken operation.
//
// Compare with errors.Is against the Err* sentinels, or read the kind with KindOf.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A target carrying a reason must also
// match the reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	// ErrConfiguration matches configuration errors.
	ErrConfiguration = &Error{Kind: KindConfiguration}
	// ErrPolicyNotFound matches requests naming an unknown policy.
	ErrPolicyNotFound = &Error{Kind: KindPolicyNotFound}
	// ErrTenantNotFound matches requests naming an unknown tenant.
	ErrTenantNotFound = &Error{Kind: KindTenantNotFound}
	// ErrPolicyNotAllowedForTenant matches policies outside the tenant allow-list.
	ErrPolicyNotAllowedForTenant = &Error{Kind: KindPolicyNotAllowedForTenant}
	// ErrNoKeyAvailable matches issuance without a usable signing key.
	ErrNoKeyAvailable = &Error{Kind: KindNoKeyAvailable}
	// ErrEncryptionNotSupported matches issuance under a policy that asks for encryption.
	ErrEncryptionNotSupported = &Error{Kind: KindEncryptionNotSupported}
	// ErrMalformedToken matches tokens that cannot be decoded.
	ErrMalformedToken = &Error{Kind: KindMalformedToken}
	// ErrUnknownKey matches tokens whose kid cannot be resolved.
	ErrUnknownKey = &Error{Kind: KindUnknownKey}
	// ErrInvalidToken matches every baseline or validator rejection.
	ErrInvalidToken = &Error{Kind: KindInvalidToken}
	// ErrCancelled matches operations aborted by their context.
	ErrCancelled = &Error{Kind: KindCancelled}
)

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func configError(reason string) *Error {
	return newError(KindConfiguration, reason, nil)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// cancelled wraps the context cause so callers can still match context.Canceled.
func cancelled(ctx context.Context, err error) *Error {
	if cause := ctx.Err(); cause != nil {
		err = cause
	}
	return newError(KindCancelled, "", err)
}
