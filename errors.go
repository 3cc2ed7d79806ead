package jaasjwt

import (
	"errors"
	"fmt"
)

// ErrorCode represents jaasjwt error categories.
type ErrorCode string

const (
	ErrCodeKeyLoad          ErrorCode = "key_load_failed"
	ErrCodeKeyParse         ErrorCode = "key_parse_failed"
	ErrCodeSigning          ErrorCode = "signing_failed"
	ErrCodeMissingParameter ErrorCode = "missing_parameter"
	ErrCodeInvalidParameter ErrorCode = "invalid_parameter"
	ErrCodeUnauthorized     ErrorCode = "unauthorized"
	ErrCodeInvalidToken     ErrorCode = "invalid_token"
	ErrCodeExpired          ErrorCode = "token_expired"
	ErrCodeNotYetValid      ErrorCode = "token_not_yet_valid"
	ErrCodeInvalidIssuer    ErrorCode = "invalid_issuer"
	ErrCodeInvalidAudience  ErrorCode = "invalid_audience"
	ErrCodeInvalidSubject   ErrorCode = "invalid_subject"
	ErrCodeJWKSUnavailable  ErrorCode = "jwks_unavailable"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeKeyLoad:          "Signing key unavailable",
	ErrCodeKeyParse:         "Signing key malformed",
	ErrCodeSigning:          "Error generating JWT",
	ErrCodeMissingParameter: "Missing required parameter",
	ErrCodeInvalidParameter: "Invalid parameter",
	ErrCodeUnauthorized:     "Unauthorized Request",
	ErrCodeInvalidToken:     "Invalid token",
	ErrCodeExpired:          "Token expired",
	ErrCodeNotYetValid:      "Token not yet valid",
	ErrCodeInvalidIssuer:    "Invalid issuer",
	ErrCodeInvalidAudience:  "Invalid audience",
	ErrCodeInvalidSubject:   "Invalid subject",
	ErrCodeJWKSUnavailable:  "JWKS unavailable",
}

// Sentinels for errors.Is. They match any *Error carrying the same code.
var (
	ErrKeyLoad      = &Error{Code: ErrCodeKeyLoad}
	ErrKeyParse     = &Error{Code: ErrCodeKeyParse}
	ErrSigning      = &Error{Code: ErrCodeSigning}
	ErrUnauthorized = &Error{Code: ErrCodeUnauthorized}
)

// Error wraps jaasjwt errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the outermost *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// paramError reports a request field problem; the message names the field.
func paramError(code ErrorCode, field string, err error) error {
	return &Error{Code: code, Message: fmt.Sprintf("%s: %s", errorMessages[code], field), Err: err}
}
