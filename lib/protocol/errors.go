// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMsgType means msgType is outside 1..7.
	ErrUnknownMsgType = errors.New("unknown msgType")

	// ErrMissingField means a field required by the msgType is absent.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidField means a field is present but unusable: a wrong
	// JSON type, or a timestamp in another layout.
	ErrInvalidField = errors.New("invalid field")

	// ErrMessageTooLarge means a message ran past the Reader's size
	// limit. The stream is no longer aligned and must be closed.
	ErrMessageTooLarge = errors.New("message too large")
)

// ProtocolError describes a well-formed JSON object that is not a valid
// message. The stream is still aligned on the next object.
type ProtocolError struct {
	// Type is the message type, when it could be determined.
	Type MsgType

	// Err is one of ErrUnknownMsgType, ErrMissingField or
	// ErrInvalidField.
	Err error

	// Field names the offending field, if any.
	Field string

	cause error
}

func (e *ProtocolError) Error() string {
	message := "protocol: " + e.Err.Error()
	if e.Field != "" {
		message += " " + e.Field
	}
	if e.Type != 0 {
		message += fmt.Sprintf(" in %s", e.Type)
	}
	if e.cause != nil {
		message += ": " + e.cause.Error()
	}
	return message
}

func (e *ProtocolError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var protocolError *ProtocolError
	return errors.As(err, &protocolError)
}
