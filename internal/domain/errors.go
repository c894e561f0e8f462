package domain

import (
	"errors"
	"fmt"
)

// Error represents a domain error with an associated HTTP-style code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// ConfigurationError indicates a startup misconfiguration. It is the only
// error kind allowed to terminate the process.
type ConfigurationError struct {
	Key string
	Err *Error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	return e.Err.Error()
}

// NewConfigurationError creates a new ConfigurationError for the given setting.
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{
		Key: key,
		Err: NewError(message, 500),
	}
}

// NewDuplicateToolError reports a second registration of the same tool name.
func NewDuplicateToolError(name string) *ConfigurationError {
	return NewConfigurationError(name, fmt.Sprintf("tool %s is already registered", name))
}

// RequestMalformedError indicates an inbound request that cannot be routed or parsed.
type RequestMalformedError struct {
	Reason string
	Err    *Error
}

// Error returns the error message.
func (e *RequestMalformedError) Error() string {
	return e.Err.Error()
}

// NewRequestMalformedError creates a new RequestMalformedError.
func NewRequestMalformedError(reason string) *RequestMalformedError {
	return &RequestMalformedError{
		Reason: reason,
		Err:    NewError(reason, 400),
	}
}

// SessionNotFoundError indicates a routing failure: the identity was present
// but no live session carries it.
type SessionNotFoundError struct {
	ID  string
	Err *Error
}

// Error returns the error message.
func (e *SessionNotFoundError) Error() string {
	return e.Err.Error()
}

// NewSessionNotFoundError creates a new SessionNotFoundError.
func NewSessionNotFoundError(id string) *SessionNotFoundError {
	return &SessionNotFoundError{
		ID: id,
		Err: NewError(
			fmt.Sprintf("session with ID %s not found", id),
			404,
		),
	}
}

// DuplicateIdentityError indicates that a session identity is already registered.
type DuplicateIdentityError struct {
	ID  string
	Err *Error
}

// Error returns the error message.
func (e *DuplicateIdentityError) Error() string {
	return e.Err.Error()
}

// NewDuplicateIdentityError creates a new DuplicateIdentityError.
func NewDuplicateIdentityError(id string) *DuplicateIdentityError {
	return &DuplicateIdentityError{
		ID: id,
		Err: NewError(
			fmt.Sprintf("session with ID %s already registered", id),
			409,
		),
	}
}

// UnknownToolError indicates that a requested tool was not found.
type UnknownToolError struct {
	Name string
	Err  *Error
}

// Error returns the error message.
func (e *UnknownToolError) Error() string {
	return e.Err.Error()
}

// NewUnknownToolError creates a new UnknownToolError.
func NewUnknownToolError(name string) *UnknownToolError {
	return &UnknownToolError{
		Name: name,
		Err: NewError(
			fmt.Sprintf("Unknown tool: %s", name),
			404,
		),
	}
}

// InvalidArgumentsError indicates that tool arguments did not satisfy the input schema.
type InvalidArgumentsError struct {
	Field   string
	Message string
	Err     *Error
}

// Error returns the error message.
func (e *InvalidArgumentsError) Error() string {
	return e.Err.Error()
}

// NewInvalidArgumentsError creates a new InvalidArgumentsError. An empty field
// means the arguments object as a whole was rejected.
func NewInvalidArgumentsError(field, message string) *InvalidArgumentsError {
	text := message
	if field != "" {
		text = fmt.Sprintf("Invalid %s value", field)
	}
	return &InvalidArgumentsError{
		Field:   field,
		Message: message,
		Err:     NewError(text, 400),
	}
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsRequestMalformed reports whether err is a RequestMalformedError.
func IsRequestMalformed(err error) bool {
	var target *RequestMalformedError
	return errors.As(err, &target)
}

// IsSessionNotFound reports whether err is a SessionNotFoundError.
func IsSessionNotFound(err error) bool {
	var target *SessionNotFoundError
	return errors.As(err, &target)
}

// IsDuplicateIdentity reports whether err is a DuplicateIdentityError.
func IsDuplicateIdentity(err error) bool {
	var target *DuplicateIdentityError
	return errors.As(err, &target)
}

// IsUnknownTool reports whether err is an UnknownToolError.
func IsUnknownTool(err error) bool {
	var target *UnknownToolError
	return errors.As(err, &target)
}

// IsInvalidArguments reports whether err is an InvalidArgumentsError.
func IsInvalidArguments(err error) bool {
	var target *InvalidArgumentsError
	return errors.As(err, &target)
}
