// Package apperr defines the engine's error taxonomy and its transport mappings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeForbidden               Code = "FORBIDDEN"
	CodeInvalidTransition       Code = "INVALID_TRANSITION"
	CodeAlreadyAnswered         Code = "ALREADY_ANSWERED"
	CodeNotJoinable             Code = "NOT_JOINABLE"
	CodeNotEnoughReady          Code = "NOT_ENOUGH_READY"
	CodeCodeGenerationExhausted Code = "CODE_GENERATION_EXHAUSTED"
	CodeUnauthenticated         Code = "UNAUTHENTICATED"
	CodeSessionNotPlaying       Code = "SESSION_NOT_PLAYING"
	CodeNotParticipant          Code = "NOT_PARTICIPANT"
	CodeQuestionNotFound        Code = "QUESTION_NOT_FOUND"
	CodeInvalidArgument         Code = "INVALID_ARGUMENT"
	CodeInternal                Code = "INTERNAL"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	NotFound                = &Error{Code: CodeNotFound, Message: "not found"}
	Forbidden               = &Error{Code: CodeForbidden, Message: "forbidden"}
	InvalidTransition       = &Error{Code: CodeInvalidTransition, Message: "invalid session transition"}
	AlreadyAnswered         = &Error{Code: CodeAlreadyAnswered, Message: "question already answered"}
	NotJoinable             = &Error{Code: CodeNotJoinable, Message: "session is not joinable"}
	NotEnoughReady          = &Error{Code: CodeNotEnoughReady, Message: "no participant is ready"}
	CodeGenerationExhausted = &Error{Code: CodeCodeGenerationExhausted, Message: "could not allocate a session code"}
	Unauthenticated         = &Error{Code: CodeUnauthenticated, Message: "authentication required"}
	SessionNotPlaying       = &Error{Code: CodeSessionNotPlaying, Message: "session is not playing"}
	NotParticipant          = &Error{Code: CodeNotParticipant, Message: "not a participant of this session"}
	QuestionNotFound        = &Error{Code: CodeQuestionNotFound, Message: "question not found"}
	InvalidArgument         = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	Internal                = &Error{Code: CodeInternal, Message: "internal error"}
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause.
func Wrap(code Code, cause error, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// GetCode extracts the code from any error. Unknown errors are CodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Message returns a client-safe message. Unknown errors get a generic one.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an unexpected error occurred"
}

// HTTPStatus maps a code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeQuestionNotFound:
		return http.StatusNotFound
	case CodeForbidden, CodeNotParticipant:
		return http.StatusForbidden
	case CodeInvalidTransition,
		CodeSessionNotPlaying,
		CodeAlreadyAnswered,
		CodeNotJoinable,
		CodeNotEnoughReady:
		return http.StatusConflict
	case CodeCodeGenerationExhausted:
		return http.StatusServiceUnavailable
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus maps any error to its HTTP status.
func HTTPStatus(err error) int {
	return GetCode(err).HTTPStatus()
}
