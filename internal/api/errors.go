package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is wrapped when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// ResponseError is returned when the server answered with a non-2xx status.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int

	// ServerMessage is the "message" field of the JSON error body, if any.
	ServerMessage string
	Body          []byte
}

func (e *ResponseError) Error() string {
	if e.ServerMessage != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.ServerMessage)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// NoResponseError is returned when the request was sent but no response
// arrived (connection refused, timeout, reset).
type NoResponseError struct {
	Method string
	Path   string
	Err    error
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("%s %s: no response: %v", e.Method, e.Path, e.Err)
}

func (e *NoResponseError) Unwrap() error { return e.Err }

// RequestError is returned when the request could not be built.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessager is implemented by errors that carry their own human-readable
// text, such as input validation failures and GraphQL errors.
type UserMessager interface {
	UserMessage() string
}

// Class is a coarse failure category.
type Class string

const (
	ClassNone       Class = ""
	ClassValidation Class = "validation"
	ClassAuth       Class = "auth"
	ClassNotFound   Class = "not-found"
	ClassConflict   Class = "conflict"
	ClassServer     Class = "server"
	ClassNetwork    Class = "network"
	ClassMalformed  Class = "malformed"
	ClassUnknown    Class = "unknown"
)

const (
	msgUnreachable = "Unable to reach the server. Please check your internet connection or try again later."
	msgUnexpected  = "An unexpected error occurred."
)

// Classify turns any error into the message shown to the user. It never
// returns an empty string for a non-nil error.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		if respErr.ServerMessage != "" {
			return respErr.ServerMessage
		}
		return statusMessage(respErr.StatusCode)
	}

	var noResp *NoResponseError
	if errors.As(err, &noResp) {
		return msgUnreachable
	}

	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return msgUnexpected
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid input provided."
	case http.StatusUnauthorized:
		return "Invalid username or password."
	case http.StatusForbidden:
		return "Access denied."
	case http.StatusNotFound:
		return "Resource not found."
	case http.StatusConflict:
		return "Username or email already exists."
	case http.StatusInternalServerError:
		return "Internal Server Error. Please try again later."
	default:
		return fmt.Sprintf("Request failed with status %d.", status)
	}
}

// ClassOf returns the failure category of err.
func ClassOf(err error) Class {
	if err == nil {
		return ClassNone
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return ClassAuth
		case code == http.StatusNotFound:
			return ClassNotFound
		case code == http.StatusConflict:
			return ClassConflict
		case code >= 500:
			return ClassServer
		case code >= 400:
			return ClassValidation
		default:
			return ClassUnknown
		}
	}

	var noResp *NoResponseError
	if errors.As(err, &noResp) {
		return ClassNetwork
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return ClassMalformed
	}

	if errors.Is(err, ErrMalformedResponse) {
		return ClassServer
	}

	var um UserMessager
	if errors.As(err, &um) {
		return ClassValidation
	}

	return ClassUnknown
}

// Result is the outcome of a store action: either success, or failure with
// a message ready for display.
type Result struct {
	Success bool
	Message string
}

// OK is the successful Result.
var OK = Result{Success: true}

// ResultOf converts an error into a Result.
func ResultOf(err error) Result {
	if err == nil {
		return OK
	}
	return Result{Success: false, Message: Classify(err)}
}

// ResultOr reports the server-provided message of err when there is one,
// and fallback otherwise.
func ResultOr(err error, fallback string) Result {
	if err == nil {
		return OK
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.ServerMessage != "" {
		return Result{Message: respErr.ServerMessage}
	}
	return Result{Message: fallback}
}

// serverMessage extracts the "message" field from a JSON error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Message
}
