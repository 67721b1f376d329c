package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type userErr string

func (e userErr) Error() string       { return "internal: " + string(e) }
func (e userErr) UserMessage() string { return string(e) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"server message wins", &ResponseError{StatusCode: 401, ServerMessage: "Bad credentials"}, "Bad credentials"},
		{"400", &ResponseError{StatusCode: http.StatusBadRequest}, "Invalid input provided."},
		{"401", &ResponseError{StatusCode: http.StatusUnauthorized}, "Invalid username or password."},
		{"403", &ResponseError{StatusCode: http.StatusForbidden}, "Access denied."},
		{"404", &ResponseError{StatusCode: http.StatusNotFound}, "Resource not found."},
		{"409", &ResponseError{StatusCode: http.StatusConflict}, "Username or email already exists."},
		{"500", &ResponseError{StatusCode: http.StatusInternalServerError}, "Internal Server Error. Please try again later."},
		{"other status", &ResponseError{StatusCode: 418}, "Request failed with status 418."},
		{"wrapped response", fmt.Errorf("login: %w", &ResponseError{StatusCode: 401}), "Invalid username or password."},
		{"no response", &NoResponseError{Err: errors.New("refused")}, msgUnreachable},
		{"user message", fmt.Errorf("validating: %w", userErr("Email is required.")), "Email is required."},
		{"plain error", errors.New("boom"), "boom"},
		{"empty error", errors.New(""), msgUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassNone, ClassOf(nil))
	assert.Equal(t, ClassValidation, ClassOf(&ResponseError{StatusCode: 400}))
	assert.Equal(t, ClassAuth, ClassOf(&ResponseError{StatusCode: 401}))
	assert.Equal(t, ClassAuth, ClassOf(&ResponseError{StatusCode: 403}))
	assert.Equal(t, ClassNotFound, ClassOf(&ResponseError{StatusCode: 404}))
	assert.Equal(t, ClassConflict, ClassOf(&ResponseError{StatusCode: 409}))
	assert.Equal(t, ClassServer, ClassOf(&ResponseError{StatusCode: 503}))
	assert.Equal(t, ClassNetwork, ClassOf(&NoResponseError{}))
	assert.Equal(t, ClassMalformed, ClassOf(&RequestError{Err: errors.New("x")}))
	assert.Equal(t, ClassValidation, ClassOf(userErr("x")))
	assert.Equal(t, ClassUnknown, ClassOf(errors.New("x")))
}

func TestResult(t *testing.T) {
	assert.Equal(t, OK, ResultOf(nil))
	assert.Equal(t, Result{Message: "Invalid username or password."}, ResultOf(&ResponseError{StatusCode: 401}))

	assert.Equal(t, Result{Message: "Failed to send request"},
		ResultOr(&ResponseError{StatusCode: 500}, "Failed to send request"))
	assert.Equal(t, Result{Message: "Already friends"},
		ResultOr(&ResponseError{StatusCode: 400, ServerMessage: "Already friends"}, "Failed to send request"))
	assert.Equal(t, Result{Message: "Failed to send request"},
		ResultOr(&NoResponseError{Err: errors.New("x")}, "Failed to send request"))
}
