package session

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// InputError reports a form field that failed validation before any
// request was sent.
type InputError struct {
	Field string
	Tag   string
}

func (e *InputError) Error() string {
	return "invalid " + e.Field + ": " + e.Tag
}

// UserMessage implements api.UserMessager.
func (e *InputError) UserMessage() string {
	switch {
	case e.Tag == "required" && e.Field == "Email":
		return "Email is required."
	case e.Tag == "email":
		return "Please enter a valid email address."
	case e.Tag == "required" && e.Field == "Password":
		return "Password is required."
	case e.Tag == "required" && e.Field == "Username":
		return "Username is required."
	default:
		return "Invalid input provided."
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkInput validates v and returns the first failing field as an
// *InputError.
func checkInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &InputError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
	}
	return err
}
