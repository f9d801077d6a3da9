package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
	// bcrypt ignora o rechaza lo que pase de 72 bytes.
	maxPasswordBytes = 72
)

// RegisterInput son los datos crudos de registro.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

func (in RegisterInput) Validate() error {
	return toValidationError(validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(2, 50)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Password, passwordRules()...),
		validation.Field(&in.ConfirmPassword, validation.Required, validation.By(matches(in.Password))),
	))
}

func validateNewPassword(field, password string) error {
	return toValidationError(validation.Errors{
		field: validation.Validate(password, passwordRules()...),
	}.Filter())
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(minPasswordLength, maxPasswordLength),
		validation.By(passwordBytes),
		validation.By(passwordStrength),
	}
}

func passwordBytes(value interface{}) error {
	s, _ := value.(string)
	if len(s) > maxPasswordBytes {
		return fmt.Errorf("must be at most %d bytes long", maxPasswordBytes)
	}
	return nil
}

func passwordStrength(value interface{}) error {
	s, _ := value.(string)
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return errors.New("must contain an uppercase letter, a lowercase letter and a number")
	}
	return nil
}

func matches(other string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New("passwords do not match")
		}
		return nil
	}
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return &ValidationError{Fields: map[string]string{"input": err.Error()}}
	}
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		fields[snakeCase(k)] = v.Error()
	}
	return &ValidationError{Fields: fields}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
