package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a decoded record against its struct tags.
func Validate[T RawRecord](record T) error {
	if err := validate.Struct(record); err != nil {
		return ValidationErrorToString(record, err)
	}
	return nil
}

// ValidationErrorToString flattens validator field errors into a single readable error.
func ValidationErrorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.StructField(), ruleWithParam(fe)))
	}
	return fmt.Errorf("invalid %T: %s", input, strings.Join(msgs, "; "))
}

func ruleWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
