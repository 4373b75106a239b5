package products

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var productValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

// Normalize trims user supplied text fields.
func Normalize(p Product) Product {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

// Validate checks a product before it is sent to the remote API.
func Validate(p Product) error {
	fields := map[string]string{}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		fields["price"] = "must be a number"
		p.Price = 0
	}
	if err := productValidator.Struct(p); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return err
		}
		for _, fieldErr := range validationErrs {
			if _, exists := fields[fieldErr.Field()]; exists {
				continue
			}
			fields[fieldErr.Field()] = fieldMessage(fieldErr)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
	case "gte":
		return "must not be negative"
	default:
		return "is invalid"
	}
}
