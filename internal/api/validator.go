package api

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"courier/internal/types"
)

// Validator wraps go-playground/validator. It adds a "priority" tag that
// accepts the priority names (low, normal, high, critical).
type Validator struct {
	v      *validator.Validate
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, err := types.ParsePriority(fl.Field().String())
		return err == nil
	})

	return &Validator{v: v, logger: logger}
}

// FieldError is one failed rule in a validation error's details.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidateStruct returns nil or an AppError listing every failed rule. The
// code is validation_missing_required_field when the first failure is a
// required rule and validation_invalid_field otherwise.
func (v *Validator) ValidateStruct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe), Rule: fe.Tag(), Param: fe.Param()})
	}

	first := fields[0]
	code := types.ErrCodeValidationInvalidField
	msg := fmt.Sprintf("field %q failed rule %q", first.Field, first.Rule)
	if strings.HasPrefix(first.Rule, "required") {
		code = types.ErrCodeValidationMissingField
		msg = fmt.Sprintf("field %q is required", first.Field)
	}
	return types.NewAppErrorWithDetails(code, msg, err, map[string]any{"fields": fields})
}

// fieldPath drops the root struct name: "Req.sender.address" -> "sender.address".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
