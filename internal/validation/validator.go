// Vallum - Tenant Isolation and Access Mediation Layer
// Copyright 2026 The Vallum Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vallum-project/vallum

package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/vallum-project/vallum/internal/tenancy"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Identifier shapes shared with the registry and catalog. Schema and entity
// names must survive being wrapped in a quoted SQL identifier; org ids are
// opaque but bounded.
var (
	schemaNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)
	entityNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)
	orgIDRe      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)
)

// ValidationError is a single field failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field that failed.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Error returns the human-readable message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects all field failures of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field failures.
func (ve *RequestValidationError) Errors() []ValidationError { return ve.errors }

// Error implements error.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i, err := range ve.errors {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// Fields returns a field -> message map for API error details.
func (ve *RequestValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(ve.errors))
	for _, err := range ve.errors {
		fields[err.field] = err.message
	}
	return fields
}

// GetValidator returns the singleton validator with Vallum's custom tags
// registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		mustRegister("org_id", func(fl validator.FieldLevel) bool {
			return orgIDRe.MatchString(fl.Field().String())
		})
		mustRegister("schema_name", func(fl validator.FieldLevel) bool {
			return schemaNameRe.MatchString(fl.Field().String())
		})
		mustRegister("entity_name", func(fl validator.FieldLevel) bool {
			return entityNameRe.MatchString(fl.Field().String())
		})
		mustRegister("tenant_role", func(fl validator.FieldLevel) bool {
			return tenancy.Role(fl.Field().String()).Valid()
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// ValidateStruct validates a struct, returning nil on success.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{errors: []ValidationError{
			{field: "unknown", tag: "unknown", message: err.Error()},
		}}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fe := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translateError(fe),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required":    "%s is required",
	"org_id":      "%s is not a valid organization id",
	"schema_name": "%s is not a valid schema name",
	"entity_name": "%s is not a valid entity name",
	"tenant_role": "%s is not a recognized role",
	"datetime":    "%s must be a valid RFC3339 timestamp",
	"uuid":        "%s must be a valid UUID",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field())
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
