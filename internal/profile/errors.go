package profile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStages is returned when the stages of a profile cannot be used,
	// e.g. when their percentages do not sum to 100.
	ErrInvalidStages = errors.New("invalid stages")

	// ErrInvalidParameter is returned when a numeric profile parameter is out of range.
	ErrInvalidParameter = errors.New("invalid profile parameter")
)

// ConfigurationError reports a profile that cannot be built from its configuration.
type ConfigurationError struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s profile: field '%s': %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s profile: %s", e.Kind, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func invalidParameter(kind Kind, field, message string) error {
	return &ConfigurationError{Kind: kind, Field: field, Message: message, Err: ErrInvalidParameter}
}

func invalidStages(field, message string) error {
	return &ConfigurationError{Kind: KindStages, Field: field, Message: message, Err: ErrInvalidStages}
}
