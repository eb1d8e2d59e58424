package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func requireText(field, value string, max int) error {
	if value == "" {
		return ValidationError{Field: field, Message: "is required"}
	}
	if len(value) > max {
		return ValidationError{Field: field, Message: fmt.Sprintf("must not exceed %d characters", max)}
	}
	return nil
}
