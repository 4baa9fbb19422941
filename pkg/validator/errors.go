package validator

import "strings"

// ValidationErrors lists every failed rule of one request.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError is one failed rule. Field uses the json tag name.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   any    `json:"value,omitempty"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// First returns the first message, or "".
func (v *ValidationErrors) First() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Message
}

// ToMap is the response payload: the errors and their count.
func (v *ValidationErrors) ToMap() map[string]any {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return map[string]any{
		"errors": v.Errors,
		"count":  len(v.Errors),
	}
}
