package tools

import "fmt"

// DuplicateToolError is returned when a name is registered twice
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool '%s' is already registered", e.Name)
}

// InvalidDescriptorError is returned when a tool's metadata is incomplete
type InvalidDescriptorError struct {
	Name   string
	Reason string
}

func (e *InvalidDescriptorError) Error() string {
	if e.Name == "" {
		return "invalid tool descriptor: " + e.Reason
	}
	return fmt.Sprintf("invalid tool descriptor %s: %s", e.Name, e.Reason)
}

// ValidationError is returned when parameters do not satisfy a tool schema
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Kind names the error in response envelopes
func (e *ValidationError) Kind() string {
	return "ValidationError"
}

// Details returns structured context for the error envelope
func (e *ValidationError) Details() map[string]any {
	if e.Field == "" {
		return map[string]any{}
	}
	return map[string]any{"field": e.Field}
}
