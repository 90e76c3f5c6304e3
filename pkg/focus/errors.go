package focus

import "fmt"

// NoFocusError is returned when a relative path is resolved without a focus
type NoFocusError struct {
	Path string
}

func (e *NoFocusError) Error() string {
	return fmt.Sprintf("cannot resolve relative path '%s' without a project focus. Use project_focus to set the current project first.", e.Path)
}

// Kind names the error in response envelopes
func (e *NoFocusError) Kind() string {
	return "NoFocus"
}

// InvalidFocusError is returned when a focus candidate is unusable
type InvalidFocusError struct {
	Path   string
	Reason string
}

func (e *InvalidFocusError) Error() string {
	return fmt.Sprintf("project path %s: %s", e.Reason, e.Path)
}

// Kind names the error in response envelopes
func (e *InvalidFocusError) Kind() string {
	return "InvalidFocus"
}
