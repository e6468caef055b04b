package cli

import "fmt"

const (
	exitValidation   = 1
	exitRuntime      = 2
	exitFileNotFound = 3
)

// ExitError carries the process exit code main should use.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
