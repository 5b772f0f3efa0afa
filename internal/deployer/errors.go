package deployer

import (
	"errors"

	"cubedeploy/internal/orchestrator"
	"cubedeploy/internal/validate"
)

// notFoundError is returned when a model or run id is unknown.
type notFoundError struct{ what string }

func (e notFoundError) Error() string { return e.what + " not found" }

// ErrModelNotFound returns the error for an unknown model name.
func ErrModelNotFound(name string) error { return notFoundError{what: "model " + name} }

// IsNotFound reports whether err indicates a missing model or run (404).
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

// validationError wraps a rejected name or model text (400, or a 200
// {success:false} on the validate endpoint).
type validationError struct{ err error }

func (e validationError) Error() string { return e.err.Error() }
func (e validationError) Unwrap() error { return e.err }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve validationError
	return errors.As(err, &ve)
}

// ValidationCode returns the validate.Code carried by err, if any.
func ValidationCode(err error) (validate.Code, bool) {
	var ve *validate.Error
	if errors.As(err, &ve) {
		return ve.Code, true
	}
	return "", false
}

// ExternalError reports a pipeline step whose external command failed.
// Output is the tool's output, surfaced verbatim.
type ExternalError struct {
	Step   string
	Output string
	Err    error
}

func (e *ExternalError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	return e.Step + ": " + e.Err.Error()
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsExternal reports whether err is an external command failure (500).
func IsExternal(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee)
}

// dependencyUnavailableError signals a missing external dependency (kubectl
// binary, cluster configuration, journal) so the HTTP layer can return 503.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing dependency,
// including the orchestrator's own unavailable errors.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de) || orchestrator.IsUnavailable(err)
}
