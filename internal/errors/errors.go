// Package errors provides the structured error type used across the
// execution core and its mapping onto run verdicts and process exit codes.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Exit codes returned by suite drivers built on this package.
const (
	ExitSuccess     = 0 // Every runnable test passed
	ExitTestFailure = 1 // At least one run did not pass
	ExitConfigError = 2 // Invalid descriptor or settings
	ExitLeakedError = 3 // A process could not be terminated
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	// KindSpawn: the primary or auxiliary process could not be created.
	KindSpawn ErrorKind = iota
	// KindTimeout: the output stream did not close within the run timeout.
	KindTimeout
	// KindTermination: the process survived termination; it may be leaked.
	KindTermination
	// KindUndetermined: the stream ended without a definitive harness verdict.
	KindUndetermined
	// KindHarnessFault: harness code panicked or failed while classifying.
	KindHarnessFault
	// KindAuxiliary: the auxiliary process failed to stop cleanly.
	KindAuxiliary
	// KindCanceled: the caller canceled the run.
	KindCanceled
	KindConfig
)

var kindNames = map[ErrorKind]string{
	KindSpawn:        "spawn failure",
	KindTimeout:      "timeout exceeded",
	KindTermination:  "termination failure",
	KindUndetermined: "undetermined outcome",
	KindHarnessFault: "harness fault",
	KindAuxiliary:    "auxiliary failure",
	KindCanceled:     "canceled",
	KindConfig:       "configuration error",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// RunError is the base error type for run failures.
type RunError struct {
	Kind    ErrorKind
	Message string
	Run     string // Run label if applicable
	Cause   error  // Underlying error
}

func (e *RunError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Run != "" {
		return fmt.Sprintf("[%s] %s", e.Run, msg)
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// Is matches another *RunError with the same kind so callers can write
// errors.Is(err, &RunError{Kind: KindTimeout}).
func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Run == ""
}

// Verdict maps the error onto the verdict a run ending with it receives.
func (e *RunError) Verdict() model.Verdict {
	switch e.Kind {
	case KindTimeout:
		return model.VerdictTimeout
	case KindUndetermined:
		return model.VerdictUndetermined
	default:
		return model.VerdictError
	}
}

// ExitCode returns the appropriate exit code for this error.
func (e *RunError) ExitCode() int {
	switch e.Kind {
	case KindConfig:
		return ExitConfigError
	case KindTermination:
		return ExitLeakedError
	default:
		return ExitTestFailure
	}
}

func newError(kind ErrorKind, run, message string, cause error) *RunError {
	return &RunError{Kind: kind, Run: run, Message: message, Cause: cause}
}

// Spawn creates a spawn failure for the given run.
func Spawn(run string, cause error) *RunError {
	return newError(KindSpawn, run, "failed to start process", cause)
}

// AuxiliarySpawn creates a spawn failure for the auxiliary process.
func AuxiliarySpawn(run string, cause error) *RunError {
	return newError(KindSpawn, run, "failed to start auxiliary process", cause)
}

// Timeout creates a timeout error.
func Timeout(run string, format string, args ...interface{}) *RunError {
	return newError(KindTimeout, run, fmt.Sprintf(format, args...), nil)
}

// Termination creates a termination failure for the process with the given pid.
func Termination(run string, pid int, cause error) *RunError {
	return newError(KindTermination, run, fmt.Sprintf("process %d did not exit after termination, possible leaked process", pid), cause)
}

// Undetermined creates an undetermined-outcome error.
func Undetermined(run string) *RunError {
	return newError(KindUndetermined, run, "output ended without a harness verdict", nil)
}

// HarnessFault wraps a panic or failure raised by harness code.
func HarnessFault(run string, cause error) *RunError {
	return newError(KindHarnessFault, run, "harness fault", cause)
}

// Auxiliary wraps an auxiliary teardown failure.
func Auxiliary(run string, cause error) *RunError {
	return newError(KindAuxiliary, run, "failed to stop auxiliary process", cause)
}

// Canceled creates a cancellation error.
func Canceled(run string, cause error) *RunError {
	return newError(KindCanceled, run, "run canceled", cause)
}

// Config creates a new configuration error.
func Config(message string) *RunError {
	return &RunError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *RunError {
	return Config(fmt.Sprintf(format, args...))
}

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, message string) *RunError {
	return &RunError{
		Kind:    KindConfig,
		Message: message,
		Cause:   err,
	}
}

// KindOf returns the kind of the first RunError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var re *RunError
	if stderrors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// VerdictFor returns the verdict for a run that ended with err.
// A nil error carries no verdict and returns VerdictUndetermined with ok=false.
func VerdictFor(err error) (model.Verdict, bool) {
	if err == nil {
		return model.VerdictUndetermined, false
	}
	var re *RunError
	if stderrors.As(err, &re) {
		return re.Verdict(), true
	}
	return model.VerdictError, true
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var re *RunError
	if stderrors.As(err, &re) {
		return re.ExitCode()
	}
	return ExitTestFailure
}
