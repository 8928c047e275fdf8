package twister

import runerrors "github.com/antmicro/warp-pipe/internal/errors"

// Exit codes for suite drivers built on this package.
// These constants allow external tools to check exit codes symbolically
// rather than using magic numbers.
const (
	// ExitSuccess indicates every runnable test passed.
	ExitSuccess = runerrors.ExitSuccess

	// ExitFailure indicates at least one run failed, timed out, errored or
	// ended undetermined.
	ExitFailure = runerrors.ExitTestFailure

	// ExitConfigError indicates an invalid suite descriptor.
	ExitConfigError = runerrors.ExitConfigError

	// ExitLeakedProcess indicates a process survived termination.
	ExitLeakedProcess = runerrors.ExitLeakedError
)

// ExitCode maps a suite report onto a process exit code.
// A leaked process outranks ordinary failures.
func ExitCode(report Report) int {
	switch {
	case report.Leaked > 0:
		return ExitLeakedProcess
	case !report.OK():
		return ExitFailure
	default:
		return ExitSuccess
	}
}

// ExitCodeForError maps an error returned by LoadSuite or another setup step
// onto a process exit code.
func ExitCodeForError(err error) int {
	return runerrors.GetExitCode(err)
}
