package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Process exit statuses.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the remote store failed, or scenarios failed
	ExitCommandError = 2 // the invocation or configuration is unusable
)

// Error codes in JSON error output.
//
//	E_CONFIG       env file or configuration unusable (every command)  exit 2
//	E_REMOTE       a remote store call failed (pull, seed, validate)   exit 1
//	E_NOT_FOUND    unknown roster team (roster)                        exit 2
//	E_TEST_FAILED  one or more scenarios failed (test)                 exit 1
const (
	ErrCodeConfig     = "E_CONFIG"
	ErrCodeRemote     = "E_REMOTE"
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeTestFailed = "E_TEST_FAILED"
)

// ExitCodeFor returns the exit status a command ends with after reporting
// code.
func ExitCodeFor(code string) int {
	switch code {
	case ErrCodeConfig, ErrCodeNotFound:
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// ExitError carries the process exit status out of a cobra RunE.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit status. Errors that
// are not ExitErrors, such as cobra flag errors, exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as text for operators or as a
// JSON envelope for scripts. Diagnostics go to ErrWriter so JSON on Writer
// stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope: {"status":"ok","data":...} or
// {"status":"error","error":{...}}.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError describes a failed command. Details holds the underlying cause
// as a string, or one entry per problem for configuration errors.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. Text output uses the value's String method, so
// summaries, seed results, roster listings and config reports all render
// themselves.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failure. In text mode the details are only shown with
// --verbose, one line per entry.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "✗ %s [%s]\n", message, code)
	if !f.Verbose || details == nil {
		return nil
	}
	switch d := details.(type) {
	case []string:
		for _, line := range d {
			fmt.Fprintf(f.Writer, "  - %s\n", line)
		}
	default:
		fmt.Fprintf(f.Writer, "  cause: %v\n", d)
	}
	return nil
}

// Fail reports a failure and returns the ExitError the command should
// return. The exit status follows code; cause may be nil.
func (f *OutputFormatter) Fail(code, message string, cause error) error {
	var details any
	if cause != nil {
		details = cause.Error()
	}
	_ = f.Error(code, message, details)
	return WrapExitError(ExitCodeFor(code), message, cause)
}

// VerboseLog writes a progress line under --verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, falling back to Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
