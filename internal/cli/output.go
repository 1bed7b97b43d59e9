package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mmynk/mealsync/internal/remote"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Remote or validation failure
	ExitCommandError = 2 // Bad usage: missing credentials, unreadable files
	ExitAuthError    = 3 // Not logged in or bad credentials
)

// ExitError carries the exit code for a failed command.
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

// GetExitCode extracts the exit code from an error. Auth failures map to
// ExitAuthError; other errors default to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, remote.ErrAuth) {
		return ExitAuthError
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of every command result.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success writes data. In text mode, text renders it; a nil text prints
// nothing.
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return f.json(Response{Status: "ok", Data: data})
	}
	if text != nil {
		text(f.Writer)
	}
	return nil
}

// Failure writes err in JSON mode; text mode leaves printing to main.
func (f *OutputFormatter) Failure(err error) {
	if f.Format == "json" {
		_ = f.json(Response{Status: "error", Error: remote.Message(err)})
	}
}

func (f *OutputFormatter) json(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
