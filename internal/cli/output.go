package cli

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"faceswap/internal/domain"
)

// Exit codes for swapctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // job failed, timed out or was not found
	ExitCommandError = 2 // bad flags, unreadable files, transport errors
)

// ExitError carries the process exit code for a command error.
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

func (e *ExitError) Unwrap() error { return e.Err }

// GetExitCode extracts the exit code from err, ExitCommandError for plain
// errors.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// printResult writes v as JSON or calls text for the text format.
func printResult(w io.Writer, format string, v any, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// readImage loads path and returns it base64 encoded.
func readImage(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ExitError{Code: ExitCommandError, Message: "read " + path, Err: err}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// writeArtifact decodes the job result into path.
func writeArtifact(path string, art *domain.Artifact) error {
	if path == "" || art == nil {
		return nil
	}
	data, err := art.Bytes()
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "decode result", Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &ExitError{Code: ExitCommandError, Message: "write " + path, Err: err}
	}
	return nil
}
