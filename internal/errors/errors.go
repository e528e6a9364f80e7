package errors

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/julianstephens/authip/internal/api"
	"github.com/julianstephens/authip/internal/logger"
)

// Format renders err with the "Error: " prefix. API failures show the
// server's message and status.
func Format(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Sprintf("Error: %s (HTTP %d)", apiErr.Message, apiErr.StatusCode)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...any) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Print writes the formatted error to w and logs it.
func Print(w io.Writer, err error) {
	if err == nil {
		return
	}
	logger.Error("Command execution failed", "error", err)
	fmt.Fprintln(w, Format(err))
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		Print(os.Stderr, err)
		os.Exit(1)
	}
}
