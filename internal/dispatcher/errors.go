package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/local/sheetpress/internal/export"
)

// InputError marks a job whose worksheet can never export successfully.
// These go straight to the DLQ; retrying deterministic input is pointless.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("bad worksheet: %s", e.Reason)
}

// isInputError reports whether the failure is caused by the worksheet
// itself rather than by infrastructure.
func isInputError(err error) bool {
	if err == nil {
		return false
	}

	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return true
	}

	if errors.Is(err, export.ErrNoContent) {
		return true
	}

	// Malformed JSON in the payload
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unknown block type") ||
		strings.Contains(errStr, "malformed")
}

// isTimeoutError checks if the error is specifically a timeout.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
