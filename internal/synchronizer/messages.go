package synchronizer

import (
	"errors"

	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/receipt"
	"github.com/mmynk/spendtrack/internal/remote"
)

// UserMessage returns a short description of err suitable for display.
// Lower-level error text is never included.
func UserMessage(err error) string {
	var (
		writeErr   *remote.WriteError
		readErr    *remote.ReadError
		extractErr *receipt.ExtractionError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotSignedIn):
		return "Sign in or continue as a guest to save expenses."
	case errors.As(err, &extractErr):
		return extractErr.Message()
	case errors.As(err, &writeErr):
		return "Could not save your changes. Check your connection and try again."
	case errors.As(err, &readErr):
		return "Could not load your data. Check your connection and try again."
	case errors.Is(err, ErrLocalWrite):
		return "Could not save to this device's storage."
	case errors.Is(err, models.ErrInvalidAmount):
		return "Amount must be greater than zero."
	case errors.Is(err, models.ErrMissingReason):
		return "Enter a reason or vendor."
	case errors.Is(err, models.ErrMissingDate):
		return "Pick a date."
	case errors.Is(err, models.ErrInvalidCategory):
		return "Choose a category from the list."
	case errors.Is(err, ErrUnknownCurrency):
		return "That currency is not supported."
	}
	return "Something went wrong. Please try again."
}
