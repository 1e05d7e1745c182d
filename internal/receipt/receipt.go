// Package receipt turns a photographed receipt into a prefilled expense draft.
package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spendtrack/internal/models"
)

// FailureMessage is shown when a receipt could not be read.
const FailureMessage = "Failed to extract details from the receipt image. Please try again or enter manually."

var ErrInvalidDataURI = errors.New("invalid data URI")

// Extraction holds the raw fields returned by a model. Values are unparsed.
type Extraction struct {
	Amount   string `json:"amount"`
	Vendor   string `json:"vendor"`
	Date     string `json:"date"`
	Category string `json:"category"`
}

// Extractor reads receipt details from an image encoded as a data URI.
type Extractor interface {
	Extract(ctx context.Context, imageDataURI string) (*Extraction, error)
}

// ExtractionError reports that no usable details came back for an image.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("receipt extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Message is the text to show the user.
func (e *ExtractionError) Message() string { return FailureMessage }

// Draft is an editable expense prefilled from a receipt.
type Draft struct {
	Amount   float64
	Reason   string
	Date     time.Time
	Category models.Category
}

// Input converts the draft into expense input for the synchronizer.
func (d Draft) Input() models.ExpenseInput {
	return models.ExpenseInput{
		Amount:   d.Amount,
		Reason:   d.Reason,
		Date:     d.Date,
		Category: d.Category,
	}
}

// NewDraft extracts details from dataURI. When extraction fails it returns an
// empty draft dated now together with an *ExtractionError, so the caller can
// fall back to manual entry.
func NewDraft(ctx context.Context, ex Extractor, dataURI string, now time.Time) (Draft, error) {
	empty := Draft{Date: now}

	if _, _, err := ParseDataURI(dataURI); err != nil {
		return empty, &ExtractionError{Err: err}
	}

	got, err := ex.Extract(ctx, dataURI)
	if err != nil {
		return empty, &ExtractionError{Err: err}
	}
	if got == nil {
		return empty, &ExtractionError{Err: errors.New("empty response")}
	}

	amount, err := ParseAmount(got.Amount)
	if err != nil {
		// Keep the other fields; the amount can be typed in.
		amount = 0
	}

	return Draft{
		Amount:   amount,
		Reason:   strings.TrimSpace(got.Vendor),
		Date:     ParseDate(got.Date, now),
		Category: models.NormalizeCategory(got.Category),
	}, nil
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// ParseAmount reads a money amount such as "$1,234.50", dropping currency
// symbols and thousands separators.
func ParseAmount(s string) (float64, error) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, fmt.Errorf("no amount in %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, _ := d.Round(2).Float64()
	return f, nil
}

var dateLayouts = []string{
	time.RFC3339,
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseDate reads a receipt date, returning fallback when s is empty or not
// recognized. Dates without a time are taken at noon UTC so they do not shift
// days across time zones.
func ParseDate(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout != time.RFC3339 {
			t = t.Add(12 * time.Hour)
		}
		return t.UTC()
	}
	return fallback
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI into its MIME type and bytes.
func ParseDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURI)
	}
	mime, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURI)
	}
	if mime == "" {
		return "", nil, fmt.Errorf("%w: missing MIME type", ErrInvalidDataURI)
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURI, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURI)
	}
	return mime, data, nil
}

// prompt is the instruction shared by all model backends.
func prompt() string {
	return "You are an expert expense tracker. Extract key details from the image: " +
		"amount, vendor, date, and category. Categorize the expense into one of the following: " +
		strings.Join(models.CategoryNames(), ", ") + ". " +
		"Return the date as YYYY-MM-DD and the amount as a plain number."
}
