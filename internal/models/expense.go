package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LocalOwner marks expenses created in guest mode.
const LocalOwner = "local"

var (
	// ErrInvalidAmount is returned for amounts that are not positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrMissingReason is returned when the reason is empty or blank.
	ErrMissingReason = errors.New("reason is required")

	// ErrInvalidCategory is returned for categories outside the fixed set.
	ErrInvalidCategory = errors.New("unknown category")

	// ErrMissingDate is returned when no date is set.
	ErrMissingDate = errors.New("date is required")
)

// Expense is one recorded transaction.
type Expense struct {
	// ID is unique within the owner's record set and never reused.
	// Generated locally in guest mode, assigned by the document store otherwise.
	ID string `json:"id"`

	// Amount is the spent value in the owner's currency.
	Amount float64 `json:"amount"`

	// Reason is the vendor or a short description.
	Reason string `json:"reason"`

	// Date is when the expense occurred, which may be earlier than when it
	// was recorded. Serialized as an ISO-8601 string.
	Date time.Time `json:"date"`

	// Category is one of the known categories.
	Category Category `json:"category"`

	// Owner is LocalOwner or the authenticated user's ID.
	Owner string `json:"owner"`
}

// ExpenseInput is the data a caller supplies to create an Expense.
type ExpenseInput struct {
	Amount   float64
	Reason   string
	Date     time.Time
	Category Category
}

// Validate checks the entry invariants of an expense.
func (in ExpenseInput) Validate() error {
	if !(in.Amount > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, in.Amount)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return ErrMissingReason
	}
	if in.Date.IsZero() {
		return ErrMissingDate
	}
	if !in.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	return nil
}

// NewExpense builds an Expense from input with the given id and owner.
func NewExpense(id, owner string, in ExpenseInput) Expense {
	return Expense{
		ID:       id,
		Amount:   in.Amount,
		Reason:   strings.TrimSpace(in.Reason),
		Date:     in.Date.UTC(),
		Category: in.Category,
		Owner:    owner,
	}
}

// Input returns the caller-supplied part of e.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Amount:   e.Amount,
		Reason:   e.Reason,
		Date:     e.Date,
		Category: e.Category,
	}
}

// SortNewestFirst orders expenses by Date, newest first.
// Expenses with equal dates keep their relative order.
func SortNewestFirst(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Date.After(expenses[j].Date)
	})
}

// RemoveByID returns expenses without the record with the given id, and
// whether such a record was present. The input slice is not modified.
func RemoveByID(expenses []Expense, id string) ([]Expense, bool) {
	out := make([]Expense, 0, len(expenses))
	found := false
	for _, e := range expenses {
		if e.ID == id {
			found = true
			continue
		}
		out = append(out, e)
	}
	return out, found
}
