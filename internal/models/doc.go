// Package models defines the core domain models for SpendTrack.
//
// # Models
//
//   - Expense: one user-recorded transaction (amount, reason, date, category)
//   - ExpenseInput: the caller-supplied part of an Expense, before an id and
//     owner are assigned
//   - Category: the closed set of expense categories
//   - Settings: per-identity preferences (display name, currency, theme)
//   - User: an authenticated identity
//
// # Ownership
//
// Every Expense carries an Owner. Records created in guest mode are owned by
// LocalOwner; records created while signed in are owned by the user's ID.
// Owner is set once at creation and never changes.
//
// # Ordering
//
// The canonical display order is newest-first by Date. Stores do not impose
// an order; callers use SortNewestFirst after every load and mutation.
package models
