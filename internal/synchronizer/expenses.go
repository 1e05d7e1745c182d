package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/spendtrack/internal/identity"
	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/remote"
)

// Snapshot is the observable state of an Expenses synchronizer.
type Snapshot struct {
	Mode        identity.Mode
	Expenses    []models.Expense
	Initialized bool
}

// Expenses is the expense list of one client session.
type Expenses struct {
	states States
	local  *local.Store
	remote remote.Store
	opts   options

	// writeMu serializes local read-modify-write cycles within the session.
	writeMu sync.Mutex

	mu          sync.Mutex
	state       identity.State
	hasState    bool
	list        []models.Expense
	initialized bool
	failed      bool
	gen         generation
	closed      bool
	unsubscribe func()

	changes *notifier[Snapshot]
	errors  listeners[error]
}

// NewExpenses creates an expense synchronizer. rs may be nil when no remote
// store is configured; authenticated sessions then fail every read.
func NewExpenses(states States, store *local.Store, rs remote.Store, opts ...Option) *Expenses {
	e := &Expenses{
		states: states,
		local:  store,
		remote: rs,
		opts:   buildOptions(opts),
		list:   []models.Expense{},
	}
	e.changes = newNotifier(e.Snapshot)
	return e
}

// Start begins following identity states. It must be called once.
func (e *Expenses) Start() {
	e.changes.start()
	unsubscribe := e.states.Subscribe(e.transition)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		unsubscribe()
		return
	}
	e.unsubscribe = unsubscribe
	e.mu.Unlock()
}

// Close detaches from storage and the resolver. Listeners receive nothing
// after Close returns, except a delivery already in flight.
func (e *Expenses) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	_, stop := e.gen.next()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
	}
	e.changes.close()
}

// List returns a copy of the current expenses, newest first.
func (e *Expenses) List() []models.Expense {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.list)
}

// IsInitialized reports whether the list reflects the active storage.
func (e *Expenses) IsInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Snapshot returns the current state.
func (e *Expenses) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Mode:        e.state.Mode,
		Expenses:    slices.Clone(e.list),
		Initialized: e.initialized,
	}
}

// OnChange calls fn with the latest snapshot after changes. Calls happen on
// a dedicated goroutine and bursts are coalesced.
func (e *Expenses) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	return e.changes.listeners.add(fn)
}

// OnError calls fn with a *remote.ReadError when a remote subscription fails.
func (e *Expenses) OnError(fn func(error)) (unsubscribe func()) {
	return e.errors.add(fn)
}

// Add validates in and records a new expense in the active storage. In guest
// mode it returns the generated id. When authenticated the list is not
// updated optimistically; the change arrives through the subscription.
func (e *Expenses) Add(ctx context.Context, in models.ExpenseInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state.Mode {
	case identity.ModeGuest:
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}
		expense := models.NewExpense(id.String(), models.LocalOwner, in)
		err = e.writeLocal(func(list []models.Expense) ([]models.Expense, bool) {
			next := append([]models.Expense{expense}, list...)
			models.SortNewestFirst(next)
			return next, true
		})
		if err != nil {
			return "", err
		}
		slog.Debug("Expense added", "mode", state.Mode.String(), "expense_id", expense.ID)
		return expense.ID, nil

	case identity.ModeAuthenticated:
		if e.remote == nil {
			return "", &remote.WriteError{Op: "add", Err: errors.New("no remote store configured")}
		}
		id, err := e.remote.Add(ctx, state.IdentityID(), in)
		if err != nil {
			return "", asWriteError("add", err)
		}
		slog.Debug("Expense added", "mode", state.Mode.String(), "expense_id", id)
		return id, nil
	}

	return "", ErrNotSignedIn
}

// Remove deletes the expense with id from the active storage. Unknown ids
// are not an error.
func (e *Expenses) Remove(ctx context.Context, id string) error {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	switch state.Mode {
	case identity.ModeGuest:
		return e.writeLocal(func(list []models.Expense) ([]models.Expense, bool) {
			return models.RemoveByID(list, id)
		})

	case identity.ModeAuthenticated:
		if e.remote == nil {
			return &remote.WriteError{Op: "remove", Err: errors.New("no remote store configured")}
		}
		if err := e.remote.Remove(ctx, state.IdentityID(), id); err != nil {
			return asWriteError("remove", err)
		}
		return nil
	}

	return ErrNotSignedIn
}

// writeLocal applies update to the in-memory guest list and persists the
// result. If the write fails the in-memory list is left unchanged.
func (e *Expenses) writeLocal(update func([]models.Expense) ([]models.Expense, bool)) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.Lock()
	if e.state.Mode != identity.ModeGuest {
		e.mu.Unlock()
		return ErrNotSignedIn
	}
	gen := e.gen.n
	next, changed := update(slices.Clone(e.list))
	e.mu.Unlock()

	if !changed {
		return nil
	}
	if err := e.local.SaveExpenses(next); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalWrite, err)
	}

	e.mu.Lock()
	if e.gen.n != gen {
		e.mu.Unlock()
		return nil
	}
	e.list = next
	e.mu.Unlock()

	e.changes.notify()
	return nil
}

func (e *Expenses) transition(st identity.State) {
	e.mu.Lock()
	if e.closed || (e.hasState && e.state.Same(st)) {
		e.mu.Unlock()
		return
	}
	e.hasState = true
	e.state = st
	gen, stop := e.gen.next()
	e.list = []models.Expense{}
	e.initialized = false
	e.failed = false
	if st.Mode == identity.ModeGuest {
		e.list = e.loadLocal()
		e.initialized = true
	}
	e.mu.Unlock()

	if stop != nil {
		stop()
	}

	slog.Debug("Expense storage switched", "mode", st.Mode.String(), "identity_id", st.IdentityID())

	switch st.Mode {
	case identity.ModeGuest:
		e.enterLocal(gen)
	case identity.ModeAuthenticated:
		e.enterRemote(gen, st.IdentityID())
	}

	e.changes.notify()
}

func (e *Expenses) enterLocal(gen uint64) {
	stops := []func(){e.local.Watch(local.ExpensesKey, func() { e.reload(gen) })}
	if e.opts.pollInterval > 0 {
		stops = append(stops, poll(e.opts.pollInterval, func() { e.reload(gen) }))
	}
	e.install(gen, runStops(stops))

	// Catch writes that landed between the initial load and the watch.
	e.reload(gen)
}

func (e *Expenses) enterRemote(gen uint64, owner string) {
	if e.remote == nil {
		e.onRemoteError(gen, errors.New("no remote store configured"))
		return
	}
	unsubscribe := e.remote.Subscribe(owner,
		func(list []models.Expense) { e.onRemoteChange(gen, list) },
		func(err error) { e.onRemoteError(gen, err) },
	)
	e.install(gen, unsubscribe)
}

func (e *Expenses) install(gen uint64, stop func()) {
	e.mu.Lock()
	ok := !e.closed && e.gen.install(gen, stop)
	e.mu.Unlock()
	if !ok {
		stop()
	}
}

// reload re-reads the guest list and notifies if it changed.
func (e *Expenses) reload(gen uint64) {
	e.mu.Lock()
	if e.gen.n != gen {
		e.mu.Unlock()
		return
	}
	list := e.loadLocal()
	if equalExpenses(list, e.list) {
		e.mu.Unlock()
		return
	}
	e.list = list
	e.mu.Unlock()

	slog.Debug("Expenses reloaded from local storage", "count", len(list))
	e.changes.notify()
}

func (e *Expenses) loadLocal() []models.Expense {
	list := e.local.LoadExpenses()
	models.SortNewestFirst(list)
	return list
}

func (e *Expenses) onRemoteChange(gen uint64, list []models.Expense) {
	e.mu.Lock()
	if e.gen.n != gen {
		e.mu.Unlock()
		return
	}
	if list == nil {
		list = []models.Expense{}
	}
	e.list = slices.Clone(list)
	e.initialized = true
	e.mu.Unlock()

	e.changes.notify()
}

func (e *Expenses) onRemoteError(gen uint64, err error) {
	e.mu.Lock()
	if e.gen.n != gen || e.failed {
		e.mu.Unlock()
		return
	}
	e.failed = true
	e.initialized = true
	e.mu.Unlock()

	var readErr *remote.ReadError
	if !errors.As(err, &readErr) {
		readErr = &remote.ReadError{Op: "subscribe", Err: err}
	}
	slog.Warn("Expense subscription failed", "error", readErr)

	e.errors.emit(readErr)
	e.changes.notify()
}

func asWriteError(op string, err error) error {
	var writeErr *remote.WriteError
	if errors.As(err, &writeErr) {
		return err
	}
	return &remote.WriteError{Op: op, Err: err}
}

func equalExpenses(a, b []models.Expense) bool {
	return slices.EqualFunc(a, b, func(x, y models.Expense) bool {
		return x.ID == y.ID &&
			x.Amount == y.Amount &&
			x.Reason == y.Reason &&
			x.Date.Equal(y.Date) &&
			x.Category == y.Category &&
			x.Owner == y.Owner
	})
}
