package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendtrack/internal/broadcast"
	"github.com/mmynk/spendtrack/internal/identity"
	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/remote"
)

var (
	alice = &models.User{ID: "alice-id", Email: "alice@example.com", DisplayName: "Alice"}
	bob   = &models.User{ID: "bob-id", Email: "bob@example.com", DisplayName: "Bob"}
)

// fakeAuth is an identity.AuthSource driven by the test.
type fakeAuth struct {
	mu sync.Mutex
	fn func(*models.User)
}

func (f *fakeAuth) OnAuthStateChanged(fn func(*models.User)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fn = nil
	}
}

func (f *fakeAuth) emit(u *models.User) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

type subscription struct {
	owner    string
	onChange func([]models.Expense)
	onError  func(error)
	active   bool
	held     bool
}

// fakeRemote is an in-memory remote.Store. Snapshots are delivered
// synchronously on the caller's goroutine. With hold set, a subscription's
// first snapshot waits for release.
type fakeRemote struct {
	mu           sync.Mutex
	hold         bool
	expenses     map[string][]models.Expense
	settings     map[string]models.Settings
	subs         []*subscription
	nextID       int
	subscribeErr error
	writeErr     error
	settingsErr  error
}

var _ remote.Store = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		expenses: make(map[string][]models.Expense),
		settings: make(map[string]models.Settings),
	}
}

func (f *fakeRemote) Subscribe(owner string, onChange func([]models.Expense), onError func(error)) func() {
	f.mu.Lock()
	sub := &subscription{owner: owner, onChange: onChange, onError: onError, active: true}
	f.subs = append(f.subs, sub)
	err := f.subscribeErr
	list := append([]models.Expense{}, f.expenses[owner]...)
	sub.held = f.hold && err == nil
	f.mu.Unlock()

	switch {
	case err != nil:
		onError(&remote.ReadError{Op: "subscribe", Err: err})
	case !sub.held:
		onChange(list)
	}

	return func() {
		f.mu.Lock()
		sub.active = false
		f.mu.Unlock()
	}
}

func (f *fakeRemote) Add(_ context.Context, owner string, in models.ExpenseInput) (string, error) {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return "", &remote.WriteError{Op: "add", Err: f.writeErr}
	}
	f.nextID++
	id := fmt.Sprintf("doc-%d", f.nextID)
	list := append([]models.Expense{models.NewExpense(id, owner, in)}, f.expenses[owner]...)
	models.SortNewestFirst(list)
	f.expenses[owner] = list
	f.mu.Unlock()

	f.publish(owner)
	return id, nil
}

func (f *fakeRemote) Remove(_ context.Context, owner, id string) error {
	f.mu.Lock()
	if f.writeErr != nil {
		f.mu.Unlock()
		return &remote.WriteError{Op: "remove", Err: f.writeErr}
	}
	f.expenses[owner], _ = models.RemoveByID(f.expenses[owner], id)
	f.mu.Unlock()

	f.publish(owner)
	return nil
}

func (f *fakeRemote) GetSettings(_ context.Context, owner string) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return models.Settings{}, &remote.ReadError{Op: "get settings", Err: f.settingsErr}
	}
	if s, ok := f.settings[owner]; ok {
		return s, nil
	}
	return models.DefaultSettings(), nil
}

func (f *fakeRemote) MergeSettings(_ context.Context, owner string, patch models.SettingsPatch) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return models.Settings{}, &remote.WriteError{Op: "save settings", Err: f.writeErr}
	}
	current, ok := f.settings[owner]
	if !ok {
		current = models.DefaultSettings()
	}
	merged := current.Merge(patch)
	f.settings[owner] = merged
	return merged, nil
}

func (f *fakeRemote) publish(owner string) {
	f.mu.Lock()
	list := append([]models.Expense{}, f.expenses[owner]...)
	var targets []func([]models.Expense)
	for _, sub := range f.subs {
		if sub.active && !sub.held && sub.owner == owner {
			targets = append(targets, sub.onChange)
		}
	}
	f.mu.Unlock()

	for _, fn := range targets {
		fn(list)
	}
}

// release delivers the first snapshot to every held subscription.
func (f *fakeRemote) release() {
	f.mu.Lock()
	var deliveries []func()
	for _, sub := range f.subs {
		if !sub.held {
			continue
		}
		sub.held = false
		if !sub.active {
			continue
		}
		list := append([]models.Expense{}, f.expenses[sub.owner]...)
		fn := sub.onChange
		deliveries = append(deliveries, func() { fn(list) })
	}
	f.mu.Unlock()

	for _, deliver := range deliveries {
		deliver()
	}
}

// activeOwners returns the owners of the subscriptions still open.
func (f *fakeRemote) activeOwners() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var owners []string
	for _, sub := range f.subs {
		if sub.active {
			owners = append(owners, sub.owner)
		}
	}
	return owners
}

// subscriptions returns every subscription ever opened, active or not.
func (f *fakeRemote) subscriptions() []*subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*subscription{}, f.subs...)
}

// failingStorage rejects every write.
type failingStorage struct {
	local.Storage
}

func (failingStorage) SetItem(string, string) error {
	return errors.New("disk full")
}

// countingStorage counts writes.
type countingStorage struct {
	local.Storage
	mu     sync.Mutex
	writes int
}

func (c *countingStorage) SetItem(key, value string) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Storage.SetItem(key, value)
}

func (c *countingStorage) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// tab is one client session wired like the application does it.
type tab struct {
	auth     *fakeAuth
	resolver *identity.Resolver
	store    *local.Store
	remote   *fakeRemote
	expenses *Expenses
	settings *Settings
}

type tabConfig struct {
	storage local.Storage
	bus     *broadcast.Bus
	source  string
	remote  *fakeRemote
	opts    []Option
}

func newTab(t *testing.T, cfg tabConfig) *tab {
	t.Helper()
	if cfg.storage == nil {
		cfg.storage = newSQLiteStorage(t)
	}
	if cfg.remote == nil {
		cfg.remote = newFakeRemote()
	}
	if cfg.source == "" {
		cfg.source = "tab"
	}

	auth := &fakeAuth{}
	resolver := identity.NewResolver(auth, local.NewMemoryStorage())
	store := local.NewStore(cfg.storage, cfg.bus, cfg.source)

	tb := &tab{
		auth:     auth,
		resolver: resolver,
		store:    store,
		remote:   cfg.remote,
		expenses: NewExpenses(resolver, store, cfg.remote, cfg.opts...),
		settings: NewSettings(resolver, store, cfg.remote),
	}
	resolver.Start()
	tb.expenses.Start()
	tb.settings.Start()
	t.Cleanup(func() {
		tb.expenses.Close()
		tb.settings.Close()
		resolver.Close()
	})
	return tb
}

// guest resolves auth as signed out and enters guest mode.
func (tb *tab) guest(t *testing.T) {
	t.Helper()
	tb.auth.emit(nil)
	require.NoError(t, tb.resolver.EnterGuestMode())
}

func newSQLiteStorage(t *testing.T) *local.SQLiteStorage {
	t.Helper()
	storage, err := local.NewSQLiteStorage(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func input(reason string, amount float64, date time.Time) models.ExpenseInput {
	return models.ExpenseInput{
		Amount:   amount,
		Reason:   reason,
		Date:     date,
		Category: models.CategoryFood,
	}
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC)
}
