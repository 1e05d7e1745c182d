package synchronizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendtrack/internal/broadcast"
	"github.com/mmynk/spendtrack/internal/identity"
	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/remote"
)

const eventually = 2 * time.Second

func TestExpensesGuest(t *testing.T) {
	ctx := context.Background()

	t.Run("not initialized until resolved", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		assert.False(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		tb.auth.emit(nil)
		assert.False(t, tb.expenses.IsInitialized(), "signed out has no storage")
	})

	t.Run("add then list", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		tb.guest(t)
		require.True(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		id, err := tb.expenses.Add(ctx, input("Lunch", 10, day(5)))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		list := tb.expenses.List()
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)
		assert.Equal(t, models.LocalOwner, list[0].Owner)
		assert.Equal(t, "Lunch", list[0].Reason)

		assert.Equal(t, list, tb.store.LoadExpenses(), "list must be persisted")
	})

	t.Run("list is newest first", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		tb.guest(t)

		for _, d := range []int{3, 9, 1, 7} {
			_, err := tb.expenses.Add(ctx, input("x", float64(d), day(d)))
			require.NoError(t, err)
		}

		var days []int
		for _, e := range tb.expenses.List() {
			days = append(days, e.Date.Day())
		}
		assert.Equal(t, []int{9, 7, 3, 1}, days)
	})

	t.Run("loads existing records sorted", func(t *testing.T) {
		storage := newSQLiteStorage(t)
		seed := local.NewStore(storage, nil, "seed")
		require.NoError(t, seed.SaveExpenses([]models.Expense{
			models.NewExpense("old", models.LocalOwner, input("old", 1, day(1))),
			models.NewExpense("new", models.LocalOwner, input("new", 2, day(20))),
		}))

		tb := newTab(t, tabConfig{storage: storage})
		tb.guest(t)

		list := tb.expenses.List()
		require.Len(t, list, 2)
		assert.Equal(t, "new", list[0].ID)
		assert.Equal(t, "old", list[1].ID)
	})

	t.Run("add then remove restores list", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		tb.guest(t)
		_, err := tb.expenses.Add(ctx, input("Keep", 5, day(2)))
		require.NoError(t, err)
		before := tb.expenses.List()

		id, err := tb.expenses.Add(ctx, input("Drop", 7, day(3)))
		require.NoError(t, err)
		require.NoError(t, tb.expenses.Remove(ctx, id))

		assert.Equal(t, before, tb.expenses.List())
		assert.Equal(t, before, tb.store.LoadExpenses())
	})

	t.Run("remove unknown id is a no-op", func(t *testing.T) {
		storage := &countingStorage{Storage: local.NewMemoryStorage()}
		tb := newTab(t, tabConfig{storage: storage})
		tb.guest(t)
		_, err := tb.expenses.Add(ctx, input("Keep", 5, day(2)))
		require.NoError(t, err)
		before := tb.expenses.List()
		writes := storage.count()

		require.NoError(t, tb.expenses.Remove(ctx, "does-not-exist"))
		assert.Equal(t, before, tb.expenses.List())
		assert.Equal(t, writes, storage.count(), "nothing should be written")
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		tb.guest(t)

		_, err := tb.expenses.Add(ctx, input("Free", 0, day(1)))
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
		_, err = tb.expenses.Add(ctx, input("  ", 3, day(1)))
		assert.ErrorIs(t, err, models.ErrMissingReason)
		assert.Empty(t, tb.expenses.List())
	})

	t.Run("persist failure leaves state unchanged", func(t *testing.T) {
		tb := newTab(t, tabConfig{storage: failingStorage{Storage: local.NewMemoryStorage()}})
		tb.guest(t)

		_, err := tb.expenses.Add(ctx, input("Lunch", 10, day(5)))
		assert.ErrorIs(t, err, ErrLocalWrite)
		assert.Empty(t, tb.expenses.List())
		assert.Equal(t, "Could not save to this device's storage.", UserMessage(err))
	})

	t.Run("malformed storage loads empty", func(t *testing.T) {
		storage := local.NewMemoryStorage()
		require.NoError(t, storage.SetItem(local.ExpensesKey, "{broken"))

		tb := newTab(t, tabConfig{storage: storage})
		tb.guest(t)
		assert.True(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		_, err := tb.expenses.Add(ctx, input("Lunch", 10, day(5)))
		require.NoError(t, err)
		assert.Len(t, tb.store.LoadExpenses(), 1)
	})
}

func TestExpensesNotSignedIn(t *testing.T) {
	ctx := context.Background()
	tb := newTab(t, tabConfig{})
	tb.auth.emit(nil)

	_, err := tb.expenses.Add(ctx, input("Lunch", 10, day(5)))
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.ErrorIs(t, tb.expenses.Remove(ctx, "x"), ErrNotSignedIn)
	assert.Equal(t, "Sign in or continue as a guest to save expenses.", UserMessage(err))
}

func TestExpensesAuthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("add and remove through the subscription", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		tb.auth.emit(alice)
		require.True(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		id, err := tb.expenses.Add(ctx, input("Dinner", 42, day(4)))
		require.NoError(t, err)

		list := tb.expenses.List()
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].ID)
		assert.Equal(t, alice.ID, list[0].Owner)

		require.NoError(t, tb.expenses.Remove(ctx, id))
		assert.Empty(t, tb.expenses.List())
	})

	t.Run("write failure is a write error and not applied", func(t *testing.T) {
		rs := newFakeRemote()
		tb := newTab(t, tabConfig{remote: rs})
		tb.auth.emit(alice)
		rs.writeErr = errors.New("offline")

		_, err := tb.expenses.Add(ctx, input("Dinner", 42, day(4)))
		var writeErr *remote.WriteError
		require.ErrorAs(t, err, &writeErr)
		assert.Equal(t, "add", writeErr.Op)
		assert.Empty(t, tb.expenses.List())

		err = tb.expenses.Remove(ctx, "doc-1")
		require.ErrorAs(t, err, &writeErr)
		assert.Equal(t, "Could not save your changes. Check your connection and try again.", UserMessage(err))
	})

	t.Run("read failure marks initialized and reports once", func(t *testing.T) {
		rs := newFakeRemote()
		rs.subscribeErr = errors.New("permission denied")
		tb := newTab(t, tabConfig{remote: rs})

		var (
			mu   sync.Mutex
			errs []error
		)
		tb.expenses.OnError(func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		})

		tb.auth.emit(alice)
		assert.True(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, errs, 1)
		var readErr *remote.ReadError
		assert.ErrorAs(t, errs[0], &readErr)
	})

	t.Run("switching identity resubscribes", func(t *testing.T) {
		rs := newFakeRemote()
		_, err := rs.Add(ctx, alice.ID, input("Alice lunch", 10, day(1)))
		require.NoError(t, err)
		_, err = rs.Add(ctx, bob.ID, input("Bob lunch", 20, day(2)))
		require.NoError(t, err)

		tb := newTab(t, tabConfig{remote: rs})
		tb.auth.emit(alice)
		require.Len(t, tb.expenses.List(), 1)
		assert.Equal(t, "Alice lunch", tb.expenses.List()[0].Reason)

		tb.auth.emit(bob)
		require.Len(t, tb.expenses.List(), 1)
		assert.Equal(t, "Bob lunch", tb.expenses.List()[0].Reason)

		subs := rs.subscriptions()
		require.Len(t, subs, 2)
		assert.False(t, subs[0].active, "previous subscription must be torn down")
		assert.True(t, subs[1].active)
	})

	t.Run("stale callbacks are discarded", func(t *testing.T) {
		rs := newFakeRemote()
		tb := newTab(t, tabConfig{remote: rs})
		tb.auth.emit(alice)
		tb.auth.emit(bob)

		stale := rs.subscriptions()[0]
		require.Equal(t, alice.ID, stale.owner)
		stale.onChange([]models.Expense{models.NewExpense("late", alice.ID, input("Late", 1, day(1)))})
		stale.onError(errors.New("late failure"))

		assert.Empty(t, tb.expenses.List())
		assert.True(t, tb.expenses.IsInitialized())
	})
}

func TestExpensesTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("sign in from guest starts from the remote list", func(t *testing.T) {
		tb := newTab(t, tabConfig{})
		tb.guest(t)
		_, err := tb.expenses.Add(ctx, input("Guest coffee", 3, day(3)))
		require.NoError(t, err)
		require.Len(t, tb.expenses.List(), 1)

		tb.auth.emit(alice)
		assert.Equal(t, identity.ModeAuthenticated, tb.resolver.State().Mode)
		assert.True(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List(), "guest records must not leak into the account")
		assert.Len(t, tb.store.LoadExpenses(), 1, "guest records stay on the device")
	})

	t.Run("not initialized until the first remote snapshot", func(t *testing.T) {
		rs := newFakeRemote()
		rs.expenses[alice.ID] = []models.Expense{
			models.NewExpense("doc-a", alice.ID, input("Rent", 900, day(1))),
		}
		rs.hold = true
		tb := newTab(t, tabConfig{remote: rs})

		tb.auth.emit(alice)
		assert.Equal(t, identity.ModeAuthenticated, tb.resolver.State().Mode)
		assert.False(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		rs.release()
		assert.True(t, tb.expenses.IsInitialized())
		require.Len(t, tb.expenses.List(), 1)
		assert.Equal(t, "doc-a", tb.expenses.List()[0].ID)
	})

	t.Run("sign in from guest waits for the account list", func(t *testing.T) {
		rs := newFakeRemote()
		rs.expenses[alice.ID] = []models.Expense{
			models.NewExpense("doc-a", alice.ID, input("Rent", 900, day(1))),
		}
		tb := newTab(t, tabConfig{remote: rs})
		tb.guest(t)
		for _, reason := range []string{"Coffee", "Bus"} {
			_, err := tb.expenses.Add(ctx, input(reason, 3, day(3)))
			require.NoError(t, err)
		}
		require.Len(t, tb.expenses.List(), 2)

		rs.mu.Lock()
		rs.hold = true
		rs.mu.Unlock()
		tb.auth.emit(alice)

		assert.Equal(t, identity.ModeAuthenticated, tb.resolver.State().Mode)
		assert.False(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List(), "guest records must not show while the account loads")

		rs.release()
		assert.True(t, tb.expenses.IsInitialized())
		require.Len(t, tb.expenses.List(), 1)
		assert.Equal(t, "Rent", tb.expenses.List()[0].Reason)
		assert.Len(t, tb.store.LoadExpenses(), 2, "guest records stay on the device")
	})

	t.Run("concurrent auth changes leave one matching subscription", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			rs := newFakeRemote()
			tb := newTab(t, tabConfig{remote: rs})
			tb.auth.emit(nil)

			var wg sync.WaitGroup
			for _, u := range []*models.User{alice, bob} {
				wg.Add(1)
				go func(u *models.User) {
					defer wg.Done()
					for j := 0; j < 40; j++ {
						tb.auth.emit(u)
						tb.auth.emit(nil)
					}
					tb.auth.emit(u)
				}(u)
			}
			wg.Wait()

			state := tb.resolver.State()
			require.Equal(t, identity.ModeAuthenticated, state.Mode)
			assert.Equal(t, []string{state.IdentityID()}, rs.activeOwners(), "run %d", i)
			assert.Equal(t, identity.ModeAuthenticated, tb.expenses.Snapshot().Mode)
		}
	})

	t.Run("modes are isolated", func(t *testing.T) {
		rs := newFakeRemote()
		tb := newTab(t, tabConfig{remote: rs})
		tb.guest(t)
		_, err := tb.expenses.Add(ctx, input("Guest coffee", 3, day(3)))
		require.NoError(t, err)

		tb.auth.emit(alice)
		_, err = tb.expenses.Add(ctx, input("Account lunch", 12, day(4)))
		require.NoError(t, err)
		require.Len(t, tb.expenses.List(), 1)
		assert.Equal(t, "Account lunch", tb.expenses.List()[0].Reason)

		guestList := tb.store.LoadExpenses()
		require.Len(t, guestList, 1)
		assert.Equal(t, "Guest coffee", guestList[0].Reason)

		tb.auth.emit(nil)
		assert.Equal(t, identity.ModeSignedOut, tb.resolver.State().Mode)
		assert.False(t, tb.expenses.IsInitialized())
		assert.Empty(t, tb.expenses.List())

		require.NoError(t, tb.resolver.EnterGuestMode())
		require.Len(t, tb.expenses.List(), 1)
		assert.Equal(t, "Guest coffee", tb.expenses.List()[0].Reason)
	})

	t.Run("change listeners see the latest snapshot", func(t *testing.T) {
		tb := newTab(t, tabConfig{})

		var (
			mu   sync.Mutex
			last Snapshot
		)
		tb.expenses.OnChange(func(s Snapshot) {
			mu.Lock()
			last = s
			mu.Unlock()
		})

		tb.guest(t)
		_, err := tb.expenses.Add(ctx, input("Lunch", 10, day(5)))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return last.Mode == identity.ModeGuest && last.Initialized && len(last.Expenses) == 1
		}, eventually, 10*time.Millisecond)
	})
}

func TestExpensesCrossTab(t *testing.T) {
	ctx := context.Background()

	t.Run("bus event reloads other tab", func(t *testing.T) {
		storage := newSQLiteStorage(t)
		bus := broadcast.New()
		t.Cleanup(bus.Close)

		a := newTab(t, tabConfig{storage: storage, bus: bus, source: "tab-a"})
		b := newTab(t, tabConfig{storage: storage, bus: bus, source: "tab-b"})
		a.guest(t)
		b.guest(t)

		id, err := a.expenses.Add(ctx, input("Shared", 8, day(8)))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			list := b.expenses.List()
			return len(list) == 1 && list[0].ID == id
		}, eventually, 10*time.Millisecond)

		require.NoError(t, b.expenses.Remove(ctx, id))
		require.Eventually(t, func() bool {
			return len(a.expenses.List()) == 0
		}, eventually, 10*time.Millisecond)
	})

	t.Run("manual dispatch reloads every tab", func(t *testing.T) {
		storage := newSQLiteStorage(t)
		bus := broadcast.New()
		t.Cleanup(bus.Close)

		tb := newTab(t, tabConfig{storage: storage, bus: bus, source: "tab-a"})
		tb.guest(t)

		outside := local.NewStore(storage, nil, "outside")
		require.NoError(t, outside.SaveExpenses([]models.Expense{
			models.NewExpense("ext", models.LocalOwner, input("External", 4, day(4))),
		}))
		bus.Dispatch("")

		require.Eventually(t, func() bool {
			return len(tb.expenses.List()) == 1
		}, eventually, 10*time.Millisecond)
	})

	t.Run("polling picks up writers without a bus", func(t *testing.T) {
		storage := newSQLiteStorage(t)
		tb := newTab(t, tabConfig{storage: storage, opts: []Option{WithPollInterval(20 * time.Millisecond)}})
		tb.guest(t)

		outside := local.NewStore(storage, nil, "outside")
		require.NoError(t, outside.SaveExpenses([]models.Expense{
			models.NewExpense("ext", models.LocalOwner, input("External", 4, day(4))),
		}))

		require.Eventually(t, func() bool {
			return len(tb.expenses.List()) == 1
		}, eventually, 10*time.Millisecond)
	})
}

func TestExpensesClose(t *testing.T) {
	rs := newFakeRemote()
	tb := newTab(t, tabConfig{remote: rs})
	tb.auth.emit(alice)

	tb.expenses.Close()
	tb.expenses.Close()

	subs := rs.subscriptions()
	require.Len(t, subs, 1)
	assert.False(t, subs[0].active)

	tb.auth.emit(bob)
	assert.Len(t, rs.subscriptions(), 1, "closed synchronizer must not resubscribe")
}
