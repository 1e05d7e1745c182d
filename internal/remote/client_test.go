package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/spendtrack/internal/auth"
	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/service"
	"github.com/mmynk/spendtrack/internal/storage/sqlite"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// newServer runs the document service on a temp database.
func newServer(t *testing.T) (*httptest.Server, *auth.JWTManager) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	server := httptest.NewServer(service.NewMux(service.Deps{
		Store:         store,
		Authenticator: auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost),
		JWTManager:    jwtManager,
	}))
	t.Cleanup(server.Close)
	return server, jwtManager
}

func newClient(t *testing.T, server *httptest.Server, jwtManager *auth.JWTManager, userID string) *Client {
	t.Helper()
	token, err := jwtManager.Generate(&models.User{ID: userID})
	require.NoError(t, err)
	return NewClient(server.Client(), server.URL, staticToken(token))
}

// snapshots records subscription callbacks.
type snapshots struct {
	mu   sync.Mutex
	got  [][]models.Expense
	errs []error
}

func (s *snapshots) onChange(e []models.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
}

func (s *snapshots) onError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *snapshots) last() ([]models.Expense, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil, 0
	}
	return s.got[len(s.got)-1], len(s.got)
}

func (s *snapshots) errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func input(reason string, date time.Time) models.ExpenseInput {
	return models.ExpenseInput{Amount: 9.99, Reason: reason, Date: date, Category: models.CategoryShopping}
}

func TestClient_SubscribeAddRemove(t *testing.T) {
	server, jwtManager := newServer(t)
	client := newClient(t, server, jwtManager, "alice")
	ctx := context.Background()

	rec := &snapshots{}
	unsubscribe := client.Subscribe("alice", rec.onChange, rec.onError)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		list, n := rec.last()
		return n == 1 && len(list) == 0
	}, 5*time.Second, 10*time.Millisecond, "initial snapshot")

	older, err := client.Add(ctx, "alice", input("Older", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	newer, err := client.Add(ctx, "alice", input("Newer", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.NotEqual(t, older, newer)

	require.Eventually(t, func() bool {
		list, _ := rec.last()
		return len(list) == 2
	}, 5*time.Second, 10*time.Millisecond)

	list, _ := rec.last()
	assert.Equal(t, newer, list[0].ID)
	assert.Equal(t, "alice", list[0].Owner)
	assert.Equal(t, older, list[1].ID)

	require.NoError(t, client.Remove(ctx, "alice", older))
	require.NoError(t, client.Remove(ctx, "alice", "missing"))

	require.Eventually(t, func() bool {
		list, _ := rec.last()
		return len(list) == 1 && list[0].ID == newer
	}, 5*time.Second, 10*time.Millisecond)

	assert.Empty(t, rec.errors())
}

func TestClient_Errors(t *testing.T) {
	server, jwtManager := newServer(t)
	ctx := context.Background()

	t.Run("write without token", func(t *testing.T) {
		client := NewClient(server.Client(), server.URL, staticToken(""))
		_, err := client.Add(ctx, "alice", input("Lunch", time.Now()))

		var writeErr *WriteError
		require.True(t, errors.As(err, &writeErr))
		assert.Equal(t, "add", writeErr.Op)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("subscription rejected", func(t *testing.T) {
		client := newClient(t, server, jwtManager, "alice")
		rec := &snapshots{}
		unsubscribe := client.Subscribe("bob", rec.onChange, rec.onError)
		defer unsubscribe()

		require.Eventually(t, func() bool {
			return len(rec.errors()) == 1
		}, 5*time.Second, 10*time.Millisecond)

		var readErr *ReadError
		require.True(t, errors.As(rec.errors()[0], &readErr))
		assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(readErr.Err))
	})

	t.Run("unsubscribe is silent", func(t *testing.T) {
		client := newClient(t, server, jwtManager, "alice")
		rec := &snapshots{}
		unsubscribe := client.Subscribe("alice", rec.onChange, rec.onError)

		require.Eventually(t, func() bool {
			_, n := rec.last()
			return n > 0
		}, 5*time.Second, 10*time.Millisecond)

		unsubscribe()
		unsubscribe()
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, rec.errors())
	})
}

func TestClient_Settings(t *testing.T) {
	server, jwtManager := newServer(t)
	client := newClient(t, server, jwtManager, "alice")
	ctx := context.Background()

	settings, err := client.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCurrency, settings.Currency)

	name := "Alice"
	merged, err := client.MergeSettings(ctx, "alice", models.SettingsPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice", merged.Name)
	assert.Equal(t, models.DefaultCurrency, merged.Currency)

	_, err = client.GetSettings(ctx, "bob")
	var readErr *ReadError
	assert.True(t, errors.As(err, &readErr))
}

func TestAuthClient(t *testing.T) {
	server, jwtManager := newServer(t)
	client := NewAuthClient(server.Client(), server.URL)
	ctx := context.Background()

	token, err := client.Register(ctx, "ada@example.com", "Ada", "correct horse")
	require.NoError(t, err)
	claims, err := jwtManager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)

	_, err = client.Register(ctx, "ada@example.com", "Ada", "correct horse")
	assert.ErrorIs(t, err, auth.ErrEmailExists)

	_, err = client.Register(ctx, "bob@example.com", "Bob", "short")
	assert.ErrorIs(t, err, auth.ErrWeakPassword)

	_, err = client.Login(ctx, "ada@example.com", "wrong horse")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	token, err = client.Login(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}
