// Package app wires one client session ("tab"): durable and session
// storage, the shared bus, authentication, the identity resolver, the
// remote document client and both synchronizers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/spendtrack/internal/auth"
	"github.com/mmynk/spendtrack/internal/broadcast"
	"github.com/mmynk/spendtrack/internal/config"
	"github.com/mmynk/spendtrack/internal/identity"
	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/receipt"
	"github.com/mmynk/spendtrack/internal/remote"
	"github.com/mmynk/spendtrack/internal/synchronizer"
)

// ErrScanDisabled is returned by Scan when no receipt provider is configured.
var ErrScanDisabled = errors.New("receipt scanning is not configured")

// App is one client session.
type App struct {
	Source    string
	Bus       *broadcast.Bus
	Store     *local.Store
	Session   *auth.Session
	Resolver  *identity.Resolver
	Remote    *remote.Client
	Expenses  *synchronizer.Expenses
	Settings  *synchronizer.Settings
	Extractor receipt.Extractor

	closers []func()
}

// Option configures Open.
type Option func(*options)

type options struct {
	bus        *broadcast.Bus
	storage    local.Storage
	session    local.Storage
	httpClient connect.HTTPClient
	extractor  receipt.Extractor
	source     string
}

// WithBus shares bus with other sessions in the process.
func WithBus(bus *broadcast.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithStorage uses storage as the durable store instead of opening the
// SQLite file in the configured data directory.
func WithStorage(storage local.Storage) Option {
	return func(o *options) { o.storage = storage }
}

// WithSessionStorage uses storage for session-scoped state such as the
// guest flag.
func WithSessionStorage(storage local.Storage) Option {
	return func(o *options) { o.session = storage }
}

// WithHTTPClient sets the client used for remote calls.
func WithHTTPClient(c connect.HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithExtractor overrides the configured receipt provider.
func WithExtractor(ex receipt.Extractor) Option {
	return func(o *options) { o.extractor = ex }
}

// WithSource sets the session id used on the bus.
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// Open wires and starts a session.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Source: o.source}
	if a.Source == "" {
		a.Source = uuid.NewString()
	}

	a.Bus = o.bus
	if a.Bus == nil {
		a.Bus = broadcast.New()
		a.closers = append(a.closers, a.Bus.Close)
	}

	durable := o.storage
	if durable == nil {
		if err := os.MkdirAll(cfg.Client.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		sqliteStorage, err := local.NewSQLiteStorage(filepath.Join(cfg.Client.DataDir, "local.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { sqliteStorage.Close() })
		durable = sqliteStorage
	}

	session := o.session
	if session == nil {
		session = local.NewMemoryStorage()
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	extractor := o.extractor
	if extractor == nil {
		var err error
		extractor, err = newExtractor(ctx, cfg.Receipt)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Extractor = extractor

	a.Store = local.NewStore(durable, a.Bus, a.Source)
	a.Session = auth.NewSession(durable, remote.NewAuthClient(httpClient, cfg.Client.ServerURL), a.Bus, a.Source)
	a.Remote = remote.NewClient(httpClient, cfg.Client.ServerURL, a.Session)
	a.Resolver = identity.NewResolver(a.Session, session)

	a.Expenses = synchronizer.NewExpenses(a.Resolver, a.Store, a.Remote,
		synchronizer.WithPollInterval(cfg.Client.PollInterval))
	a.Settings = synchronizer.NewSettings(a.Resolver, a.Store, a.Remote)

	a.Resolver.Start()
	a.Expenses.Start()
	a.Settings.Start()

	// Stop consumers before their sources.
	a.closers = append(a.closers, a.Session.Close, a.Resolver.Close, a.Settings.Close, a.Expenses.Close)

	slog.Debug("Session opened", "source", a.Source, "server", cfg.Client.ServerURL)
	return a, nil
}

// Close stops the session and releases what Open created.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// EnterGuestMode switches a signed-out session to local-only storage.
func (a *App) EnterGuestMode() error {
	return a.Resolver.EnterGuestMode()
}

// Ready reports whether the identity is resolved and both synchronizers
// reflect it.
func (a *App) Ready() bool {
	st := a.Resolver.State()
	switch st.Mode {
	case identity.ModeResolving:
		return false
	case identity.ModeSignedOut:
		return true
	}
	exp := a.Expenses.Snapshot()
	set := a.Settings.Snapshot()
	return exp.Mode == st.Mode && exp.Initialized && set.Mode == st.Mode && set.Initialized
}

// WaitReady blocks until Ready or ctx is done.
func (a *App) WaitReady(ctx context.Context) error {
	kick := make(chan struct{}, 1)
	wake := func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
	defer a.Expenses.OnChange(func(synchronizer.Snapshot) { wake() })()
	defer a.Settings.OnChange(func(synchronizer.SettingsSnapshot) { wake() })()
	defer a.Resolver.Subscribe(func(identity.State) { wake() })()

	// Snapshots are delivered asynchronously; the ticker covers a change that
	// landed between a check and registration.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for !a.Ready() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("session not ready: %w", ctx.Err())
		case <-kick:
		case <-ticker.C:
		}
	}
	return nil
}

// Scan reads a receipt image file and returns a prefilled draft. On
// extraction failure the draft is empty apart from the date and the error is
// a *receipt.ExtractionError.
func (a *App) Scan(ctx context.Context, path string) (receipt.Draft, error) {
	now := time.Now()
	if a.Extractor == nil {
		return receipt.Draft{Date: now}, ErrScanDisabled
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return receipt.Draft{Date: now}, fmt.Errorf("failed to read receipt: %w", err)
	}
	uri := receipt.DataURI(http.DetectContentType(data), data)
	return receipt.NewDraft(ctx, a.Extractor, uri, now)
}

func newExtractor(ctx context.Context, cfg config.ReceiptConfig) (receipt.Extractor, error) {
	switch cfg.Provider {
	case "gemini":
		return receipt.NewGemini(ctx, receipt.GeminiConfig{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		})
	case "openai":
		return receipt.NewOpenAI(receipt.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}
	return nil, nil
}
