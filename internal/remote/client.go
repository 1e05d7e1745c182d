package remote

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/rpc"
)

// TokenSource supplies the bearer token for each call.
type TokenSource interface {
	Token() string
}

var _ Store = (*Client)(nil)

// Client implements Store against the document service over Connect.
type Client struct {
	subscribe     *connect.Client[wrapperspb.StringValue, structpb.ListValue]
	add           *connect.Client[structpb.Struct, wrapperspb.StringValue]
	remove        *connect.Client[structpb.Struct, emptypb.Empty]
	getSettings   *connect.Client[wrapperspb.StringValue, structpb.Struct]
	mergeSettings *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a Client for the service at baseURL. httpClient may be
// nil to use http.DefaultClient.
func NewClient(httpClient connect.HTTPClient, baseURL string, tokens TokenSource, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithInterceptors(&bearer{tokens: tokens})}, opts...)

	return &Client{
		subscribe: connect.NewClient[wrapperspb.StringValue, structpb.ListValue](
			httpClient, baseURL+rpc.SubscribeExpensesProcedure, opts...),
		add: connect.NewClient[structpb.Struct, wrapperspb.StringValue](
			httpClient, baseURL+rpc.AddExpenseProcedure, opts...),
		remove: connect.NewClient[structpb.Struct, emptypb.Empty](
			httpClient, baseURL+rpc.RemoveExpenseProcedure, opts...),
		getSettings: connect.NewClient[wrapperspb.StringValue, structpb.Struct](
			httpClient, baseURL+rpc.GetSettingsProcedure, opts...),
		mergeSettings: connect.NewClient[structpb.Struct, structpb.Struct](
			httpClient, baseURL+rpc.MergeSettingsProcedure, opts...),
	}
}

// Subscribe opens a server stream in the background. Unsubscribing cancels
// the stream; callbacks already running are not interrupted.
func (c *Client) Subscribe(owner string, onChange func([]models.Expense), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		err := c.stream(ctx, owner, onChange)
		if ctx.Err() != nil {
			return
		}
		onError(&ReadError{Op: "subscribe", Err: err})
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}

func (c *Client) stream(ctx context.Context, owner string, onChange func([]models.Expense)) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(wrapperspb.String(owner)))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		expenses, err := rpc.ExpensesFromList(stream.Msg())
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onChange(expenses)
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return ErrStreamClosed
}

// Add creates an expense document.
func (c *Client) Add(ctx context.Context, owner string, in models.ExpenseInput) (string, error) {
	msg, err := rpc.ExpenseToStruct(rpc.ExpenseDoc{Expense: models.NewExpense("", owner, in)})
	if err != nil {
		return "", &WriteError{Op: "add", Err: err}
	}
	resp, err := c.add.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return "", &WriteError{Op: "add", Err: err}
	}
	return resp.Msg.GetValue(), nil
}

// Remove deletes an expense document.
func (c *Client) Remove(ctx context.Context, owner, id string) error {
	msg, err := rpc.RemoveRequest(owner, id)
	if err != nil {
		return &WriteError{Op: "remove", Err: err}
	}
	if _, err := c.remove.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return &WriteError{Op: "remove", Err: err}
	}
	return nil
}

// GetSettings reads the settings document.
func (c *Client) GetSettings(ctx context.Context, owner string) (models.Settings, error) {
	resp, err := c.getSettings.CallUnary(ctx, connect.NewRequest(wrapperspb.String(owner)))
	if err != nil {
		return models.Settings{}, &ReadError{Op: "get settings", Err: err}
	}
	return rpc.SettingsFromStruct(resp.Msg), nil
}

// MergeSettings writes the provided settings fields.
func (c *Client) MergeSettings(ctx context.Context, owner string, patch models.SettingsPatch) (models.Settings, error) {
	msg, err := rpc.PatchToStruct(owner, patch)
	if err != nil {
		return models.Settings{}, &WriteError{Op: "save settings", Err: err}
	}
	resp, err := c.mergeSettings.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return models.Settings{}, &WriteError{Op: "save settings", Err: err}
	}
	return rpc.SettingsFromStruct(resp.Msg), nil
}

// bearer adds the current token to outgoing calls.
type bearer struct {
	tokens TokenSource
}

var _ connect.Interceptor = (*bearer)(nil)

func (b *bearer) set(h http.Header) {
	if b.tokens == nil {
		return
	}
	if token := b.tokens.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

func (b *bearer) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		b.set(req.Header())
		return next(ctx, req)
	}
}

func (b *bearer) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		b.set(conn.RequestHeader())
		return conn
	}
}

func (b *bearer) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
