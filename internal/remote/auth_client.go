package remote

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/spendtrack/internal/auth"
	"github.com/mmynk/spendtrack/internal/rpc"
)

var _ auth.Credentials = (*AuthClient)(nil)

// AuthClient exchanges credentials for session tokens.
type AuthClient struct {
	register *connect.Client[structpb.Struct, structpb.Struct]
	login    *connect.Client[structpb.Struct, structpb.Struct]
}

// NewAuthClient creates an AuthClient for the service at baseURL.
func NewAuthClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AuthClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &AuthClient{
		register: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+rpc.RegisterProcedure, opts...),
		login:    connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+rpc.LoginProcedure, opts...),
	}
}

// Register creates an account and returns its session token.
func (c *AuthClient) Register(ctx context.Context, email, displayName, password string) (string, error) {
	return c.call(ctx, c.register, map[string]any{
		rpc.FieldEmail:       email,
		rpc.FieldDisplayName: displayName,
		rpc.FieldPassword:    password,
	})
}

// Login returns a session token for the given credentials.
func (c *AuthClient) Login(ctx context.Context, email, password string) (string, error) {
	return c.call(ctx, c.login, map[string]any{
		rpc.FieldEmail:    email,
		rpc.FieldPassword: password,
	})
}

func (c *AuthClient) call(ctx context.Context, client *connect.Client[structpb.Struct, structpb.Struct], fields map[string]any) (string, error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return "", err
	}
	resp, err := client.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return "", authError(err)
	}
	token := rpc.Str(resp.Msg, rpc.FieldToken)
	if token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

// authError maps service codes back to the auth package's errors.
func authError(err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}
	switch connectErr.Code() {
	case connect.CodeUnauthenticated:
		return auth.ErrInvalidCredentials
	case connect.CodeAlreadyExists:
		return auth.ErrEmailExists
	case connect.CodeInvalidArgument:
		switch connectErr.Message() {
		case auth.ErrWeakPassword.Error():
			return auth.ErrWeakPassword
		case auth.ErrInvalidEmail.Error():
			return auth.ErrInvalidEmail
		}
		return auth.ErrInvalidCredentials
	}
	return err
}
