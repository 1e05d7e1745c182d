package service

import (
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/spendtrack/internal/rpc"
)

func credentials(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestAuthService(t *testing.T) {
	s := setupTestServer(t)

	resp, err := call[structpb.Struct, structpb.Struct](t, s, rpc.RegisterProcedure, "", credentials(t, map[string]any{
		rpc.FieldEmail:       "ada@example.com",
		rpc.FieldDisplayName: "Ada",
		rpc.FieldPassword:    "correct horse",
	}))
	require.NoError(t, err)

	token := rpc.Str(resp, rpc.FieldToken)
	require.NotEmpty(t, token)
	claims, err := s.jwt.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "Ada", claims.DisplayName)

	user := resp.GetFields()[rpc.FieldUser].GetStructValue()
	assert.Equal(t, claims.UserID, rpc.Str(user, rpc.FieldID))

	t.Run("duplicate", func(t *testing.T) {
		_, err := call[structpb.Struct, structpb.Struct](t, s, rpc.RegisterProcedure, "", credentials(t, map[string]any{
			rpc.FieldEmail:    "ada@example.com",
			rpc.FieldPassword: "correct horse",
		}))
		assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
	})

	t.Run("login", func(t *testing.T) {
		resp, err := call[structpb.Struct, structpb.Struct](t, s, rpc.LoginProcedure, "", credentials(t, map[string]any{
			rpc.FieldEmail:    "ada@example.com",
			rpc.FieldPassword: "correct horse",
		}))
		require.NoError(t, err)
		assert.NotEmpty(t, rpc.Str(resp, rpc.FieldToken))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := call[structpb.Struct, structpb.Struct](t, s, rpc.LoginProcedure, "", credentials(t, map[string]any{
			rpc.FieldEmail:    "ada@example.com",
			rpc.FieldPassword: "wrong horse",
		}))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := call[structpb.Struct, structpb.Struct](t, s, rpc.LoginProcedure, "", credentials(t, map[string]any{}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}
