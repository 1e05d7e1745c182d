package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mmynk/spendtrack/internal/metrics"
	"github.com/mmynk/spendtrack/internal/middleware"
	"github.com/mmynk/spendtrack/internal/rpc"
	"github.com/mmynk/spendtrack/internal/storage"
)

var errOwnerMismatch = errors.New("documents belong to another user")

// ExpenseService serves the per-user expense collection and settings
// document.
type ExpenseService struct {
	store   storage.Store
	hub     *Hub
	metrics *metrics.Metrics
}

// NewExpenseService creates a new ExpenseService. m may be nil.
func NewExpenseService(store storage.Store, hub *Hub, m *metrics.Metrics) *ExpenseService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &ExpenseService{store: store, hub: hub, metrics: m}
}

// Handler returns the path prefix and handler serving every procedure of
// the service.
func (s *ExpenseService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpc.SubscribeExpensesProcedure, connect.NewServerStreamHandler(
		rpc.SubscribeExpensesProcedure, s.SubscribeExpenses, opts...,
	))
	mux.Handle(rpc.AddExpenseProcedure, connect.NewUnaryHandler(
		rpc.AddExpenseProcedure, s.AddExpense, opts...,
	))
	mux.Handle(rpc.RemoveExpenseProcedure, connect.NewUnaryHandler(
		rpc.RemoveExpenseProcedure, s.RemoveExpense, opts...,
	))
	mux.Handle(rpc.GetSettingsProcedure, connect.NewUnaryHandler(
		rpc.GetSettingsProcedure, s.GetSettings, opts...,
	))
	mux.Handle(rpc.MergeSettingsProcedure, connect.NewUnaryHandler(
		rpc.MergeSettingsProcedure, s.MergeSettings, opts...,
	))
	return "/" + rpc.ExpenseServiceName + "/", mux
}

// SubscribeExpenses sends the owner's full expense list, newest first, and
// a fresh snapshot after every write until the client goes away.
func (s *ExpenseService) SubscribeExpenses(ctx context.Context, req *connect.Request[wrapperspb.StringValue], stream *connect.ServerStream[structpb.ListValue]) error {
	owner := req.Msg.GetValue()
	if err := authorize(ctx, owner); err != nil {
		return err
	}

	// Watch before the first read so no write between the two is missed.
	changes, cancel := s.hub.Watch(owner)
	defer cancel()

	s.metrics.ActiveSubscriptions.Inc()
	defer s.metrics.ActiveSubscriptions.Dec()

	slog.Info("Subscription opened", "owner", owner)
	defer slog.Info("Subscription closed", "owner", owner)

	for {
		docs, err := s.store.ListExpenses(ctx, owner)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("ListExpenses failed", "owner", owner, "error", err)
			return connect.NewError(connect.CodeInternal, err)
		}
		snapshot, err := rpc.ExpensesToList(docs)
		if err != nil {
			return connect.NewError(connect.CodeInternal, err)
		}
		if err := stream.Send(snapshot); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.metrics.SnapshotsSent.Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		}
	}
}

// AddExpense stores a new expense document and returns its id.
func (s *ExpenseService) AddExpense(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[wrapperspb.StringValue], error) {
	doc, err := rpc.ExpenseFromStruct(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := authorize(ctx, doc.Owner); err != nil {
		return nil, err
	}
	if err := doc.Input().Validate(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	slog.Info("AddExpense request received",
		"owner", doc.Owner,
		"category", doc.Category,
	)

	doc.ID = ""
	if err := s.store.InsertExpense(ctx, &doc); err != nil {
		slog.Error("AddExpense failed", "owner", doc.Owner, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.hub.Notify(doc.Owner)
	s.metrics.ExpenseWrites.WithLabelValues("add").Inc()

	slog.Info("Expense created", "owner", doc.Owner, "expense_id", doc.ID)
	return connect.NewResponse(wrapperspb.String(doc.ID)), nil
}

// RemoveExpense deletes an expense document. Unknown ids succeed.
func (s *ExpenseService) RemoveExpense(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	owner := rpc.Str(req.Msg, rpc.FieldOwner)
	id := rpc.Str(req.Msg, rpc.FieldID)
	if err := authorize(ctx, owner); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, rpc.ErrMissingField)
	}

	slog.Info("RemoveExpense request received", "owner", owner, "expense_id", id)

	if err := s.store.DeleteExpense(ctx, owner, id); err != nil {
		slog.Error("RemoveExpense failed", "owner", owner, "expense_id", id, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.hub.Notify(owner)
	s.metrics.ExpenseWrites.WithLabelValues("remove").Inc()

	return connect.NewResponse(&emptypb.Empty{}), nil
}

// GetSettings returns the owner's settings document, creating it on first
// read.
func (s *ExpenseService) GetSettings(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	owner := req.Msg.GetValue()
	if err := authorize(ctx, owner); err != nil {
		return nil, err
	}

	settings, err := s.store.GetSettings(ctx, owner)
	if err != nil {
		slog.Error("GetSettings failed", "owner", owner, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	msg, err := rpc.SettingsToStruct(settings)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// MergeSettings applies the provided settings fields.
func (s *ExpenseService) MergeSettings(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	owner := rpc.Str(req.Msg, rpc.FieldOwner)
	if err := authorize(ctx, owner); err != nil {
		return nil, err
	}

	patch := rpc.PatchFromStruct(req.Msg)
	slog.Info("MergeSettings request received",
		"owner", owner,
		"name_set", patch.Name != nil,
		"currency_set", patch.Currency != nil,
	)

	merged, err := s.store.MergeSettings(ctx, owner, patch)
	if err != nil {
		slog.Error("MergeSettings failed", "owner", owner, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	msg, err := rpc.SettingsToStruct(merged)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// authorize checks that the caller owns the documents named by owner.
func authorize(ctx context.Context, owner string) error {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	if owner == "" {
		return connect.NewError(connect.CodeInvalidArgument, rpc.ErrMissingField)
	}
	if owner != userID {
		return connect.NewError(connect.CodePermissionDenied, errOwnerMismatch)
	}
	return nil
}
