// Package rpc defines the wire contract between the remote document service
// and its clients: Connect procedure names and the encoding of expenses,
// settings and users as protobuf well-known types.
//
// Documents travel as google.protobuf.Struct values so the service needs no
// generated code. Field names follow the remote document layout:
//
//	expense:  id, amount, reason, date, category, owner, createdAt
//	settings: displayName, currency
//	user:     id, email, displayName, photoUrl
package rpc

const (
	// ExpenseServiceName is the fully-qualified name of the document service.
	ExpenseServiceName = "spendtrack.v1.ExpenseService"
	// AuthServiceName is the fully-qualified name of the auth service.
	AuthServiceName = "spendtrack.v1.AuthService"
)

const (
	// SubscribeExpensesProcedure streams full expense snapshots for an owner.
	// Request: StringValue(owner). Stream: ListValue of expense structs.
	SubscribeExpensesProcedure = "/" + ExpenseServiceName + "/SubscribeExpenses"
	// AddExpenseProcedure creates an expense document.
	// Request: expense Struct with owner. Response: StringValue(id).
	AddExpenseProcedure = "/" + ExpenseServiceName + "/AddExpense"
	// RemoveExpenseProcedure deletes an expense document.
	// Request: Struct{owner, id}. Response: Empty.
	RemoveExpenseProcedure = "/" + ExpenseServiceName + "/RemoveExpense"
	// GetSettingsProcedure reads the settings document, creating it with
	// defaults on first read. Request: StringValue(owner). Response: settings Struct.
	GetSettingsProcedure = "/" + ExpenseServiceName + "/GetSettings"
	// MergeSettingsProcedure merges provided settings fields.
	// Request: settings Struct with owner. Response: merged settings Struct.
	MergeSettingsProcedure = "/" + ExpenseServiceName + "/MergeSettings"

	// RegisterProcedure creates an account.
	// Request: Struct{email, displayName, password}. Response: Struct{token, user}.
	RegisterProcedure = "/" + AuthServiceName + "/Register"
	// LoginProcedure exchanges credentials for a token.
	// Request: Struct{email, password}. Response: Struct{token, user}.
	LoginProcedure = "/" + AuthServiceName + "/Login"
)

// Document field names.
const (
	FieldID          = "id"
	FieldAmount      = "amount"
	FieldReason      = "reason"
	FieldDate        = "date"
	FieldCategory    = "category"
	FieldOwner       = "owner"
	FieldCreatedAt   = "createdAt"
	FieldDisplayName = "displayName"
	FieldCurrency    = "currency"
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldPhotoURL    = "photoUrl"
	FieldToken       = "token"
	FieldUser        = "user"
)
