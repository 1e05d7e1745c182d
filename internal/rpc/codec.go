package rpc

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/spendtrack/internal/models"
)

var ErrMissingField = errors.New("missing field")

// dateLayout is the ISO-8601 form used for dates on the wire.
const dateLayout = time.RFC3339Nano

// ExpenseDoc is an expense as stored by the document service, including the
// server creation timestamp.
type ExpenseDoc struct {
	models.Expense
	CreatedAt time.Time
}

// ExpenseToStruct encodes an expense document. A zero CreatedAt is omitted.
func ExpenseToStruct(doc ExpenseDoc) (*structpb.Struct, error) {
	fields := map[string]any{
		FieldAmount:   doc.Amount,
		FieldReason:   doc.Reason,
		FieldDate:     doc.Date.UTC().Format(dateLayout),
		FieldCategory: string(doc.Category),
		FieldOwner:    doc.Owner,
	}
	if doc.ID != "" {
		fields[FieldID] = doc.ID
	}
	if !doc.CreatedAt.IsZero() {
		fields[FieldCreatedAt] = doc.CreatedAt.UTC().Format(dateLayout)
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expense: %w", err)
	}
	return s, nil
}

// ExpenseFromStruct decodes an expense document. The id is optional so the
// same function serves add requests.
func ExpenseFromStruct(s *structpb.Struct) (ExpenseDoc, error) {
	f := s.GetFields()

	date, err := parseTime(f, FieldDate, true)
	if err != nil {
		return ExpenseDoc{}, err
	}
	createdAt, err := parseTime(f, FieldCreatedAt, false)
	if err != nil {
		return ExpenseDoc{}, err
	}

	amount, ok := f[FieldAmount]
	if !ok {
		return ExpenseDoc{}, fmt.Errorf("%w: %s", ErrMissingField, FieldAmount)
	}

	return ExpenseDoc{
		Expense: models.Expense{
			ID:       f[FieldID].GetStringValue(),
			Amount:   amount.GetNumberValue(),
			Reason:   f[FieldReason].GetStringValue(),
			Date:     date,
			Category: models.Category(f[FieldCategory].GetStringValue()),
			Owner:    f[FieldOwner].GetStringValue(),
		},
		CreatedAt: createdAt,
	}, nil
}

// ExpensesToList encodes a snapshot of expense documents, keeping order.
func ExpensesToList(docs []ExpenseDoc) (*structpb.ListValue, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(docs))}
	for _, doc := range docs {
		s, err := ExpenseToStruct(doc)
		if err != nil {
			return nil, err
		}
		list.Values = append(list.Values, structpb.NewStructValue(s))
	}
	return list, nil
}

// ExpensesFromList decodes a snapshot into expenses, keeping order.
func ExpensesFromList(list *structpb.ListValue) ([]models.Expense, error) {
	out := make([]models.Expense, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("snapshot entry %d is not a document", i)
		}
		doc, err := ExpenseFromStruct(s)
		if err != nil {
			return nil, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		out = append(out, doc.Expense)
	}
	return out, nil
}

// RemoveRequest encodes the owner and id of a delete.
func RemoveRequest(owner, id string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldOwner: owner,
		FieldID:    id,
	})
}

// SettingsToStruct encodes a settings document. Theme is a device preference
// and is never stored remotely.
func SettingsToStruct(s models.Settings) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldDisplayName: s.Name,
		FieldCurrency:    s.Currency,
	})
}

// SettingsFromStruct decodes a settings document, filling defaults.
func SettingsFromStruct(s *structpb.Struct) models.Settings {
	f := s.GetFields()
	return models.Settings{
		Name:     f[FieldDisplayName].GetStringValue(),
		Currency: f[FieldCurrency].GetStringValue(),
	}.WithDefaults()
}

// PatchToStruct encodes the provided fields of a settings patch with owner.
func PatchToStruct(owner string, p models.SettingsPatch) (*structpb.Struct, error) {
	fields := map[string]any{FieldOwner: owner}
	if p.Name != nil {
		fields[FieldDisplayName] = *p.Name
	}
	if p.Currency != nil {
		fields[FieldCurrency] = *p.Currency
	}
	return structpb.NewStruct(fields)
}

// PatchFromStruct decodes a settings patch; absent fields stay nil.
func PatchFromStruct(s *structpb.Struct) models.SettingsPatch {
	var p models.SettingsPatch
	f := s.GetFields()
	if v, ok := f[FieldDisplayName]; ok {
		name := v.GetStringValue()
		p.Name = &name
	}
	if v, ok := f[FieldCurrency]; ok {
		currency := v.GetStringValue()
		p.Currency = &currency
	}
	return p
}

// UserToStruct encodes the public identity fields of a user.
func UserToStruct(u *models.User) map[string]any {
	return map[string]any{
		FieldID:          u.ID,
		FieldEmail:       u.Email,
		FieldDisplayName: u.DisplayName,
		FieldPhotoURL:    u.PhotoURL,
	}
}

// SessionResponse encodes a token and its user.
func SessionResponse(token string, u *models.User) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		FieldToken: token,
		FieldUser:  UserToStruct(u),
	})
}

// Str reads a string field, "" if absent.
func Str(s *structpb.Struct, field string) string {
	return s.GetFields()[field].GetStringValue()
}

func parseTime(f map[string]*structpb.Value, field string, required bool) (time.Time, error) {
	v, ok := f[field]
	if !ok || v.GetStringValue() == "" {
		if required {
			return time.Time{}, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return t.UTC(), nil
}
