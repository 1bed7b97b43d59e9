// Package rpcapi defines the Connect procedures spoken between the mealsync
// client and its backend, and the conversions between remote values and
// protobuf well-known types.
//
// Every procedure takes a google.protobuf.Struct. Responses are Structs,
// except Download, which answers with google.protobuf.BytesValue.
package rpcapi

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/mealsync/internal/models"
	"github.com/mmynk/mealsync/internal/remote"
)

// ServiceName is the fully-qualified name of the backend service.
const ServiceName = "mealsync.v1.BackendService"

// Procedure paths.
const (
	SelectProcedure   = "/" + ServiceName + "/Select"
	InsertProcedure   = "/" + ServiceName + "/Insert"
	UpdateProcedure   = "/" + ServiceName + "/Update"
	DownloadProcedure = "/" + ServiceName + "/Download"
	UploadProcedure   = "/" + ServiceName + "/Upload"
	SignInProcedure   = "/" + ServiceName + "/SignInWithPassword"
	SignUpProcedure   = "/" + ServiceName + "/SignUp"
	SignOutProcedure  = "/" + ServiceName + "/SignOut"
	GetUserProcedure  = "/" + ServiceName + "/GetUser"
)

// WriteProcedures require an authenticated caller.
var WriteProcedures = map[string]bool{
	InsertProcedure:  true,
	UpdateProcedure:  true,
	UploadProcedure:  true,
	SignOutProcedure: true,
}

// ReadProcedures are the calls clients repeat often; they log at debug level.
var ReadProcedures = []string{SelectProcedure, DownloadProcedure, GetUserProcedure}

// ToStruct converts a JSON-like map into a Struct. Values are normalized
// through JSON first so typed slices and structs are accepted.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	if m == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}
	var norm map[string]any
	if err := roundTrip(m, &norm); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(norm)
	if err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return s, nil
}

func roundTrip(in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}

// SelectRequest encodes a select.
func SelectRequest(table string, q remote.Query) (*structpb.Struct, error) {
	m := map[string]any{"table": table}
	if q.Filter != nil {
		m["filter"] = q.Filter
	}
	if q.IDs != nil {
		m["id_field"] = q.IDField
		m["ids"] = q.IDs
	}
	if len(q.Embeds) > 0 {
		embeds := make([]any, len(q.Embeds))
		for i, e := range q.Embeds {
			embeds[i] = map[string]any{
				"table":         e.Table,
				"local_field":   e.LocalField,
				"foreign_field": e.ForeignField,
				"many":          e.Many,
				"as":            e.As,
			}
		}
		m["embeds"] = embeds
	}
	return ToStruct(m)
}

// ParseSelect decodes a select.
func ParseSelect(s *structpb.Struct) (string, remote.Query, error) {
	m := s.AsMap()
	table, _ := m["table"].(string)
	if table == "" {
		return "", remote.Query{}, fmt.Errorf("table required")
	}
	var q remote.Query
	if f, ok := m["filter"].(map[string]any); ok {
		q.Filter = f
	}
	if ids, ok := m["ids"].([]any); ok {
		q.IDs = make([]string, 0, len(ids))
		for _, id := range ids {
			q.IDs = append(q.IDs, remote.ValueKey(id))
		}
		q.IDField, _ = m["id_field"].(string)
	}
	if embeds, ok := m["embeds"].([]any); ok {
		for _, raw := range embeds {
			em, ok := raw.(map[string]any)
			if !ok {
				return "", remote.Query{}, fmt.Errorf("malformed embed")
			}
			e := remote.Embed{}
			e.Table, _ = em["table"].(string)
			e.LocalField, _ = em["local_field"].(string)
			e.ForeignField, _ = em["foreign_field"].(string)
			e.Many, _ = em["many"].(bool)
			e.As, _ = em["as"].(string)
			q.Embeds = append(q.Embeds, e)
		}
	}
	return table, q, nil
}

// RowsMessage wraps rows in a Struct under "rows".
func RowsMessage(table string, rows []remote.Row) (*structpb.Struct, error) {
	list := make([]any, len(rows))
	for i, r := range rows {
		list[i] = map[string]any(r)
	}
	m := map[string]any{"rows": list}
	if table != "" {
		m["table"] = table
	}
	return ToStruct(m)
}

// ParseRows extracts the rows of a RowsMessage.
func ParseRows(s *structpb.Struct) ([]remote.Row, error) {
	list, ok := s.AsMap()["rows"].([]any)
	if !ok {
		return []remote.Row{}, nil
	}
	rows := make([]remote.Row, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("malformed row")
		}
		rows = append(rows, remote.Row(m))
	}
	return rows, nil
}

// UpdateRequest encodes an update.
func UpdateRequest(table string, patch remote.Row, eqField string, eqValue any) (*structpb.Struct, error) {
	return ToStruct(map[string]any{
		"table":    table,
		"patch":    map[string]any(patch),
		"eq_field": eqField,
		"eq_value": eqValue,
	})
}

// ParseUpdate decodes an update.
func ParseUpdate(s *structpb.Struct) (table string, patch remote.Row, eqField string, eqValue any, err error) {
	m := s.AsMap()
	table, _ = m["table"].(string)
	eqField, _ = m["eq_field"].(string)
	eqValue = m["eq_value"]
	p, _ := m["patch"].(map[string]any)
	if table == "" || eqField == "" {
		return "", nil, "", nil, fmt.Errorf("table and eq_field required")
	}
	if len(p) == 0 {
		return "", nil, "", nil, fmt.Errorf("empty patch")
	}
	return table, remote.Row(p), eqField, eqValue, nil
}

// UserMessage encodes a user profile.
func UserMessage(user *models.User) map[string]any {
	if user == nil {
		return nil
	}
	return map[string]any{"id": user.ID, "email": user.Email}
}

// ParseUser decodes the "user" field of s, or nil when absent.
func ParseUser(s *structpb.Struct) *models.User {
	m, ok := s.AsMap()["user"].(map[string]any)
	if !ok {
		return nil
	}
	user := &models.User{}
	user.ID, _ = m["id"].(string)
	user.Email, _ = m["email"].(string)
	return user
}

// SessionMessage encodes a sign-in result.
func SessionMessage(sess *remote.AuthSession) (*structpb.Struct, error) {
	return ToStruct(map[string]any{
		"user":         UserMessage(sess.User),
		"access_token": sess.AccessToken,
		"expires_at":   sess.ExpiresAt.Unix(),
	})
}

// ParseSession decodes a sign-in result.
func ParseSession(s *structpb.Struct) (*remote.AuthSession, error) {
	m := s.AsMap()
	token, _ := m["access_token"].(string)
	if token == "" {
		return nil, fmt.Errorf("missing access token")
	}
	sess := &remote.AuthSession{User: ParseUser(s), AccessToken: token}
	if exp, ok := m["expires_at"].(float64); ok {
		sess.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return sess, nil
}

// Credentials encodes an email/password pair.
func Credentials(email, password string) (*structpb.Struct, error) {
	return ToStruct(map[string]any{"email": email, "password": password})
}

// ParseCredentials decodes an email/password pair.
func ParseCredentials(s *structpb.Struct) (email, password string) {
	m := s.AsMap()
	email, _ = m["email"].(string)
	password, _ = m["password"].(string)
	return email, password
}

// String returns the string field key of s.
func String(s *structpb.Struct, key string) string {
	v, _ := s.AsMap()[key].(string)
	return v
}
