package sqlutil

import (
	"database/sql"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

// Helpers for moving between Go values and nullable columns

// ToSqlString maps "" to NULL.
func ToSqlString(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}

// FromSqlString converts sql.NullString to Go string with default
func FromSqlString(val sql.NullString, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}

// ToNullJSON marshals v into a JSONB value. A nil or empty map is NULL.
func ToNullJSON[T any](v map[string]T) (pqtype.NullRawMessage, error) {
	if len(v) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

// FromNullJSON decodes a JSONB object, NULL gives a nil map.
func FromNullJSON[T any](val pqtype.NullRawMessage) (map[string]T, error) {
	if !val.Valid || len(val.RawMessage) == 0 {
		return nil, nil
	}
	var out map[string]T
	if err := json.Unmarshal(val.RawMessage, &out); err != nil {
		return nil, err
	}
	return out, nil
}
