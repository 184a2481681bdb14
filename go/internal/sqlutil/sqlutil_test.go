package sqlutil

import (
	"database/sql"
	"testing"

	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullString(t *testing.T) {
	assert.Equal(t, sql.NullString{}, ToSqlString(""))
	assert.Equal(t, sql.NullString{String: "hi", Valid: true}, ToSqlString("hi"))
	assert.Equal(t, "fallback", FromSqlString(sql.NullString{}, "fallback"))
	assert.Equal(t, "hi", FromSqlString(ToSqlString("hi"), "fallback"))
}

func TestNullJSON(t *testing.T) {
	empty, err := ToNullJSON[int](nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	raw, err := ToNullJSON(map[string]int{"e": 2})
	require.NoError(t, err)
	assert.True(t, raw.Valid)
	assert.JSONEq(t, `{"e":2}`, string(raw.RawMessage))

	back, err := FromNullJSON[int](raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"e": 2}, back)

	none, err := FromNullJSON[int](pqtype.NullRawMessage{})
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = FromNullJSON[int](pqtype.NullRawMessage{RawMessage: []byte("[1]"), Valid: true})
	assert.Error(t, err)
}
