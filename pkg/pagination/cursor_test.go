package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.NewString()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC)

	parsed, err := Parse(Encode(Cursor{CreatedAt: ts, ID: id}))
	require.NoError(t, err)
	assert.Equal(t, id, parsed.ID)
	assert.True(t, ts.Equal(parsed.CreatedAt))
}

func TestParseRejectsGarbage(t *testing.T) {
	c, err := Parse("")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = Parse("%%%")
	require.Error(t, err)

	_, err = Parse(Encode(Cursor{CreatedAt: time.Now(), ID: "not-a-uuid"}))
	require.Error(t, err)
}

func TestTrim(t *testing.T) {
	type row struct {
		id string
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.NewString(), now}, {uuid.NewString(), now.Add(-time.Minute)}, {uuid.NewString(), now.Add(-2 * time.Minute)}}

	page, next := Trim(rows, 2, func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} })
	require.Len(t, page, 2)
	require.NotEmpty(t, next)
	cursor, err := Parse(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, cursor.ID)

	page, next = Trim(rows, 5, func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} })
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 11, LimitWithBuffer(10))
}
