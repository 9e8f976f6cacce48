package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit: MaxLimit, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		assert.Equal(t, want, clampLimit(in), "limit %d", in)
	}
}

func TestCursorRoundTripKeepsNanoseconds(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.FixedZone("EST", -5*3600)), ID: uuid.New()}

	parsed, err := ParseCursor(c.Encode())
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.CreatedAt.Equal(c.CreatedAt))
	assert.Equal(t, time.UTC, parsed.CreatedAt.Location())
	assert.Equal(t, c.ID, parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	for name, token := range map[string]string{
		"not base64": "%%%",
		"too short":  base64.RawURLEncoding.EncodeToString([]byte("short")),
		"nil id":     Cursor{CreatedAt: time.Now()}.Encode(),
	} {
		_, err := ParseCursor(token)
		assert.ErrorIs(t, err, errMalformedCursor, name)
	}
}

func TestTrim(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	now := time.Now().UTC()
	rows := []row{{now, uuid.New()}, {now.Add(-time.Minute), uuid.New()}, {now.Add(-2 * time.Minute), uuid.New()}}
	position := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Trim(rows, 2, position)
	require.Len(t, page, 2)
	c, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, c.ID)

	page, next = Trim(rows, 5, position)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
