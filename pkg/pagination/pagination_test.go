package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"!!!", "bm9waXBl", EncodeCursor(Cursor{}) + "x"} {
		_, err := ParseCursor(raw)
		assert.Error(t, err, raw)
	}
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDecodeNormalizesLimit(t *testing.T) {
	w, err := Params{Limit: 0}.Decode()
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, w.Limit)

	w, err = Params{Limit: 1000}.Decode()
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, w.Limit)
}

func TestSplit(t *testing.T) {
	now := time.Now().UTC()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	key := func(id uuid.UUID) Cursor { return Cursor{CreatedAt: now, ID: id} }

	page, next := Split(ids, 2, key)
	require.Len(t, page, 2)
	c, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, ids[1], c.ID)

	page, next = Split(ids, 3, key)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
