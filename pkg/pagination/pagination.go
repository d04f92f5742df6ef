package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	// MaxLimit caps how many rows a single list call may return.
	MaxLimit = 100
)

// Params are the raw list inputs taken from the query string.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor marks the last row of the previous page. Rows are ordered newest
// first by (created_at, id).
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Window is a decoded Params ready for a query.
type Window struct {
	Limit int
	After *Cursor
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Decode normalizes the limit and parses the cursor.
func (p Params) Decode() (Window, error) {
	after, err := ParseCursor(p.Cursor)
	if err != nil {
		return Window{}, err
	}
	return Window{Limit: NormalizeLimit(p.Limit), After: after}, nil
}

// Apply adds the keyset predicate, ordering and the one-row lookahead.
func (w Window) Apply(q *gorm.DB) *gorm.DB {
	if w.After != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", w.After.CreatedAt, w.After.CreatedAt, w.After.ID)
	}
	return q.Order("created_at DESC").Order("id DESC").Limit(w.Limit + 1)
}

// Split trims the lookahead row and returns the cursor for the next page,
// or "" when rows was the last page.
func Split[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	if len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, EncodeCursor(key(page[limit-1]))
}

// EncodeCursor renders a cursor safe for use in a query string.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor returns nil for an empty value.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: rowID}, nil
}
