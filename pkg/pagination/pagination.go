// Package pagination implements newest-first keyset paging over tables keyed
// by (created_at, id). Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// cursorLen is 8 bytes of unix nanoseconds followed by the 16-byte id.
const cursorLen = 8 + 16

var errMalformedCursor = errors.New("malformed cursor")

// Params carries the limit and cursor query values from a list request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the position of the last row on a page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Encode packs the cursor into a URL-safe token.
func (c Cursor) Encode() string {
	buf := make([]byte, cursorLen)
	binary.BigEndian.PutUint64(buf[:8], uint64(c.CreatedAt.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseCursor reverses Encode. A blank token means the first page and
// yields a nil cursor.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	if len(raw) != cursorLen {
		return nil, errMalformedCursor
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil || id == uuid.Nil {
		return nil, errMalformedCursor
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:8]))
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// Scope applies newest-first ordering and the cursor bound, and fetches one
// row past the page so Trim can tell whether another page exists. table
// qualifies the columns for joined queries and may be empty.
func Scope(table string, cursor *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	createdAt, id := "created_at", "id"
	if table != "" {
		createdAt, id = table+".created_at", table+".id"
	}
	return func(q *gorm.DB) *gorm.DB {
		if cursor != nil {
			q = q.Where(
				"("+createdAt+" < ?) OR ("+createdAt+" = ? AND "+id+" < ?)",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
		return q.Order(createdAt + " DESC").Order(id + " DESC").Limit(clampLimit(limit) + 1)
	}
}

// Trim cuts the lookahead row and returns the token for the following page,
// or "" when rows was the last page.
func Trim[T any](rows []T, limit int, position func(T) Cursor) ([]T, string) {
	n := clampLimit(limit)
	if len(rows) <= n {
		return rows, ""
	}
	rows = rows[:n]
	return rows, position(rows[n-1]).Encode()
}
