package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const timeFormat = time.RFC3339Nano

// Cursor is the keyset position of the last row of a page: the row's
// effective time, its recorded time and its ID as a tie-breaker.
type Cursor struct {
	EffectiveAt time.Time
	RecordedAt  time.Time
	ID          string
}

// EncodeToken creates an opaque base64 token from a cursor.
func EncodeToken(c Cursor) string {
	tokenStr := fmt.Sprintf("%s|%s|%s", c.EffectiveAt.Format(timeFormat), c.RecordedAt.Format(timeFormat), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), "|", 3)
	if len(parts) != 3 || parts[2] == "" {
		return Cursor{}, fmt.Errorf("invalid pagination token format (split)")
	}

	effectiveAt, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (effective_at parse): %w", err)
	}
	recordedAt, err := time.Parse(timeFormat, parts[1])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token format (recorded_at parse): %w", err)
	}

	return Cursor{EffectiveAt: effectiveAt, RecordedAt: recordedAt, ID: parts[2]}, nil
}

// After reports whether the position (effectiveAt, recordedAt, id) sorts
// strictly after c in ascending keyset order.
func (c Cursor) After(effectiveAt, recordedAt time.Time, id string) bool {
	if !effectiveAt.Equal(c.EffectiveAt) {
		return effectiveAt.After(c.EffectiveAt)
	}
	if !recordedAt.Equal(c.RecordedAt) {
		return recordedAt.After(c.RecordedAt)
	}
	return id > c.ID
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
