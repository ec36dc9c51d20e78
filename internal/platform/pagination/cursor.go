package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidCursor indicates the cursor could not be decoded or does not
// point into the listed collection.
var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is an opaque position in a listing: the resource type plus the ID of
// the last row already returned. An empty Value means "from the start".
type Cursor struct {
	Type  string
	Value string
}

// Encode returns a URL-safe Base64 form of "type:value".
func (c Cursor) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(c.Type + ":" + c.Value))
}

// DecodeCursor parses an encoded cursor. The empty string decodes to the zero Cursor.
func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	typ, value, ok := strings.Cut(string(b), ":")
	if !ok || typ == "" {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{Type: typ, Value: value}, nil
}
