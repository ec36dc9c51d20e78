package pagination

import "net/url"

// Result is one page of a listing plus the links to its neighbors.
type Result[T any] struct {
	Items      []T
	Total      int
	LinkHeader string
	NextCursor string
	PrevCursor string
}

// Paginate slices items after the row named by cursor.
//
// The cursor must carry cursorType (or be zero) and, when it has a Value,
// that value must match getID of some item; otherwise ErrInvalidCursor is
// returned. baseURL and query feed the RFC 8288 Link header.
func Paginate[T any](
	items []T,
	cursor Cursor,
	limit int,
	cursorType string,
	getID func(T) string,
	baseURL string,
	query url.Values,
) (Result[T], error) {
	if cursor.Type != "" && cursor.Type != cursorType {
		return Result[T]{}, ErrInvalidCursor
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	total := len(items)
	start := 0
	if cursor.Value != "" {
		start = -1
		for i, item := range items {
			if getID(item) == cursor.Value {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return Result[T]{}, ErrInvalidCursor
		}
	}
	end := min(start+limit, total)
	page := items[start:end]

	var next, prev string
	if end < total && len(page) > 0 {
		next = Cursor{Type: cursorType, Value: getID(page[len(page)-1])}.Encode()
	}
	if start > 0 {
		// The previous page starts limit rows back; its cursor names the row before that.
		if start <= limit {
			prev = Cursor{Type: cursorType}.Encode()
		} else {
			prev = Cursor{Type: cursorType, Value: getID(items[start-limit-1])}.Encode()
		}
	}

	return Result[T]{
		Items:      page,
		Total:      total,
		LinkHeader: LinkHeader(baseURL, query, limit, next, prev),
		NextCursor: next,
		PrevCursor: prev,
	}, nil
}
