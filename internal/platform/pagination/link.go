package pagination

import (
	"maps"
	"net/url"
	"strconv"
	"strings"
)

// LinkHeader renders the RFC 8288 next and prev links for a page. Every link
// keeps the caller's query, pins limit and swaps in its own cursor. It returns
// "" when there is neither neighbor.
func LinkHeader(baseURL string, query url.Values, limit int, next, prev string) string {
	var b strings.Builder
	for _, rel := range [...]struct{ name, cursor string }{{"next", next}, {"prev", prev}} {
		if rel.cursor == "" {
			continue
		}
		// Shallow copy is enough: Set replaces slices rather than mutating them.
		q := maps.Clone(query)
		if q == nil {
			q = url.Values{}
		}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("cursor", rel.cursor)

		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString("<" + baseURL + "?" + q.Encode() + `>; rel="` + rel.name + `"`)
	}
	return b.String()
}
