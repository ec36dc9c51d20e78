package pagination

// DefaultLimit is the page size used when the client does not ask for one.
// Six rows matches the users table's initial page.
const DefaultLimit = 6

// Params embeds into huma input structs for cursor pagination.
type Params struct {
	Cursor string `query:"cursor" doc:"Opaque pagination cursor from a previous Link header"`
	Limit  int    `query:"limit"  doc:"Maximum rows per page"                               default:"6" minimum:"1" maximum:"100"`
}

// PageSize returns Limit, or DefaultLimit when it is unset.
func (p Params) PageSize() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}
	return p.Limit
}
