package users

// UserListData is the response body containing one page of users.
type UserListData struct {
	Users []User `json:"users" doc:"Remote users first, then saved profiles"`
	Total int    `json:"total" doc:"Total number of rows"                    example:"14"`
}

// UserListOutput for GET /users
type UserListOutput struct {
	Link string `header:"Link" doc:"RFC 8288 pagination links"`
	Body UserListData
}
