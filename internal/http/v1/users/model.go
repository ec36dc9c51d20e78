package users

import "github.com/janisto/hive-profiles/internal/service/directory"

// User is one row of the users table.
type User struct {
	ID       int    `json:"id"       doc:"Row number, from 1"           example:"1"`
	Name     string `json:"name"     doc:"Full name"                    example:"George Bluth"`
	Username string `json:"username" doc:"First word of the name"       example:"George"`
	Email    string `json:"email"    doc:"Email address"                example:"george.bluth@reqres.in"`
	Phone    string `json:"phone"    doc:"Phone number, - when unknown" example:"-"`
	Company  string `json:"company"  doc:"Company"                      example:"Hive Solutions"`
	Source   string `json:"source"   doc:"Where the row came from"      example:"remote" enum:"remote,local"`
}

// ToHTTPUser converts a listing row.
func ToHTTPUser(r directory.Row) User {
	return User{
		ID:       r.ID,
		Name:     r.Name,
		Username: r.Username,
		Email:    r.Email,
		Phone:    r.Phone,
		Company:  r.Company,
		Source:   string(r.Source),
	}
}
