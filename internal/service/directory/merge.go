package directory

import "strings"

// Company is shown for every row of the users listing.
const Company = "Hive Solutions"

// Source records where a listing row came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Row is one line of the users listing.
type Row struct {
	ID       int
	Name     string
	Username string
	Email    string
	Phone    string
	Company  string
	Source   Source
}

// Merge lists remote users first, then local ones, numbering rows from 1.
func Merge(remote, local []User) []Row {
	rows := make([]Row, 0, len(remote)+len(local))
	for _, u := range remote {
		rows = append(rows, toRow(len(rows)+1, u, SourceRemote))
	}
	for _, u := range local {
		rows = append(rows, toRow(len(rows)+1, u, SourceLocal))
	}
	return rows
}

func toRow(id int, u User, src Source) Row {
	username := ""
	if fields := strings.Fields(u.Name); len(fields) > 0 {
		username = fields[0]
	}
	return Row{
		ID:       id,
		Name:     u.Name,
		Username: username,
		Email:    u.Email,
		Phone:    u.Phone,
		Company:  Company,
		Source:   src,
	}
}
