package users

import "github.com/janisto/hive-profiles/internal/platform/pagination"

// UserListInput for GET /users
type UserListInput struct {
	pagination.Params
}
