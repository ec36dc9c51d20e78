// Package users serves the users table: the remote directory followed by
// the locally saved profiles.
package users

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/pagination"
	"github.com/janisto/hive-profiles/internal/service/directory"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

const cursorType = "user"

// MsgRemoteFailed is the detail returned when the directory cannot be listed.
const MsgRemoteFailed = "Failed to load users from API."

// LocalProfiles lists the saved profiles.
type LocalProfiles interface {
	ReadAll(ctx context.Context) ([]profilesvc.Profile, error)
}

// Register registers the users listing.
func Register(api huma.API, dir directory.Service, local LocalProfiles, m *metrics.Metrics, prefix string) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Description: "Returns the remote user directory followed by saved profiles. Use the cursor from the Link header to navigate between pages.",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UserListInput) (*UserListOutput, error) {
		cursor, err := pagination.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid cursor format")
		}

		remote, err := dir.ListUsers(ctx)
		if err != nil {
			m.IncDirectoryFetch("error")
			applog.LogWarn(ctx, "user directory unavailable", zap.Error(err))
			return nil, huma.Error502BadGateway(MsgRemoteFailed)
		}
		m.IncDirectoryFetch("ok")

		saved, err := local.ReadAll(ctx)
		if err != nil {
			applog.LogError(ctx, "profile store failure", err)
			return nil, huma.Error500InternalServerError("internal error")
		}
		localUsers := make([]directory.User, 0, len(saved))
		for _, p := range saved {
			localUsers = append(localUsers, directory.User{Name: p.Name, Email: p.Email, Phone: p.Phone})
		}

		result, err := pagination.Paginate(
			directory.Merge(remote, localUsers),
			cursor,
			input.PageSize(),
			cursorType,
			func(r directory.Row) string { return strconv.Itoa(r.ID) },
			prefix+"/users",
			url.Values{},
		)
		if err != nil {
			return nil, huma.Error400BadRequest("cursor does not match this listing")
		}

		out := make([]User, 0, len(result.Items))
		for _, r := range result.Items {
			out = append(out, ToHTTPUser(r))
		}
		return &UserListOutput{
			Link: result.LinkHeader,
			Body: UserListData{Users: out, Total: result.Total},
		}, nil
	})
}
