package routes

import (
	"net/url"

	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/hive-profiles/internal/http/v1/forms"
	"github.com/janisto/hive-profiles/internal/http/v1/profile"
	"github.com/janisto/hive-profiles/internal/http/v1/users"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
	"github.com/janisto/hive-profiles/internal/service/directory"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

// Services are the dependencies of the v1 handlers.
type Services struct {
	Profiles  *profilesvc.Store
	Validator *profilesvc.Validator
	Forms     *profilesvc.FormRegistry
	Directory directory.Service
	Metrics   *metrics.Metrics
	Clock     timeutil.Clock
}

// Register wires all HTTP routes into the provided API router.
func Register(api huma.API, svc Services) {
	prefix := apiPrefix(api)

	profile.Register(api, svc.Profiles, svc.Validator, svc.Clock, prefix)
	forms.Register(api, svc.Forms, prefix)
	users.Register(api, svc.Directory, svc.Profiles, svc.Metrics, prefix)
}

func apiPrefix(api huma.API) string {
	for _, s := range api.OpenAPI().Servers {
		if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
			return u.Path
		}
	}
	return ""
}
