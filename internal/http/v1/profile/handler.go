package profile

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/pagination"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

const cursorType = "profile"

// Reader is the read side of the profile collection.
type Reader interface {
	ReadAll(ctx context.Context) ([]profilesvc.Profile, error)
	ReadLatest(ctx context.Context) (profilesvc.Profile, bool, error)
	Get(ctx context.Context, id string) (profilesvc.Profile, error)
}

// Validator checks drafts.
type Validator interface {
	Validate(ctx context.Context, d profilesvc.Draft, now time.Time) profilesvc.Errors
}

// Register registers profile endpoints.
func Register(api huma.API, store Reader, validator Validator, clock timeutil.Clock, prefix string) {
	if clock == nil {
		clock = timeutil.SystemClock
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-profiles",
		Method:      http.MethodGet,
		Path:        "/profiles",
		Summary:     "List saved profiles",
		Description: "Returns saved profiles in insertion order. Use the cursor from the Link header to navigate between pages.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *ProfileListInput) (*ProfileListOutput, error) {
		cursor, err := pagination.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid cursor format")
		}
		all, err := store.ReadAll(ctx)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		result, err := pagination.Paginate(
			all,
			cursor,
			input.PageSize(),
			cursorType,
			func(p profilesvc.Profile) string { return p.ID },
			prefix+"/profiles",
			url.Values{},
		)
		if err != nil {
			return nil, huma.Error400BadRequest("cursor does not match this listing")
		}

		out := make([]Profile, 0, len(result.Items))
		for _, p := range result.Items {
			out = append(out, ToHTTPProfile(p))
		}
		return &ProfileListOutput{
			Link: result.LinkHeader,
			Body: ProfileListData{Profiles: out, Total: result.Total},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-latest-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/latest",
		Summary:     "Get the most recently saved profile",
		Description: "Returns the last record appended to the collection.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, _ *ProfileLatestInput) (*ProfileGetOutput, error) {
		p, ok, err := store.ReadLatest(ctx)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		if !ok {
			return nil, huma.Error404NotFound("no profile found")
		}
		return &ProfileGetOutput{Body: ToHTTPProfile(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/{profileId}",
		Summary:     "Get a saved profile",
		Description: "Returns one saved record by identifier.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *ProfileGetInput) (*ProfileGetOutput, error) {
		p, err := store.Get(ctx, input.ProfileID)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		return &ProfileGetOutput{Body: ToHTTPProfile(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "derive-profile-dates",
		Method:      http.MethodPost,
		Path:        "/profiles/derive",
		Summary:     "Derive age from date of birth or the reverse",
		Description: "Give exactly one of age or dob. An age yields today's day and month that many years back; a date of birth yields the age in whole years.",
		Tags:        []string{"Profiles"},
	}, func(_ context.Context, input *DeriveInput) (*DeriveOutput, error) {
		age, dob := input.Body.Age, input.Body.DOB
		if (age == nil) == (dob == nil) {
			return nil, huma.Error422UnprocessableEntity("provide exactly one of age or dob")
		}
		now := clock()
		out := &DeriveOutput{}
		if age != nil {
			out.Body.Age = profilesvc.SanitizeAge(*age)
			out.Body.DOB = profilesvc.DOBFromAge(out.Body.Age, now)
		} else {
			out.Body.DOB = strings.TrimSpace(*dob)
			out.Body.Age = profilesvc.AgeFromDOB(out.Body.DOB, now)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-profile",
		Method:      http.MethodPost,
		Path:        "/profiles/validate",
		Summary:     "Validate a draft without saving it",
		Description: "Runs every field rule and, when the email is well formed, one deliverability lookup.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *ValidateInput) (*ValidateOutput, error) {
		errs := validator.Validate(ctx, input.Body.ToServiceDraft(), clock())
		out := &ValidateOutput{}
		out.Body.Valid = errs.Empty()
		out.Body.Errors = ToFieldErrors(errs)
		return out, nil
	})
}

func mapServiceError(ctx context.Context, err error) error {
	if errors.Is(err, profilesvc.ErrNotFound) {
		return huma.Error404NotFound("profile not found")
	}
	applog.LogError(ctx, "profile store failure", err)
	return huma.Error500InternalServerError("internal error")
}
