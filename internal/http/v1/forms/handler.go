// Package forms exposes profile-entry sessions: a draft edited field by
// field and submitted once it passes validation.
package forms

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"github.com/janisto/hive-profiles/internal/http/v1/profile"
	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

type fieldUpdate struct {
	field profilesvc.Field
	value *string
}

// Registry holds the open forms.
type Registry interface {
	Create() *profilesvc.Form
	Get(id string) (*profilesvc.Form, error)
	Delete(id string) error
}

// Register registers form endpoints.
func Register(api huma.API, registry Registry, prefix string) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-form",
		Method:        http.MethodPost,
		Path:          "/forms",
		Summary:       "Open a profile form",
		Description:   "Opens an empty form, or one prefilled from a saved record when editId is given.",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *FormCreateInput) (*FormCreateOutput, error) {
		form := registry.Create()
		if input.Body != nil && input.Body.EditID != "" {
			if err := form.Load(ctx, input.Body.EditID); err != nil {
				_ = registry.Delete(form.ID())
				return nil, mapServiceError(ctx, err)
			}
		}
		applog.LogDebug(ctx, "form opened", zap.String("formId", form.ID()))
		return &FormCreateOutput{
			Location: prefix + "/forms/" + form.ID(),
			Body:     ToHTTPForm(form.Snapshot()),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-form",
		Method:      http.MethodGet,
		Path:        "/forms/{formId}",
		Summary:     "Get a profile form",
		Description: "Returns the draft, the errors from the last submission and whether the email check is pending.",
		Tags:        []string{"Forms"},
	}, func(ctx context.Context, input *FormGetInput) (*FormGetOutput, error) {
		form, err := registry.Get(input.FormID)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		return &FormGetOutput{Body: ToHTTPForm(form.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-form",
		Method:      http.MethodPatch,
		Path:        "/forms/{formId}",
		Summary:     "Edit form fields",
		Description: "Sets the given fields. Setting age fills dob and setting dob fills age, so the two cannot be sent together. " +
			"Rejected while a submission is running.",
		Tags: []string{"Forms"},
	}, func(ctx context.Context, input *FormPatchInput) (*FormGetOutput, error) {
		b := input.Body
		if b.Age != nil && b.DOB != nil {
			return nil, huma.Error422UnprocessableEntity("age and dob cannot be set together")
		}
		var values []profilesvc.FieldValue
		for _, u := range []fieldUpdate{
			{profilesvc.FieldName, b.Name},
			{profilesvc.FieldAge, b.Age},
			{profilesvc.FieldDOB, b.DOB},
			{profilesvc.FieldEmail, b.Email},
			{profilesvc.FieldPhone, b.Phone},
			{profilesvc.FieldGender, b.Gender},
		} {
			if u.value != nil {
				values = append(values, profilesvc.FieldValue{Field: u.field, Value: *u.value})
			}
		}
		if len(values) == 0 {
			return nil, huma.Error422UnprocessableEntity("at least one field is required")
		}

		form, err := registry.Get(input.FormID)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		if err := form.SetMany(values...); err != nil {
			return nil, mapServiceError(ctx, err)
		}
		return &FormGetOutput{Body: ToHTTPForm(form.Snapshot())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-form",
		Method:        http.MethodDelete,
		Path:          "/forms/{formId}",
		Summary:       "Discard a profile form",
		Description:   "Drops the form. Saved records are not affected.",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *FormDeleteInput) (*FormDeleteOutput, error) {
		if err := registry.Delete(input.FormID); err != nil {
			return nil, mapServiceError(ctx, err)
		}
		return &FormDeleteOutput{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-form",
		Method:      http.MethodPost,
		Path:        "/forms/{formId}/submit",
		Summary:     "Submit a profile form",
		Description: "Validates every field, checks the email is deliverable, then appends the profile. " +
			"A submit sent while one is running is rejected and changes nothing.",
		Tags:          []string{"Forms"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *FormSubmitInput) (*FormSubmitOutput, error) {
		form, err := registry.Get(input.FormID)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		result, err := form.Submit(ctx)
		if err != nil {
			return nil, mapServiceError(ctx, err)
		}
		if !result.Submitted {
			return nil, huma.Error422UnprocessableEntity("profile has invalid fields", profile.ErrorDetails(result.Errors)...)
		}
		applog.LogInfo(ctx, "profile submitted",
			zap.String("formId", form.ID()),
			zap.String("profileId", result.Profile.ID),
		)
		return &FormSubmitOutput{
			Location: prefix + "/profiles/" + result.Profile.ID,
			Body: Submission{
				Profile:      profile.ToHTTPProfile(result.Profile),
				RedirectTo:   result.RedirectTo,
				DisplayForMs: result.DisplayFor.Milliseconds(),
			},
		}, nil
	})
}

func mapServiceError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, profilesvc.ErrFormNotFound):
		return huma.Error404NotFound("form not found")
	case errors.Is(err, profilesvc.ErrNotFound):
		return huma.Error404NotFound("profile not found")
	case errors.Is(err, profilesvc.ErrSubmitInProgress):
		return huma.Error409Conflict("submission already in progress")
	case errors.Is(err, profilesvc.ErrFormLocked):
		return huma.Error409Conflict("form is locked while the email check runs")
	case errors.Is(err, profilesvc.ErrFormSubmitted):
		return huma.Error409Conflict("form already submitted")
	default:
		applog.LogError(ctx, "form operation failed", err)
		return huma.Error500InternalServerError("internal error")
	}
}
