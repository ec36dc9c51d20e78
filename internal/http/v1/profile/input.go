package profile

import "github.com/janisto/hive-profiles/internal/platform/pagination"

// ProfileListInput for GET /profiles
type ProfileListInput struct {
	pagination.Params
}

// ProfileGetInput for GET /profiles/{profileId}
type ProfileGetInput struct {
	ProfileID string `path:"profileId" maxLength:"64" doc:"Record identifier" example:"0b9c4d1e-6f0a-4d5e-9a51-3c2f8e7d6b10"`
}

// ProfileLatestInput for GET /profiles/latest (no parameters)
type ProfileLatestInput struct{}

// DeriveInput for POST /profiles/derive
type DeriveInput struct {
	Body struct {
		Age *string `json:"age,omitempty" maxLength:"16" doc:"Age to derive a date of birth from" example:"23"`
		DOB *string `json:"dob,omitempty" maxLength:"32" doc:"Date of birth to derive an age from" example:"02/06/2000"`
	}
}

// ValidateInput for POST /profiles/validate
type ValidateInput struct {
	Body Draft
}
