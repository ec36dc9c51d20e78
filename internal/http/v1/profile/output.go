package profile

// ProfileListData is the response body containing one page of profiles.
type ProfileListData struct {
	Profiles []Profile `json:"profiles" doc:"Profiles in insertion order"`
	Total    int       `json:"total"    doc:"Total number of saved profiles" example:"3"`
}

// ProfileListOutput for GET /profiles
type ProfileListOutput struct {
	Link string `header:"Link" doc:"RFC 8288 pagination links"`
	Body ProfileListData
}

// ProfileGetOutput for GET /profiles/{profileId} and GET /profiles/latest
type ProfileGetOutput struct {
	Body Profile
}

// DeriveOutput for POST /profiles/derive
type DeriveOutput struct {
	Body struct {
		Age string `json:"age" doc:"Derived or sanitized age, empty when invalid" example:"23"`
		DOB string `json:"dob" doc:"Derived or given date of birth, empty when invalid" example:"02/06/2000"`
	}
}

// ValidateOutput for POST /profiles/validate
type ValidateOutput struct {
	Body struct {
		Valid  bool         `json:"valid"  doc:"True when every rule passed" example:"false"`
		Errors []FieldError `json:"errors" doc:"Failing fields in form order"`
	}
}
