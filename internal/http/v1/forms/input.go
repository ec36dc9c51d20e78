package forms

// FormCreateInput for POST /forms
type FormCreateInput struct {
	Body *struct {
		EditID string `json:"editId,omitempty" maxLength:"64" doc:"Saved record to load for correction" example:"0b9c4d1e-6f0a-4d5e-9a51-3c2f8e7d6b10"`
	} `required:"false"`
}

// FormGetInput for GET /forms/{formId}
type FormGetInput struct {
	FormID string `path:"formId" maxLength:"64" doc:"Form identifier" example:"6a1f3c2e-2b7d-4b8e-9f0a-1d2c3b4a5e6f"`
}

// FormPatchInput for PATCH /forms/{formId}
type FormPatchInput struct {
	FormID string `path:"formId" maxLength:"64" doc:"Form identifier" example:"6a1f3c2e-2b7d-4b8e-9f0a-1d2c3b4a5e6f"`
	Body   struct {
		Name   *string `json:"name,omitempty"   maxLength:"200" doc:"Full name"                           example:"Jane Doe"`
		Age    *string `json:"age,omitempty"    maxLength:"16"  doc:"Age; also sets dob"                  example:"23"`
		DOB    *string `json:"dob,omitempty"    maxLength:"32"  doc:"Date of birth (DD/MM/YYYY); also sets age" example:"02/06/2000"`
		Email  *string `json:"email,omitempty"  maxLength:"320" doc:"Email address"                       example:"jane@example.com"`
		Phone  *string `json:"phone,omitempty"  maxLength:"32"  doc:"Phone number; digits are kept"       example:"0123456789"`
		Gender *string `json:"gender,omitempty" maxLength:"16"  doc:"Male, Female or Other"               example:"Female"`
	}
}

// FormDeleteInput for DELETE /forms/{formId}
type FormDeleteInput struct {
	FormID string `path:"formId" maxLength:"64" doc:"Form identifier" example:"6a1f3c2e-2b7d-4b8e-9f0a-1d2c3b4a5e6f"`
}

// FormSubmitInput for POST /forms/{formId}/submit
type FormSubmitInput struct {
	FormID string `path:"formId" maxLength:"64" doc:"Form identifier" example:"6a1f3c2e-2b7d-4b8e-9f0a-1d2c3b4a5e6f"`
}
