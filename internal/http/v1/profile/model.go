package profile

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/janisto/hive-profiles/internal/platform/timeutil"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

// Profile represents a saved profile record.
type Profile struct {
	ID       string        `json:"id"       doc:"Record identifier"            example:"0b9c4d1e-6f0a-4d5e-9a51-3c2f8e7d6b10"`
	Name     string        `json:"name"     doc:"Full name"                    example:"Jane Doe"`
	Age      int           `json:"age"      doc:"Age in whole years"           example:"23"`
	DOB      string        `json:"dob"      doc:"Date of birth (DD/MM/YYYY)"   example:"02/06/2000"`
	Email    string        `json:"email"    doc:"Email address"                example:"jane@example.com"`
	Phone    string        `json:"phone"    doc:"10-digit phone number"        example:"0123456789"`
	Gender   string        `json:"gender"   doc:"Gender"                       example:"Female"`
	Initials string        `json:"initials" doc:"Avatar initials"              example:"JD"`
	SavedAt  timeutil.Time `json:"savedAt"  doc:"When the record was appended" example:"2024-06-01T10:30:00.000Z"`
}

// Draft is a profile as entered, before validation. Missing fields are
// reported by the field rules, not by the schema.
type Draft struct {
	Name   string `json:"name"   required:"false" maxLength:"200" doc:"Full name"                  example:"Jane Doe"`
	Age    string `json:"age"    required:"false" maxLength:"16"  doc:"Age as entered"             example:"23"`
	DOB    string `json:"dob"    required:"false" maxLength:"32"  doc:"Date of birth (DD/MM/YYYY)" example:"02/06/2000"`
	Email  string `json:"email"  required:"false" maxLength:"320" doc:"Email address"              example:"jane@example.com"`
	Phone  string `json:"phone"  required:"false" maxLength:"32"  doc:"Phone number"               example:"0123456789"`
	Gender string `json:"gender" required:"false" maxLength:"16"  doc:"Male, Female or Other"      example:"Female"`
}

// FieldError describes one failing field.
type FieldError struct {
	Field   string `json:"field"   doc:"Field name"    example:"phone"`
	Kind    string `json:"kind"    doc:"Error kind"    example:"format_invalid" enum:"required,format_invalid,range_invalid,cross_field_mismatch,external_check_failed,external_check_negative"`
	Message string `json:"message" doc:"Display text"  example:"Valid 10-digit phone required"`
}

// ToHTTPProfile converts a saved record.
func ToHTTPProfile(p profilesvc.Profile) Profile {
	return Profile{
		ID:       p.ID,
		Name:     p.Name,
		Age:      p.Age,
		DOB:      p.DOB,
		Email:    p.Email,
		Phone:    p.Phone,
		Gender:   string(p.Gender),
		Initials: p.Initials(),
		SavedAt:  timeutil.NewTime(p.SavedAt),
	}
}

// ToHTTPDraft converts a service draft.
func ToHTTPDraft(d profilesvc.Draft) Draft {
	return Draft(d)
}

// ToServiceDraft converts a request draft.
func (d Draft) ToServiceDraft() profilesvc.Draft {
	return profilesvc.Draft(d)
}

// ToFieldErrors lists errs in form order.
func ToFieldErrors(errs profilesvc.Errors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, f := range errs.Fields() {
		fe := errs[f]
		out = append(out, FieldError{Field: string(f), Kind: string(fe.Kind), Message: fe.Message})
	}
	return out
}

// ErrorDetails renders errs as problem details located at body.<field>.
func ErrorDetails(errs profilesvc.Errors) []error {
	out := make([]error, 0, len(errs))
	for _, f := range errs.Fields() {
		fe := errs[f]
		out = append(out, &huma.ErrorDetail{
			Message:  fe.Message,
			Location: "body." + string(f),
			Value:    string(fe.Kind),
		})
	}
	return out
}
