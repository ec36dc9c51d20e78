package forms

import (
	"github.com/janisto/hive-profiles/internal/http/v1/profile"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
	profilesvc "github.com/janisto/hive-profiles/internal/service/profile"
)

// Form is the state of one profile-entry session.
type Form struct {
	ID            string               `json:"id"                     doc:"Form identifier"                                 example:"6a1f3c2e-2b7d-4b8e-9f0a-1d2c3b4a5e6f"`
	State         string               `json:"state"                  doc:"Submission phase"                                example:"editing" enum:"editing,validating_sync,validating_email,submitted"`
	CheckingEmail bool                 `json:"checkingEmail"          doc:"True while the deliverability lookup is pending" example:"false"`
	EditingID     string               `json:"editingId,omitempty"    doc:"Saved record the draft was loaded from"`
	Draft         profile.Draft        `json:"draft"                  doc:"Current field values"`
	Errors        []profile.FieldError `json:"errors"                 doc:"Errors from the last submission, in form order"`
	Saved         *profile.Profile     `json:"saved,omitempty"        doc:"Record appended by the successful submission"`
	RedirectTo    string               `json:"redirectTo,omitempty"   doc:"Where to navigate once the confirmation has shown" example:"/"`
	DisplayUntil  *timeutil.Time       `json:"displayUntil,omitempty" doc:"End of the confirmation display"`
	UpdatedAt     timeutil.Time        `json:"updatedAt"              doc:"Last change"                                     example:"2024-06-01T10:30:00.000Z"`
}

// Submission is the body of a successful submit.
type Submission struct {
	Profile      profile.Profile `json:"profile"      doc:"Appended record"`
	RedirectTo   string          `json:"redirectTo"   doc:"Where to navigate next"                 example:"/"`
	DisplayForMs int64           `json:"displayForMs" doc:"How long to show the confirmation first" example:"1500"`
}

// ToHTTPForm converts a form snapshot.
func ToHTTPForm(s profilesvc.Snapshot) Form {
	out := Form{
		ID:            s.ID,
		State:         string(s.State),
		CheckingEmail: s.CheckingEmail,
		EditingID:     s.EditingID,
		Draft:         profile.ToHTTPDraft(s.Draft),
		Errors:        profile.ToFieldErrors(s.Errors),
		RedirectTo:    s.RedirectTo,
		UpdatedAt:     timeutil.NewTime(s.UpdatedAt),
	}
	if s.Saved != nil {
		saved := profile.ToHTTPProfile(*s.Saved)
		out.Saved = &saved
		until := timeutil.NewTime(s.DisplayUntil)
		out.DisplayUntil = &until
	}
	return out
}
