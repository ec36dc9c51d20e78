package forms

// FormCreateOutput for POST /forms (201 Created)
type FormCreateOutput struct {
	Location string `header:"Location" doc:"URL of the new form"`
	Body     Form
}

// FormGetOutput for GET and PATCH /forms/{formId}
type FormGetOutput struct {
	Body Form
}

// FormDeleteOutput for DELETE /forms/{formId} (204 No Content)
type FormDeleteOutput struct{}

// FormSubmitOutput for POST /forms/{formId}/submit (201 Created)
type FormSubmitOutput struct {
	Location string `header:"Location" doc:"URL of the appended profile"`
	Body     Submission
}
