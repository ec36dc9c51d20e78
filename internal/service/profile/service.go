// Package profile holds the user-profile domain: age and date-of-birth
// derivation, validation, the append-only profile collection and the form
// sessions that drive submissions.
package profile

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Service errors
var (
	ErrNotFound         = errors.New("profile not found")
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrFormLocked       = errors.New("form is locked while the email check runs")
	ErrFormSubmitted    = errors.New("form already submitted")
	ErrUnknownField     = errors.New("unknown profile field")
	ErrFormNotFound     = errors.New("form not found")
)

// Gender is the closed set of accepted gender values.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Genders lists the accepted values in display order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

// Valid reports whether g is one of Genders.
func (g Gender) Valid() bool {
	return slices.Contains(Genders, g)
}

// Field names a profile attribute.
type Field string

const (
	FieldName   Field = "name"
	FieldAge    Field = "age"
	FieldDOB    Field = "dob"
	FieldEmail  Field = "email"
	FieldPhone  Field = "phone"
	FieldGender Field = "gender"
)

// Fields lists every field in form order.
var Fields = []Field{FieldName, FieldAge, FieldDOB, FieldEmail, FieldPhone, FieldGender}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(Fields, f) {
		return "", ErrUnknownField
	}
	return f, nil
}

// ErrorKind classifies a field error.
type ErrorKind string

const (
	KindRequired      ErrorKind = "required"
	KindFormatInvalid ErrorKind = "format_invalid"
	KindRangeInvalid  ErrorKind = "range_invalid"
	KindMismatch      ErrorKind = "cross_field_mismatch"
	KindCheckFailed   ErrorKind = "external_check_failed"
	KindCheckNegative ErrorKind = "external_check_negative"
)

// FieldError is the message shown next to one field.
type FieldError struct {
	Kind    ErrorKind
	Message string
}

// Errors maps each failing field to its error. An empty map means the draft is acceptable.
type Errors map[Field]FieldError

// Empty reports whether no field failed.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Fields returns the failing fields in form order.
func (e Errors) Fields() []Field {
	out := make([]Field, 0, len(e))
	for _, f := range Fields {
		if _, ok := e[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Draft is the profile being edited. Every value is kept as entered.
type Draft struct {
	Name   string
	Age    string
	DOB    string
	Email  string
	Phone  string
	Gender string
}

// Get returns the value of f.
func (d Draft) Get(f Field) string {
	switch f {
	case FieldName:
		return d.Name
	case FieldAge:
		return d.Age
	case FieldDOB:
		return d.DOB
	case FieldEmail:
		return d.Email
	case FieldPhone:
		return d.Phone
	case FieldGender:
		return d.Gender
	default:
		return ""
	}
}

// Profile is a saved record.
type Profile struct {
	ID      string
	Name    string
	Age     int
	DOB     string
	Email   string
	Phone   string
	Gender  Gender
	SavedAt time.Time
}

// Draft returns p as an editable draft.
func (p Profile) Draft() Draft {
	age := ""
	if p.Age > 0 {
		age = strconv.Itoa(p.Age)
	}
	return Draft{
		Name:   p.Name,
		Age:    age,
		DOB:    p.DOB,
		Email:  p.Email,
		Phone:  p.Phone,
		Gender: string(p.Gender),
	}
}

// Initials returns up to two uppercase letters for an avatar.
func (p Profile) Initials() string {
	return Initials(p.Name)
}

// FromDraft builds the record saved for a validated draft.
func FromDraft(d Draft) Profile {
	age, _ := strconv.Atoi(strings.TrimSpace(d.Age))
	return Profile{
		Name:   strings.TrimSpace(d.Name),
		Age:    age,
		DOB:    strings.TrimSpace(d.DOB),
		Email:  strings.TrimSpace(d.Email),
		Phone:  d.Phone,
		Gender: Gender(d.Gender),
	}
}

// Initials takes the first letter of the first one or two words of name.
func Initials(name string) string {
	parts := strings.Fields(name)
	var b strings.Builder
	for i, part := range parts {
		if i == 2 {
			break
		}
		r := []rune(part)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}
