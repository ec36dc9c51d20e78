package profile

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	applog "github.com/janisto/hive-profiles/internal/platform/logging"
	"github.com/janisto/hive-profiles/internal/platform/metrics"
	"github.com/janisto/hive-profiles/internal/platform/timeutil"
	"github.com/janisto/hive-profiles/internal/service/deliverability"
)

// Field error messages.
const (
	MsgNameRequired       = "Name is required"
	MsgAgeInvalid         = "Valid age required"
	MsgDOBInvalid         = "Valid past date required (DD/MM/YYYY)"
	MsgAgeDOBMismatch     = "Age and DOB mismatch"
	MsgEmailRequired      = "Email is required"
	MsgEmailFormat        = "Enter a valid email format"
	MsgEmailUndeliverable = "Email does not exist or is not deliverable"
	MsgEmailCheckFailed   = "Could not validate email, try again later"
	MsgPhoneInvalid       = "Valid 10-digit phone required"
	MsgGenderRequired     = "Gender is required"
	MsgGenderInvalid      = "Gender must be Male, Female or Other"
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// EmailChecker asks whether an address can receive mail.
// deliverability.Service satisfies it.
type EmailChecker interface {
	Check(ctx context.Context, email string) (deliverability.Verdict, error)
}

// Validator checks drafts. The zero value has no email checker and reports
// every lookup as failed.
type Validator struct {
	checker EmailChecker
	metrics *metrics.Metrics
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorMetrics records email lookups on m.
func WithValidatorMetrics(m *metrics.Metrics) ValidatorOption {
	return func(v *Validator) {
		v.metrics = m
	}
}

// NewValidator creates a Validator that uses checker for the email lookup.
func NewValidator(checker EmailChecker, opts ...ValidatorOption) *Validator {
	v := &Validator{checker: checker}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every synchronous rule and then, if the email is well formed,
// one deliverability lookup. Other fields failing does not skip the lookup.
func (v *Validator) Validate(ctx context.Context, d Draft, now time.Time) Errors {
	errs := ValidateFields(d, now)
	if _, bad := errs[FieldEmail]; bad {
		return errs
	}
	if fe, bad := v.CheckEmail(ctx, strings.TrimSpace(d.Email)); bad {
		errs[FieldEmail] = fe
	}
	return errs
}

// CheckEmail performs exactly one deliverability lookup. A lookup that could
// not complete is reported as KindCheckFailed, never as undeliverable.
func (v *Validator) CheckEmail(ctx context.Context, email string) (FieldError, bool) {
	start := time.Now()
	verdict := deliverability.CheckFailed
	var err error
	if v != nil && v.checker != nil {
		verdict, err = v.checker.Check(ctx, email)
	} else {
		err = deliverability.ErrNotConfigured
	}
	if err != nil {
		verdict = deliverability.CheckFailed
	}
	if v != nil {
		v.metrics.ObserveEmailCheck(string(verdict), start)
	}

	switch verdict {
	case deliverability.Deliverable:
		return FieldError{}, false
	case deliverability.Undeliverable:
		return FieldError{Kind: KindCheckNegative, Message: MsgEmailUndeliverable}, true
	default:
		applog.LogWarn(ctx, "email deliverability check failed", zap.Error(err))
		return FieldError{Kind: KindCheckFailed, Message: MsgEmailCheckFailed}, true
	}
}

// draftRules is the draft as checked by fieldValidate. Every field but phone
// and gender is trimmed first.
type draftRules struct {
	Name   string `json:"name"   validate:"required"`
	Age    string `json:"age"    validate:"required,age_int,age_positive"`
	DOB    string `json:"dob"    validate:"required,dob,not_future"`
	Email  string `json:"email"  validate:"required,profile_email"`
	Phone  string `json:"phone"  validate:"required,len=10,digits"`
	Gender string `json:"gender" validate:"required,oneof=Male Female Other"`
}

type nowKey struct{}

var fieldValidate = newFieldValidate()

func newFieldValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		return name
	})
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("age_int", func(fl validator.FieldLevel) bool {
		_, err := strconv.Atoi(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidation("age_positive", func(fl validator.FieldLevel) bool {
		n, _ := strconv.Atoi(fl.Field().String())
		return n > 0
	}))
	must(v.RegisterValidationCtx("dob", func(ctx context.Context, fl validator.FieldLevel) bool {
		_, ok := ParseDOB(fl.Field().String(), nowFrom(ctx).Location())
		return ok
	}))
	// Compared by calendar day, so today's date is never "in the future".
	must(v.RegisterValidationCtx("not_future", func(ctx context.Context, fl validator.FieldLevel) bool {
		now := nowFrom(ctx)
		born, _ := ParseDOB(fl.Field().String(), now.Location())
		return !born.After(timeutil.Midnight(now))
	}))
	must(v.RegisterValidation("profile_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}))
	must(v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	}))
	return v
}

func nowFrom(ctx context.Context) time.Time {
	if now, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return now
	}
	return time.Now()
}

// tagKind maps a failed rule onto the error kind reported for it.
func tagKind(tag string) ErrorKind {
	switch tag {
	case "required":
		return KindRequired
	case "age_positive", "not_future":
		return KindRangeInvalid
	default:
		return KindFormatInvalid
	}
}

// fieldMessage picks the message for a failed rule on f.
func fieldMessage(f Field, kind ErrorKind) string {
	switch f {
	case FieldName:
		return MsgNameRequired
	case FieldAge:
		return MsgAgeInvalid
	case FieldDOB:
		return MsgDOBInvalid
	case FieldEmail:
		if kind == KindRequired {
			return MsgEmailRequired
		}
		return MsgEmailFormat
	case FieldPhone:
		return MsgPhoneInvalid
	default:
		if kind == KindRequired {
			return MsgGenderRequired
		}
		return MsgGenderInvalid
	}
}

// ValidateFields applies every synchronous rule, including email syntax.
// All fields are checked so several errors can surface together.
func ValidateFields(d Draft, now time.Time) Errors {
	rules := draftRules{
		Name:   strings.TrimSpace(d.Name),
		Age:    strings.TrimSpace(d.Age),
		DOB:    strings.TrimSpace(d.DOB),
		Email:  strings.TrimSpace(d.Email),
		Phone:  d.Phone,
		Gender: d.Gender,
	}

	errs := Errors{}
	ctx := context.WithValue(context.Background(), nowKey{}, now)
	if err := fieldValidate.StructCtx(ctx, rules); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			applog.LogError(ctx, "profile rules rejected the draft", err)
			return errs
		}
		for _, fe := range verrs {
			f := Field(fe.Field())
			kind := tagKind(fe.Tag())
			errs[f] = FieldError{Kind: kind, Message: fieldMessage(f, kind)}
		}
	}

	_, ageBad := errs[FieldAge]
	_, dobBad := errs[FieldDOB]
	if !ageBad && !dobBad {
		age, _ := strconv.Atoi(rules.Age)
		if derived, ok := ageFromDOB(rules.DOB, now); !ok || derived != age {
			mismatch := FieldError{Kind: KindMismatch, Message: MsgAgeDOBMismatch}
			errs[FieldAge] = mismatch
			errs[FieldDOB] = mismatch
		}
	}
	return errs
}
