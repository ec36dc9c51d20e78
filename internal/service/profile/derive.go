package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DOBLayout is the DD/MM/YYYY layout used for dates of birth.
const DOBLayout = "02/01/2006"

const maxAgeDigits = 3

const maxPhoneDigits = 10

var dobPattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)

// ParseDOB parses text strictly as DD/MM/YYYY in loc (UTC when nil).
// Dates that do not exist, such as 31/02/2020, are rejected.
func ParseDOB(text string, loc *time.Location) (time.Time, bool) {
	m := dobPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 1 || month < 1 || month > 12 || day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), true
}

// FormatDOB renders t as DD/MM/YYYY.
func FormatDOB(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%02d/%02d/%04d", d, int(m), y)
}

// AgeFromDOB returns the whole years between dob and today, one less when
// today's month and day come before the birthday. It returns "" when dob is
// not a valid date or the age is not positive.
func AgeFromDOB(dob string, today time.Time) string {
	age, ok := ageFromDOB(dob, today)
	if !ok {
		return ""
	}
	return strconv.Itoa(age)
}

func ageFromDOB(dob string, today time.Time) (int, bool) {
	born, ok := ParseDOB(dob, today.Location())
	if !ok {
		return 0, false
	}
	ty, tm, td := today.Date()
	by, bm, bd := born.Date()
	age := ty - by
	if tm < bm || (tm == bm && td < bd) {
		age--
	}
	if age <= 0 {
		return 0, false
	}
	return age, true
}

// DOBFromAge returns today's month and day, age years back, as DD/MM/YYYY.
// 29 February becomes 28 February when the target year is not a leap year.
// It returns "" unless age is a positive integer.
func DOBFromAge(age string, today time.Time) string {
	n, err := strconv.Atoi(age)
	if err != nil || n <= 0 {
		return ""
	}
	ty, tm, td := today.Date()
	year := ty - n
	if year < 1 {
		return ""
	}
	if last := daysIn(tm, year); td > last {
		td = last
	}
	return FormatDOB(time.Date(year, tm, td, 0, 0, 0, 0, today.Location()))
}

// SanitizeAge keeps the digits of raw, at most three.
func SanitizeAge(raw string) string {
	return digits(raw, maxAgeDigits)
}

// SanitizePhone keeps the digits of raw, at most ten.
func SanitizePhone(raw string) string {
	return digits(raw, maxPhoneDigits)
}

func digits(raw string, limit int) string {
	out := make([]byte, 0, limit)
	for i := 0; i < len(raw) && len(out) < limit; i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return string(out)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
