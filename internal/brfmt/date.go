// Package brfmt converts dates and numbers between the storage format used
// by the whitelist API and the Brazilian display conventions shown to
// operators (dd/mm/yyyy dates, "." thousands separator).
package brfmt

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/julianstephens/authip/internal/constants"
)

// DisplayToStorage converts dd/mm/yyyy into yyyy-mm-dd.
// It returns "" if any of the three parts is missing.
func DisplayToStorage(date string) string {
	parts := strings.Split(strings.TrimSpace(date), "/")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// StorageToDisplay converts yyyy-mm-dd into dd/mm/yyyy.
// It returns "" if any of the three parts is missing.
func StorageToDisplay(date string) string {
	parts := strings.Split(strings.TrimSpace(date), "-")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

// SplitDateTime splits a stored "yyyy-mm-dd HH:MM:SS" value into a display
// date and its time. Missing times default to midnight. A date part that is
// already in display form is returned unchanged.
func SplitDateTime(value string) (date, clock string) {
	value = normalizeStorage(value)
	if value == "" {
		return "", constants.MidnightTime
	}

	datePart, timePart, hasTime := strings.Cut(value, " ")
	if strings.Contains(datePart, "-") {
		datePart = StorageToDisplay(datePart)
	}
	if !hasTime || strings.TrimSpace(timePart) == "" {
		return datePart, constants.MidnightTime
	}
	return datePart, strings.TrimSpace(timePart)
}

// FormatDateTime renders a stored date-time as "dd/mm/yyyy HH:MM".
func FormatDateTime(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	date, clock := SplitDateTime(value)
	if date == "" {
		return ""
	}
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return date
	}
	return date + " " + parts[0] + ":" + parts[1]
}

// FormatDate renders only the date of a stored value as dd/mm/yyyy.
func FormatDate(value string) string {
	date, _ := SplitDateTime(value)
	return date
}

// JoinDateTime combines a display date and a clock time into the storage
// form "yyyy-mm-dd HH:MM:SS". An empty clock means midnight and an HH:MM
// clock gets zero seconds.
func JoinDateTime(date, clock string) string {
	storage := DisplayToStorage(date)
	if storage == "" {
		return ""
	}
	clock = strings.TrimSpace(clock)
	switch strings.Count(clock, ":") {
	case 0:
		clock = constants.MidnightTime
	case 1:
		clock += ":00"
	}
	return storage + " " + clock
}

// ApplyDateMask formats typed input as a dd/mm/yyyy date, inserting slashes
// as digits arrive. Non-digits are dropped and at most 8 digits are kept.
func ApplyDateMask(input string) string {
	digits := onlyDigits(input)
	if len(digits) > 8 {
		digits = digits[:8]
	}
	if len(digits) > 4 {
		return digits[:2] + "/" + digits[2:4] + "/" + digits[4:]
	}
	if len(digits) > 2 {
		return digits[:2] + "/" + digits[2:]
	}
	return digits
}

// ValidDisplayDate reports whether s is a real calendar date in dd/mm/yyyy.
func ValidDisplayDate(s string) bool {
	_, err := time.Parse(constants.DisplayDateFormat, strings.TrimSpace(s))
	return err == nil
}

// ValidClock reports whether s is an HH:MM or HH:MM:SS time.
func ValidClock(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(constants.DisplayTimeFormat, s); err == nil {
		return true
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// DefaultExpiration returns the create form's default expiration date.
func DefaultExpiration(now time.Time) string {
	return now.AddDate(0, 0, constants.DefaultExpirationDays).Format(constants.DisplayDateFormat)
}

// NowStorage formats t as "yyyy-mm-dd HH:MM:SS" in the API's timezone.
func NowStorage(t time.Time) string {
	return t.In(Location()).Format(constants.StorageDateTimeFormat)
}

// DisplayInstant renders t as "dd/mm/yyyy HH:MM:SS" in the API's timezone.
func DisplayInstant(t time.Time) string {
	date, clock := SplitDateTime(NowStorage(t))
	return date + " " + clock
}

// ParseStorage parses a stored date or date-time in the API's timezone.
func ParseStorage(value string) (time.Time, error) {
	value = normalizeStorage(value)
	layout := constants.StorageDateTimeFormat
	if !strings.Contains(value, " ") {
		layout = constants.StorageDateFormat
	} else if strings.Count(value, ":") == 1 {
		layout = "2006-01-02 15:04"
	}
	return time.ParseInLocation(layout, value, Location())
}

// Location returns the API's timezone, falling back to a fixed UTC-3 zone.
func Location() *time.Location {
	loc, err := time.LoadLocation(constants.APITimezone)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// normalizeStorage rewrites RFC 3339 timestamps, which some deployments of
// the API return, into the storage form.
func normalizeStorage(value string) string {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "T") {
		return value
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return t.In(Location()).Format(constants.StorageDateTimeFormat)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
