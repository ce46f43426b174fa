// internal/domain/weekday.go
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Weekday is one of the seven canonical training days, numbered ISO style:
// 1 (Monday) through 7 (Sunday). The zero value is not a valid day.
type Weekday uint8

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Abbreviations in the application locale, indexed by Weekday.
var weekdayAbbrevs = [...]string{"", "Lun", "Mar", "Mie", "Jue", "Vie", "Sab", "Dom"}

// Prefixes accepted by ParseWeekday after diacritics and punctuation are stripped.
var weekdayPrefixes = []struct {
	prefix string
	day    Weekday
}{
	{"lun", Monday}, {"mon", Monday},
	{"mar", Tuesday}, {"tue", Tuesday},
	{"mie", Wednesday}, {"mir", Wednesday}, {"mia", Wednesday}, {"wed", Wednesday},
	{"jue", Thursday}, {"thu", Thursday},
	{"vie", Friday}, {"fri", Friday},
	{"sab", Saturday}, {"sat", Saturday},
	{"dom", Sunday}, {"sun", Sunday},
}

// ErrUnknownWeekday is returned by ParseWeekday for tags that match no canonical day.
var ErrUnknownWeekday = errors.New("unknown day of week")

// Weekdays lists all valid days, Monday first.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the canonical abbreviation ("Lun" ... "Dom").
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", uint8(d))
	}
	return weekdayAbbrevs[d]
}

// MarshalText renders the day as its abbreviation so JSON payloads carry "Lun", not 1.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWeekday, uint8(d))
	}
	return []byte(weekdayAbbrevs[d]), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// WeekdayOf maps a time.Weekday (Sunday = 0) onto the ISO numbering.
func WeekdayOf(wd time.Weekday) Weekday {
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// ParseWeekday normalizes a free-form day tag ("Miércoles", "mie.", "LUN", "Wed")
// to a canonical Weekday. Matching is case and accent insensitive and works on
// prefixes.
func ParseWeekday(tag string) (Weekday, error) {
	cleaned := foldTag(tag)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, tag)
	}
	for _, p := range weekdayPrefixes {
		if strings.HasPrefix(cleaned, p.prefix) {
			return p.day, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, tag)
}

func foldTag(tag string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripper, strings.TrimSpace(tag))
	if err != nil {
		folded = tag
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	for _, r := range folded {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
