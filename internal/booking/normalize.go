package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var dateLayouts = []string{
	"2006-1-2",
	"2-1-2006",
	"2.1.2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 January, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"Monday, 2 January 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"15.04",
	"3:04 PM",
	"3:04PM",
	"3.04 PM",
	"3.04PM",
	"3 PM",
	"3PM",
}

// NormalizeDate converts common date spellings to YYYY-MM-DD. Slash dates
// are read as day/month/year unless the first part has four digits. Values
// that cannot be parsed are returned unchanged.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}
	if isoDatePattern.MatchString(s) {
		return s
	}
	if parts := strings.Split(s, "/"); len(parts) == 3 && allDigits(parts) {
		day, month, year := parts[0], parts[1], parts[2]
		if len(day) == 4 {
			year, day = day, year
		}
		if len(year) == 2 {
			year = "20" + year
		}
		if inRange(month, 1, 12) && inRange(day, 1, 31) && len(year) == 4 {
			return fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
		}
		return raw
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

// NormalizeTime converts 12h and 24h spellings to HH:MM. Values that cannot
// be parsed are returned unchanged.
func NormalizeTime(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return raw
	}
	s = strings.NewReplacer("A.M.", "AM", "P.M.", "PM", "A.M", "AM", "P.M", "PM").Replace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return raw
}

// NormalizeContact strips a WhatsApp address down to its digits. Input with
// no digits is returned trimmed.
func NormalizeContact(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "whatsapp:")
	if at := strings.Index(s, "@"); at >= 0 {
		s = s[:at]
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return strings.TrimSpace(raw)
	}
	return b.String()
}

func allDigits(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func inRange(s string, lo, hi int) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n >= lo && n <= hi
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
