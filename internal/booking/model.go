package booking

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a booking. Any status may move to any other.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusScheduled   Status = "Scheduled"
	StatusCompleted   Status = "Completed"
	StatusCancelled   Status = "Cancelled"
	StatusRescheduled Status = "Rescheduled"
)

// Statuses lists every canonical status in display order.
var Statuses = []Status{StatusPending, StatusScheduled, StatusCompleted, StatusCancelled, StatusRescheduled}

// ParseStatus matches raw case-insensitively against the canonical statuses.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Record is a persisted booking.
type Record struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Contact       string    `json:"contact"`
	Mobile        string    `json:"mobile"`
	Subject       string    `json:"subject"`
	RequestedDate string    `json:"requested_date"`
	RequestedTime string    `json:"requested_time"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats holds booking counts taken from one snapshot.
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"by_status"`
}

func newStats() Stats {
	s := Stats{ByStatus: make(map[Status]int64, len(Statuses))}
	for _, status := range Statuses {
		s.ByStatus[status] = 0
	}
	return s
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name    *string
	Contact *string
	Mobile  *string
	Subject *string
	Date    *string
	Time    *string
	Status  *Status
}

// patchAliases maps accepted update keys onto patch fields.
var patchAliases = map[string]string{
	"name":           "name",
	"contact":        "contact",
	"phone":          "mobile",
	"mobile":         "mobile",
	"subject":        "subject",
	"problem":        "subject",
	"date":           "date",
	"requested_date": "date",
	"time":           "time",
	"requested_time": "time",
	"status":         "status",
}

// NewPatch builds a Patch from loosely keyed input. Unknown keys and blank
// values are ignored; an unrecognized status fails with ErrInvalidStatus.
// Keys are read in sorted order and the first one to set a field wins, so
// {"mobile", "phone"} always keeps mobile.
func NewPatch(fields map[string]string) (Patch, error) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var p Patch
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		field, ok := patchAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok || set[field] {
			continue
		}
		value := strings.TrimSpace(fields[key])
		if value == "" {
			continue
		}
		set[field] = true
		switch field {
		case "name":
			p.Name = &value
		case "contact":
			p.Contact = &value
		case "mobile":
			p.Mobile = &value
		case "subject":
			p.Subject = &value
		case "date":
			p.Date = &value
		case "time":
			p.Time = &value
		case "status":
			status, err := ParseStatus(value)
			if err != nil {
				return Patch{}, err
			}
			p.Status = &status
		}
	}
	return p, nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Contact == nil && p.Mobile == nil && p.Subject == nil &&
		p.Date == nil && p.Time == nil && p.Status == nil
}

// normalized returns a copy with canonical date, time and contact forms.
func (p Patch) normalized() Patch {
	out := p
	if p.Contact != nil {
		v := NormalizeContact(*p.Contact)
		out.Contact = &v
	}
	if p.Mobile != nil {
		v := NormalizeContact(*p.Mobile)
		out.Mobile = &v
	}
	if p.Date != nil {
		v := NormalizeDate(*p.Date)
		out.Date = &v
	}
	if p.Time != nil {
		v := NormalizeTime(*p.Time)
		out.Time = &v
	}
	return out
}

func (p Patch) apply(rec *Record) {
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Contact != nil {
		rec.Contact = *p.Contact
	}
	if p.Mobile != nil {
		rec.Mobile = *p.Mobile
	}
	if p.Subject != nil {
		rec.Subject = *p.Subject
	}
	if p.Date != nil {
		rec.RequestedDate = *p.Date
	}
	if p.Time != nil {
		rec.RequestedTime = *p.Time
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
}
