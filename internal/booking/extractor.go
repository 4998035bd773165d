package booking

import "strings"

// Field is one of the five canonical booking fields.
type Field string

const (
	FieldName    Field = "name"
	FieldContact Field = "contact"
	FieldSubject Field = "subject"
	FieldDate    Field = "date"
	FieldTime    Field = "time"
)

// Fields lists the canonical fields in the order they are reported.
var Fields = []Field{FieldName, FieldContact, FieldSubject, FieldDate, FieldTime}

// Label is the user-facing name of the field.
func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldContact:
		return "Mobile"
	case FieldSubject:
		return "Problem"
	case FieldDate:
		return "Date"
	case FieldTime:
		return "Time"
	}
	return string(f)
}

// labelRules is checked in order; the first rule whose keyword appears in
// the lowercased label decides the field.
var labelRules = []struct {
	field    Field
	keywords []string
}{
	{FieldName, []string{"name"}},
	{FieldContact, []string{"mobile", "phone"}},
	{FieldSubject, []string{"problem"}},
	{FieldDate, []string{"date"}},
	{FieldTime, []string{"time"}},
}

func classifyLabel(label string) (Field, bool) {
	for _, rule := range labelRules {
		for _, kw := range rule.keywords {
			if strings.Contains(label, kw) {
				return rule.field, true
			}
		}
	}
	return "", false
}

// Completeness describes how much of a booking a message carried.
type Completeness int

const (
	Unrelated Completeness = iota
	Partial
	Complete
)

func (c Completeness) String() string {
	switch c {
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	default:
		return "unrelated"
	}
}

// Candidate holds field values pulled from a single message.
type Candidate map[Field]string

// Has reports whether f carries a non-blank value.
func (c Candidate) Has(f Field) bool {
	return strings.TrimSpace(c[f]) != ""
}

// Missing returns the absent fields in canonical order.
func (c Candidate) Missing() []Field {
	var missing []Field
	for _, f := range Fields {
		if !c.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Present returns the recognized fields in canonical order.
func (c Candidate) Present() []Field {
	var present []Field
	for _, f := range Fields {
		if c.Has(f) {
			present = append(present, f)
		}
	}
	return present
}

func (c Candidate) Completeness() Completeness {
	switch n := len(c.Present()); {
	case n == len(Fields):
		return Complete
	case n > 0:
		return Partial
	default:
		return Unrelated
	}
}

// Extract reads "Label: value" lines out of free text. Lines are split on
// the first colon only, so values may contain colons. A later line for the
// same field overwrites an earlier one.
func Extract(text string) Candidate {
	c := Candidate{}
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)
		if label == "" || value == "" {
			continue
		}
		if f, ok := classifyLabel(label); ok {
			c[f] = value
		}
	}
	return c
}

// LabelExtractor adapts Extract to an injectable dependency.
type LabelExtractor struct{}

func (LabelExtractor) Extract(text string) Candidate { return Extract(text) }
