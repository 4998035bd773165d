package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/syncai-intake/internal/booking"
	"github.com/wolfman30/syncai-intake/internal/catalog"
)

const (
	// FallbackReply is sent whenever a message cannot be handled.
	FallbackReply = "Sorry, system thoda busy hai. Thodi der baad try karein."

	bookingTemplateReply = `Sure, I can help you book your consultation.
Please reply in this format:

Name:
Mobile:
Problem:
Preferred Date:
Preferred Time:`

	saveFailedReply = "Sorry, there was an error saving your booking. Please try again."

	statusNotFoundReply = "I could not find any booking for this number. If you would like to book a consultation, just say so and I will share the format."

	maxProductsInReply = 3
)

func fieldLines(values map[booking.Field]string) string {
	var b strings.Builder
	for _, f := range booking.Fields {
		if v := strings.TrimSpace(values[f]); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.Label(), v)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func receiptReply(c booking.Candidate) string {
	return "Thank you! We have received your booking details:\n\n" + fieldLines(c)
}

func persistedReply(rec *booking.Record) string {
	return fmt.Sprintf("Appointment booked successfully!\n\nBooking ID: %d\n%s\n\nOur team will contact you shortly.",
		rec.ID, fieldLines(recordFields(rec)))
}

// missingFieldsReply lists the missing labels and echoes recognized values
// without their labels, so only missing field names appear in the text.
func missingFieldsReply(c booking.Candidate) string {
	missing := make([]string, 0, 5)
	for _, f := range c.Missing() {
		missing = append(missing, f.Label())
	}
	received := make([]string, 0, 5)
	for _, f := range c.Present() {
		received = append(received, strings.TrimSpace(c[f]))
	}
	return fmt.Sprintf("Thanks, I have noted: %s.\n\nTo complete your booking please also send: %s.\n\nUse the format Label: value, one per line.",
		strings.Join(received, ", "), strings.Join(missing, ", "))
}

func statusFoundReply(rec *booking.Record) string {
	return fmt.Sprintf("Your latest booking (ID: %d) is %s.\n\nProblem: %s\nDate: %s\nTime: %s",
		rec.ID, rec.Status, rec.Subject, rec.RequestedDate, rec.RequestedTime)
}

func productReply(products []catalog.Product) string {
	if len(products) > maxProductsInReply {
		products = products[:maxProductsInReply]
	}
	var b strings.Builder
	b.WriteString("Here are some products that may help:\n\n")
	for _, p := range products {
		if p.Composition != "" {
			fmt.Fprintf(&b, "%s (%s)", p.BrandName, p.Composition)
		} else {
			b.WriteString(p.BrandName)
		}
		if p.Price != "" {
			fmt.Fprintf(&b, " - ₹%s", p.Price)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nIf you need guidance, tell me your problem.")
	return b.String()
}

func recordFields(rec *booking.Record) map[booking.Field]string {
	mobile := rec.Mobile
	if mobile == "" {
		mobile = rec.Contact
	}
	return map[booking.Field]string{
		booking.FieldName:    rec.Name,
		booking.FieldContact: mobile,
		booking.FieldSubject: rec.Subject,
		booking.FieldDate:    rec.RequestedDate,
		booking.FieldTime:    rec.RequestedTime,
	}
}
