package messaging

import (
	"regexp"
	"strings"
)

const whatsappPrefix = "whatsapp:"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// NormalizeAddress normalizes a Twilio address while keeping its channel,
// so "whatsapp: +91 98765-43210" becomes "whatsapp:+919876543210".
func NormalizeAddress(value string) string {
	channel, number := splitChannel(value)
	e164 := NormalizeE164(number)
	if e164 == "" {
		return ""
	}
	return channel + e164
}

// IsWhatsApp reports whether the address belongs to the WhatsApp channel.
func IsWhatsApp(address string) bool {
	channel, _ := splitChannel(address)
	return channel == whatsappPrefix
}

func splitChannel(value string) (string, string) {
	value = strings.TrimSpace(value)
	if len(value) >= len(whatsappPrefix) && strings.EqualFold(value[:len(whatsappPrefix)], whatsappPrefix) {
		return whatsappPrefix, value[len(whatsappPrefix):]
	}
	return "", value
}

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}
