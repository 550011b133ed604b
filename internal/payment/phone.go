package payment

import (
	"fmt"
	"strings"
)

// subscriberDigits is the length of a national number without its leading 0.
const subscriberDigits = 9

// NormalizePhone turns a customer-typed number into the international
// digits-only form the provider expects: "0712 345-678" becomes "254712345678".
func NormalizePhone(raw, countryCode string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "\t", "").Replace(strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")

	if strings.HasPrefix(phone, "0") {
		phone = countryCode + phone[1:]
	} else if !strings.HasPrefix(phone, countryCode) {
		phone = countryCode + phone
	}

	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: phone number %q contains non-digits", ErrValidation, raw)
		}
	}
	if len(phone) != len(countryCode)+subscriberDigits {
		return "", fmt.Errorf("%w: phone number %q must have %d digits after the country code", ErrValidation, raw, subscriberDigits)
	}
	return phone, nil
}
