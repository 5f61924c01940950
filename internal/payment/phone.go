package payment

import (
	"regexp"
	"strings"

	"github.com/campusmarket/storefront/internal/domain"
)

const DefaultCountryCode = "254"

var digitsOnly = regexp.MustCompile(`^\d+$`)

// ValidatePhone strips whitespace from raw and requires the country code
// followed by exactly nine digits, with no other separators. It returns the
// normalized number.
func ValidatePhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	phone := strings.Join(strings.Fields(raw), "")
	if !digitsOnly.MatchString(phone) ||
		len(phone) != len(countryCode)+9 ||
		!strings.HasPrefix(phone, countryCode) {
		return "", domain.ErrInvalidPhone
	}
	return phone, nil
}
