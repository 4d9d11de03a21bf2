package mpesa

import (
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/payflow-backend/pkg/errors"
)

var canonicalPhoneRe = regexp.MustCompile(`^254(7|1)\d{8}$`)

// NormalizePhone converts the accepted local and international spellings of a
// subscriber number into the 254XXXXXXXXX form the gateway expects.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "+")

	switch {
	case strings.HasPrefix(cleaned, "254"):
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		cleaned = "254" + cleaned[1:]
	case len(cleaned) == 9 && (cleaned[0] == '7' || cleaned[0] == '1'):
		cleaned = "254" + cleaned
	}

	if !canonicalPhoneRe.MatchString(cleaned) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid phone number").
			WithDetails(map[string]any{"phone": raw})
	}
	return cleaned, nil
}

// IsCanonicalPhone reports whether phone is already in gateway form.
func IsCanonicalPhone(phone string) bool {
	return canonicalPhoneRe.MatchString(phone)
}
