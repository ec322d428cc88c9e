package extract

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneParseResult is one extracted telephone number. Like URLParseResult it
// is transient; only the E.164 form is folded into the record.
type PhoneParseResult struct {
	Original   string
	E164       string
	RegionCode string
}

// DefaultRegion is assumed for numbers written without a country code.
const DefaultRegion = "US"

// Candidate shape: 7+ digits allowing common separators, optional leading +.
var phoneCandidatePattern = regexp.MustCompile(`\+?\d[\d\s().-]{6,}\d`)

var nonDigit = regexp.MustCompile(`\D`)

// ExtractPhoneNumbers scans text for telephone-number-like substrings and
// returns them formatted to E.164, deduplicated by E.164 value in first-seen
// order. The first pass validates candidates with libphonenumber metadata
// using defaultRegion for numbers lacking a country code; a permissive digit
// fallback then catches what the library rejects.
func ExtractPhoneNumbers(text string, defaultRegion string) []PhoneParseResult {
	if text == "" {
		return nil
	}
	if defaultRegion == "" {
		defaultRegion = DefaultRegion
	}

	seen := make(map[string]bool)
	var results []PhoneParseResult

	candidates := phoneCandidatePattern.FindAllString(text, -1)

	for _, candidate := range candidates {
		number, err := phonenumbers.Parse(candidate, defaultRegion)
		if err != nil || !phonenumbers.IsValidNumber(number) {
			continue
		}
		e164 := phonenumbers.Format(number, phonenumbers.E164)
		if seen[e164] {
			continue
		}
		seen[e164] = true
		results = append(results, PhoneParseResult{
			Original:   strings.TrimSpace(candidate),
			E164:       e164,
			RegionCode: phonenumbers.GetRegionCodeForNumber(number),
		})
	}

	// Fallback pass for numbers the metadata-aware parse misses.
	for _, candidate := range candidates {
		e164 := fallbackE164(candidate)
		if e164 == "" || seen[e164] {
			continue
		}
		seen[e164] = true
		results = append(results, PhoneParseResult{
			Original: strings.TrimSpace(candidate),
			E164:     e164,
		})
	}

	return results
}

// fallbackE164 derives an E.164 value from bare digits: 10 digits are assumed
// NANP (+1), 11 digits starting with 1 get a plus, +-prefixed candidates are
// used as-is. Anything else is discarded.
func fallbackE164(candidate string) string {
	digits := nonDigit.ReplaceAllString(candidate, "")
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	case strings.HasPrefix(strings.TrimSpace(candidate), "+") && len(digits) > 1:
		return "+" + digits
	default:
		return ""
	}
}
