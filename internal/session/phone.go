package session

import "strings"

const countryPrefix = "+263"

// Normalize canonicalizes a raw phone-like identity into international
// format. It is best-effort and never fails: input that matches none of the
// known shapes is returned digit-stripped but otherwise unchanged.
func Normalize(raw string) string {
	if raw == "" {
		return raw
	}
	var b strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' || c == '+' {
			b.WriteRune(c)
		}
	}
	cleaned := b.String()
	switch {
	case strings.HasPrefix(cleaned, countryPrefix):
		return cleaned
	case strings.HasPrefix(cleaned, countryPrefix[1:]):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "0"):
		return countryPrefix + cleaned[1:]
	default:
		return cleaned
	}
}

// Variants returns the loose formats an already-normalized number may have
// been stored under. Used by the order-by-phone scan; the substring matching
// it feeds is a documented compatibility behavior, not an index.
func Variants(normalized string) []string {
	variants := []string{normalized}
	if strings.HasPrefix(normalized, countryPrefix) {
		variants = append(variants, normalized[1:], "0"+normalized[len(countryPrefix):])
	} else if strings.HasPrefix(normalized, countryPrefix[1:]) {
		variants = append(variants, "+"+normalized, "0"+normalized[len(countryPrefix)-1:])
	}
	return variants
}
