package params

import "strings"

// Validator decides whether a candidate value is acceptable. A Validator set
// on a Parameter replaces the built-in rule for its type.
type Validator func(value string) bool

// Validate applies the built-in rule for t to value.
//
//   - number: only digits, '-' and '.'
//   - slider: only digits and '.'
//   - toggle: exactly "true" or "false"
//   - email: an '@' followed later by a '.'
//   - url: "http://" or "https://" prefix
//   - tel: digits, space, '-', '(', ')' and '+'
//   - color: '#' followed by 3 or 6 characters
//
// Every other type accepts any value; date and time kinds are left to the
// browser's input controls.
func Validate(t Type, value string) bool {
	switch t {
	case TypeNumber:
		return onlyChars(value, "-.")
	case TypeSlider:
		return onlyChars(value, ".")
	case TypeToggle:
		return value == "true" || value == "false"
	case TypeEmail:
		at := strings.IndexByte(value, '@')
		if at < 0 {
			return false
		}
		return strings.IndexByte(value[at:], '.') > 0
	case TypeURL:
		return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
	case TypeTel:
		return onlyChars(value, " -()+")
	case TypeColor:
		return strings.HasPrefix(value, "#") && (len(value) == 4 || len(value) == 7)
	default:
		return true
	}
}

// onlyChars reports whether every byte of s is an ASCII digit or one of extra.
func onlyChars(s, extra string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if strings.IndexByte(extra, c) < 0 {
			return false
		}
	}
	return true
}
