package params

import (
	"fmt"
	"strings"
)

// Type is the input kind of a parameter. It decides which validation rule
// applies and which input control a portal page renders for it.
type Type int

const (
	TypeText Type = iota
	TypePassword
	TypeNumber
	TypeToggle
	TypeSlider
	TypeSelect
	TypeEmail
	TypeURL
	TypeSearch
	TypeTel
	TypeDate
	TypeTime
	TypeDateTimeLocal
	TypeMonth
	TypeWeek
	TypeColor
	TypeFile
	TypeHidden
	TypeTextArea
)

var typeNames = [...]string{
	TypeText:          "text",
	TypePassword:      "password",
	TypeNumber:        "number",
	TypeToggle:        "toggle",
	TypeSlider:        "slider",
	TypeSelect:        "select",
	TypeEmail:         "email",
	TypeURL:           "url",
	TypeSearch:        "search",
	TypeTel:           "tel",
	TypeDate:          "date",
	TypeTime:          "time",
	TypeDateTimeLocal: "datetime-local",
	TypeMonth:         "month",
	TypeWeek:          "week",
	TypeColor:         "color",
	TypeFile:          "file",
	TypeHidden:        "hidden",
	TypeTextArea:      "textarea",
}

// String returns the lowercase name used in JSON payloads and config files.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("unknown(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType maps a type name back to its Type. Matching is case-insensitive
// and accepts "datetime_local" as an alias.
func ParseType(name string) (Type, error) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return TypeText, fmt.Errorf("unknown parameter type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
