package parse

import (
	"encoding/json"
	"errors"
	"regexp"
)

var objectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ErrNoObject is returned when text contains nothing that looks like a JSON object.
var ErrNoObject = errors.New("no JSON object found")

// DecodeObject unmarshals text into v. When text is not valid JSON, the widest
// {...} span inside it is tried instead, which tolerates prose or code fences
// around the payload.
func DecodeObject(text string, v any) error {
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	obj := ExtractObject(text)
	if obj == "" {
		return ErrNoObject
	}
	return json.Unmarshal([]byte(obj), v)
}

// ExtractObject returns the span from the first "{" to the last "}" in text,
// or "" when there is none.
func ExtractObject(text string) string {
	return objectRe.FindString(text)
}
